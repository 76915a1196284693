package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// UnlimitedStock 表示礼物不限量。
const UnlimitedStock int64 = -1

// SystemCreator 是内置礼物的创建者标识。
const SystemCreator = "system"

// Gift 是礼物目录中的一条定义。礼物从不物理删除，下架只是翻转 Active。
type Gift struct {
	ID          string
	Name        string
	Price       int64
	ImageRef    string
	Rare        bool
	CreatedBy   string
	Stock       int64 // -1 不限量，否则为剩余库存
	Active      bool
	Upgradeable bool
	// MintedCount 是以该礼物为底的 NFT 已铸造数量，下一个序列号为 MintedCount+1。
	MintedCount int64
	CreatedAt   time.Time
}

func (g *Gift) Limited() bool {
	return g.Stock != UnlimitedStock
}

// Purchasable 判断礼物当前是否可以被购买赠送。
func (g *Gift) Purchasable() bool {
	return g.Active && g.Stock != 0
}

// DecrementStock 对限量礼物扣减一个库存，不限量礼物不做任何修改。
func (g *Gift) DecrementStock() error {
	if !g.Limited() {
		return nil
	}
	if g.Stock <= 0 {
		return errors.Wrapf(ErrSoldOut, "gift %s", g.ID)
	}
	g.Stock--
	return nil
}

// NextSerial 分配下一个序列号。调用方必须持有该礼物的行锁。
func (g *Gift) NextSerial() int64 {
	g.MintedCount++
	return g.MintedCount
}

// GiftSpec 是管理员创建礼物时提交的参数。
type GiftSpec struct {
	ID          string `yaml:"id" json:"id,omitempty"`
	Name        string `yaml:"name" json:"name"`
	Price       int64  `yaml:"price" json:"price"`
	ImageRef    string `yaml:"image" json:"image"`
	Rare        bool   `yaml:"rare" json:"rare"`
	Stock       *int64 `yaml:"stock" json:"stock,omitempty"` // nil 表示不限量
	Upgradeable bool   `yaml:"upgradeable" json:"upgradeable"`
}

func (s GiftSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.Wrap(ErrValidation, "gift name is required")
	}
	if s.Price <= 0 {
		return errors.Wrapf(ErrValidation, "gift price must be positive, got %d", s.Price)
	}
	if strings.TrimSpace(s.ImageRef) == "" {
		return errors.Wrap(ErrValidation, "gift image is required")
	}
	if s.Stock != nil && *s.Stock < UnlimitedStock {
		return errors.Wrapf(ErrValidation, "invalid stock %d", *s.Stock)
	}
	return nil
}

// NewGift 根据规格构造一个上架状态的礼物。
func NewGift(id, creator string, spec GiftSpec, now time.Time) *Gift {
	stock := UnlimitedStock
	if spec.Stock != nil {
		stock = *spec.Stock
	}
	return &Gift{
		ID:          id,
		Name:        strings.TrimSpace(spec.Name),
		Price:       spec.Price,
		ImageRef:    strings.TrimSpace(spec.ImageRef),
		Rare:        spec.Rare,
		CreatedBy:   creator,
		Stock:       stock,
		Active:      true,
		Upgradeable: spec.Upgradeable,
		CreatedAt:   now,
	}
}
