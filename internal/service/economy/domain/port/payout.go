package port

// PayoutPolicy 计算回收单个礼物时返还的金币数。
type PayoutPolicy interface {
	UnitPayout(price int64, rare bool) (int64, error)
}
