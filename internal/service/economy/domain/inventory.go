package domain

// InventoryEntry 是 (用户, 礼物) 维度的持有记录。数量为 0 时记录必须不存在。
type InventoryEntry struct {
	UserID    string
	GiftID    string
	Quantity  int64
	Displayed bool
}

// InventoryItem 是带有礼物目录信息的库存视图。
type InventoryItem struct {
	InventoryEntry
	Name        string
	ImageRef    string
	Rare        bool
	Price       int64
	Upgradeable bool
}
