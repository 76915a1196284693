package domain

// DefaultUnitPayout 是回收价：稀有礼物 80%，普通礼物 50%，向下取整。
func DefaultUnitPayout(price int64, rare bool) int64 {
	if rare {
		return price * 4 / 5
	}
	return price / 2
}
