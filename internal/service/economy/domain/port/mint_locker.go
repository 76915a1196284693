package port

import "context"

// MintLocker 在铸造事务开始前按底层礼物串行化铸造流程。
// 序列号的最终正确性仍由礼物行锁保证。
type MintLocker interface {
	Acquire(ctx context.Context, giftID string) (unlock func(), err error)
}
