package infrastructure

import (
	"context"
	"sync"

	"vault/internal/pkg/logger"
	"vault/internal/zookeeper"
)

// LocalMintLocker 是进程内按礼物 ID 分段的互斥锁。
type LocalMintLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalMintLocker() *LocalMintLocker {
	return &LocalMintLocker{locks: make(map[string]*keyedLock)}
}

func (l *LocalMintLocker) Acquire(ctx context.Context, giftID string) (func(), error) {
	l.mu.Lock()
	k, ok := l.locks[giftID]
	if !ok {
		k = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[giftID] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(giftID, k)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.ch
			l.release(giftID, k)
		})
	}, nil
}

func (l *LocalMintLocker) release(giftID string, k *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, giftID)
	}
}

// ZookeeperMintLocker 让多个实例之间的铸造按礼物串行执行。
type ZookeeperMintLocker struct {
	conn zookeeper.Conn
}

func NewZookeeperMintLocker(conn zookeeper.Conn) *ZookeeperMintLocker {
	return &ZookeeperMintLocker{conn: conn}
}

func (z *ZookeeperMintLocker) Acquire(ctx context.Context, giftID string) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(z.conn, "mint-"+giftID)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(ctx); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("gift_id", giftID).Msg("failed to release mint lock")
		}
	}, nil
}
