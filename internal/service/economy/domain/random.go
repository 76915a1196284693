package domain

import (
	"math/rand/v2"
	"sync"
)

// RandomSource 抽象随机数来源，测试中可以注入确定性的实现。
// 实现需要可并发调用；*rand.Rand 不满足这一点，需先经过 SyncRandom 包装。
type RandomSource interface {
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int { return rand.IntN(n) }

// DefaultRandom 返回基于 math/rand/v2 全局源的实现，可并发使用。
func DefaultRandom() RandomSource {
	return globalRandom{}
}

type lockedRandom struct {
	mu  sync.Mutex
	src RandomSource
}

func (r *lockedRandom) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.IntN(n)
}

// SyncRandom 用互斥锁包装 src。全局源和已包装的源原样返回。
func SyncRandom(src RandomSource) RandomSource {
	switch src.(type) {
	case globalRandom, *lockedRandom:
		return src
	}
	return &lockedRandom{src: src}
}
