package market

import (
	"context"
	"sync"
	"time"

	"tradepulse/pkg/logger"
)

// FetchFunc 拉取一次最新值
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Entry 单个带时效的缓存项
// value 和 lastUpdated 必须成对更新，读方不能看到值配上别人的时间戳
// 拉取失败不改动旧值旧时间戳（宁可旧，不可错）
type Entry[T any] struct {
	mu          sync.Mutex
	value       T
	lastUpdated time.Time
	ttl         time.Duration
	fetch       FetchFunc[T]
	clock       func() time.Time
}

func NewEntry[T any](ttl time.Duration, fetch FetchFunc[T]) *Entry[T] {
	return &Entry[T]{
		ttl:   ttl,
		fetch: fetch,
		clock: time.Now,
	}
}

// Get 窗口内直接返回缓存值；过期则同步拉取一次
// 拉取失败时退回上一个值，从未成功过就返回零值，由调用方判定数据不可用
func (e *Entry[T]) Get(ctx context.Context) T {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clock().Sub(e.lastUpdated) < e.ttl {
		return e.value
	}

	v, err := e.fetch(ctx)
	if err != nil {
		logger.Debugf("cache refresh failed, serving stale value: %v", err)
		return e.value
	}
	e.value = v
	e.lastUpdated = e.clock()
	return e.value
}

// Peek 只读当前值，不触发拉取
func (e *Entry[T]) Peek() (T, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, e.lastUpdated
}

// Set 外部直接喂值（例如 websocket 行情推送）
func (e *Entry[T]) Set(v T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = v
	e.lastUpdated = e.clock()
}

// Invalidate 把时间戳清零，下一次读必然触发刷新
func (e *Entry[T]) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUpdated = time.Time{}
}

// ForceRefresh 无视窗口立即拉取一次
func (e *Entry[T]) ForceRefresh(ctx context.Context) error {
	v, err := e.fetch(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.value = v
	e.lastUpdated = e.clock()
	e.mu.Unlock()
	return nil
}

// Fresh 当前值是否还在窗口内
func (e *Entry[T]) Fresh() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock().Sub(e.lastUpdated) < e.ttl
}

// SetClock 测试注入假时钟
func (e *Entry[T]) SetClock(clock func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
}
