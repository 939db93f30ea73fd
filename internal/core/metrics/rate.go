package metrics

import (
	"sync"

	"github.com/benbjohnson/clock"
)

// windowSeconds 速率窗口长度（秒）
const windowSeconds = 60

// RateMeter 速率计算器（基于滑动窗口）
//
// 使用 60 个 1 秒桶计算最近 60 秒的平均速率，同时累计总量。
type RateMeter struct {
	mu      sync.Mutex
	clock   clock.Clock
	buckets [windowSeconds]int64
	// lastSec 最后写入的桶对应的 Unix 秒
	lastSec int64
	total   int64
}

// NewRateMeter 创建速率计算器
func NewRateMeter(clk clock.Clock) *RateMeter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateMeter{
		clock:   clk,
		lastSec: clk.Now().Unix(),
	}
}

// advance 清空从 lastSec 到 now 之间过期的桶
func (r *RateMeter) advance(now int64) {
	gap := now - r.lastSec
	switch {
	case gap <= 0:
		return
	case gap >= windowSeconds:
		r.buckets = [windowSeconds]int64{}
	default:
		for s := r.lastSec + 1; s <= now; s++ {
			r.buckets[s%windowSeconds] = 0
		}
	}
	r.lastSec = now
}

// Add 添加字节数到当前桶
func (r *RateMeter) Add(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now().Unix()
	r.advance(now)
	r.buckets[now%windowSeconds] += n
	r.total += n
}

// Rate 返回最近 60 秒的平均速率（字节/秒）
func (r *RateMeter) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance(r.clock.Now().Unix())

	var sum int64
	for _, v := range r.buckets {
		sum += v
	}
	return float64(sum) / windowSeconds
}

// Total 返回累计总量
func (r *RateMeter) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
