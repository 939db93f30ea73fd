package registry

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/dep2p/go-p2pchat/pkg/types"
)

// DefaultPresenceCapacity 在线状态表默认容量
const DefaultPresenceCapacity = 1024

// PresenceTable 用户名 → 最新在线状态
//
// 每个用户名只保留一条记录；更新会把用户移到最近位置。
// 容量只作为内存上限：超过时淘汰最久未出现的用户。
type PresenceTable struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, types.PresenceUpdate]
}

// NewPresenceTable 创建在线状态表，capacity <= 0 时使用默认容量
func NewPresenceTable(capacity int) *PresenceTable {
	if capacity <= 0 {
		capacity = DefaultPresenceCapacity
	}
	// 容量为正时 NewLRU 不会失败
	lru, _ := simplelru.NewLRU[string, types.PresenceUpdate](capacity, nil)
	return &PresenceTable{lru: lru}
}

// Upsert 写入或替换用户的在线状态，并移到最近位置
func (t *PresenceTable) Upsert(update types.PresenceUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lru.Add(update.Username, update)
}

// Get 返回用户的在线状态
func (t *PresenceTable) Get(username string) (types.PresenceUpdate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lru.Peek(username)
}

// Snapshot 返回按最近优先排列的在线状态
func (t *PresenceTable) Snapshot() []types.PresenceUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := t.lru.Keys() // 最旧在前
	out := make([]types.PresenceUpdate, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if v, ok := t.lru.Peek(keys[i]); ok {
			out = append(out, v)
		}
	}
	return out
}

// Len 返回记录的用户数
func (t *PresenceTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lru.Len()
}
