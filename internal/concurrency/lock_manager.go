package concurrency

import (
	"sort"
	"sync"
)

// LockManager hands out one mutex per entity key.
type LockManager struct {
	locks sync.Map
}

// NewLockManager creates a new LockManager
func NewLockManager() *LockManager {
	return &LockManager{}
}

// GetLock returns the mutex for key, creating it on first use.
func (lm *LockManager) GetLock(key string) *sync.Mutex {
	lock, _ := lm.locks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Lock acquires every key in sorted order and returns a function releasing them.
// Duplicate keys are locked once.
func (lm *LockManager) Lock(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	held := make([]*sync.Mutex, 0, len(sorted))
	for i, k := range sorted {
		if i > 0 && sorted[i-1] == k {
			continue
		}
		mu := lm.GetLock(k)
		mu.Lock()
		held = append(held, mu)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func BannerKey(id string) string { return "banner:" + id }
func PlayerKey(id string) string { return "player:" + id }
func RegistryKey() string        { return "registry" }
func SystemKey() string          { return "system" }
