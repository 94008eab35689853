// Package keymutex provides striped per-key mutual exclusion. Sync work is
// serialized per trip id (and transitively per chain and per user ledger)
// without a global lock, so distinct keys proceed in parallel.
package keymutex

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 256

type KeyMutex struct {
	stripes []sync.Mutex
}

func New(stripes int) *KeyMutex {
	if stripes <= 0 {
		stripes = defaultStripes
	}
	return &KeyMutex{stripes: make([]sync.Mutex, stripes)}
}

func (m *KeyMutex) Lock(key string) {
	m.stripes[m.index(key)].Lock()
}

func (m *KeyMutex) Unlock(key string) {
	m.stripes[m.index(key)].Unlock()
}

// Do runs fn while holding the stripe for key.
func (m *KeyMutex) Do(key string, fn func() error) error {
	m.Lock(key)
	defer m.Unlock(key)
	return fn()
}

func (m *KeyMutex) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.stripes)))
}
