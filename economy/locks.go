/*
locks.go - Per-account lock table with deadlock-free pair acquisition

PURPOSE:
  All balance-mutating operations for an account are serialized through a
  lock keyed by account id. Two-party sagas (gifting) always acquire the
  lexicographically lower id first, so reciprocal gifts cannot deadlock.
*/
package economy

import "sync"

type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) get(id string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.locks[id]
	if !ok {
		m = &sync.Mutex{}
		t.locks[id] = m
	}
	return m
}

// lock acquires the account's lock and returns its release function.
func (t *lockTable) lock(id string) func() {
	m := t.get(id)
	m.Lock()
	return m.Unlock
}

// lockPair acquires both accounts' locks in id order.
func (t *lockTable) lockPair(a, b string) func() {
	if a == b {
		return t.lock(a)
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	m1, m2 := t.get(first), t.get(second)
	m1.Lock()
	m2.Lock()
	return func() {
		m2.Unlock()
		m1.Unlock()
	}
}
