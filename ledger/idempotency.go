/*
idempotency.go - Exact-key index of completed operations

PURPOSE:
  Maps a client-supplied operation id to its final outcome so a retried
  request returns the original result without re-executing side effects.

LIFETIME:
  Entries live as long as the ledger: they are reconstructed from the log
  on recovery and carried across restarts via snapshots. Only completed
  mutations are indexed - failed shop/gift operations are retryable and
  deliberately not cached.
*/
package ledger

import "sync"

// IdempotencyEntry is the cached outcome of a completed operation.
type IdempotencyEntry struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	ResultingBalance int64  `json:"resulting_balance"`
}

// Index is a concurrency-safe operation-id -> outcome map.
type Index struct {
	mu      sync.RWMutex
	entries map[string]IdempotencyEntry
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]IdempotencyEntry)}
}

// Get returns the cached outcome for an operation id, if any.
func (ix *Index) Get(operationID string) (IdempotencyEntry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[operationID]
	return e, ok
}

// Put records the outcome of a completed operation. First write wins;
// an operation id is never re-bound to a different outcome.
func (ix *Index) Put(operationID string, e IdempotencyEntry) {
	if operationID == "" {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, exists := ix.entries[operationID]; !exists {
		ix.entries[operationID] = e
	}
}

// Seed bulk-loads entries from a snapshot.
func (ix *Index) Seed(entries map[string]IdempotencyEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for k, v := range entries {
		ix.entries[k] = v
	}
}

// Entries returns a copy of the index, for snapshotting.
func (ix *Index) Entries() map[string]IdempotencyEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]IdempotencyEntry, len(ix.entries))
	for k, v := range ix.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of cached outcomes.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}
