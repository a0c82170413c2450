// Package store provides in-memory Log and SnapshotStore implementations
// for tests and development.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/emberplay/economy-engine/ledger"
)

// =============================================================================
// MEMORY LOG - In-memory hash-chained log (for testing/dev)
// =============================================================================

type MemoryLog struct {
	mu       sync.Mutex
	records  []ledger.Record
	lastHash string
	lastTS   int64
	closed   bool
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{lastHash: ledger.GenesisHash}
}

func (m *MemoryLog) Append(_ context.Context, r *ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ledger.ErrLogClosed
	}
	if !r.Kind.Valid() || r.AccountID == "" {
		return ledger.ErrInvalidRecord
	}

	// Timestamps must be strictly increasing across the chain.
	ts := time.Now().UnixNano()
	if ts <= m.lastTS {
		ts = m.lastTS + 1
	}
	r.Timestamp = ts
	r.Seal(m.lastHash)

	m.records = append(m.records, *r)
	m.lastHash = r.RecordHash
	m.lastTS = ts
	return nil
}

func (m *MemoryLog) LoadAndVerify(_ context.Context) ([]ledger.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ledger.Record, len(m.records))
	copy(out, m.records)
	if err := ledger.VerifyChain(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MemoryLog) LastHash() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHash
}

func (m *MemoryLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Corrupt flips the stored hash of record i. Test hook for verifying the
// fail-closed load path.
func (m *MemoryLog) Corrupt(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= 0 && i < len(m.records) {
		m.records[i].RecordHash = "deadbeef" + m.records[i].RecordHash[8:]
	}
}

// =============================================================================
// MEMORY SNAPSHOTS
// =============================================================================

type MemorySnapshots struct {
	mu   sync.Mutex
	snap *ledger.Snapshot
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{}
}

func (m *MemorySnapshots) Save(_ context.Context, s ledger.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := s
	cp.ActiveIntents = append([]ledger.PurchaseIntent(nil), s.ActiveIntents...)
	cp.Idempotency = make(map[string]ledger.IdempotencyEntry, len(s.Idempotency))
	for k, v := range s.Idempotency {
		cp.Idempotency[k] = v
	}
	m.snap = &cp
	return nil
}

func (m *MemorySnapshots) Load(_ context.Context) (*ledger.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, nil
	}
	cp := *m.snap
	return &cp, nil
}

// Drop discards the stored snapshot. Test hook for forcing full replay.
func (m *MemorySnapshots) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = nil
}
