/*
snapshot.go - Point-in-time ledger state for bounded recovery

PURPOSE:
  A snapshot freezes the in-memory state derived from the log (active
  purchase intents and idempotency outcomes) together with a cutoff
  timestamp. Recovery seeds from the snapshot and replays only records
  strictly newer than the cutoff, so startup time is bounded by write
  volume since the last snapshot instead of ledger lifetime.

INVARIANT:
  Every log record with Timestamp <= CutoffTimestamp is already reflected
  in the snapshot and must not be replayed again.

FAILURE MODE:
  A missing or corrupt snapshot is NON-fatal: the log remains authoritative
  and recovery degrades to a full replay. Contrast with the log itself,
  where corruption is fatal.
*/
package ledger

import (
	"context"
	"time"
)

// Snapshot is the serialized recovery state.
type Snapshot struct {
	ActiveIntents   []PurchaseIntent            `json:"active_intents"`
	Idempotency     map[string]IdempotencyEntry `json:"idempotency"`
	CutoffTimestamp int64                       `json:"cutoff_timestamp"`
	TakenAt         time.Time                   `json:"taken_at"`
}

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	// Save atomically replaces the stored snapshot.
	Save(ctx context.Context, s Snapshot) error

	// Load returns the last valid snapshot, or (nil, nil) when absent or
	// unreadable. Corruption here only costs replay time.
	Load(ctx context.Context) (*Snapshot, error)
}
