/*
snapshot.go - JSON snapshot sidecar

PURPOSE:
  Persists ledger.Snapshot next to the ledger file, named by convention
  <ledger>.snapshot.json. Writes are atomic (write-to-temp-then-rename) so
  a crash mid-save leaves the previous snapshot intact.

FAILURE MODE:
  Load returns (nil, nil) for a missing or unreadable snapshot. The log is
  authoritative; losing a snapshot only costs replay time.
*/
package chainfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/emberplay/economy-engine/ledger"
)

// SnapshotSuffix is appended to the ledger path to name the sidecar.
const SnapshotSuffix = ".snapshot.json"

type SnapshotStore struct {
	path string
}

// NewSnapshotStore derives the sidecar path from the ledger path.
func NewSnapshotStore(ledgerPath string) *SnapshotStore {
	return &SnapshotStore{path: ledgerPath + SnapshotSuffix}
}

// Path returns the sidecar file path.
func (s *SnapshotStore) Path() string { return s.path }

func (s *SnapshotStore) Save(_ context.Context, snap ledger.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Load(_ context.Context) (*ledger.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil // absent is not an error
	}
	var snap ledger.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil // corrupt snapshot degrades to full replay
	}
	return &snap, nil
}
