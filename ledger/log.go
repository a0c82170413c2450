/*
log.go - Persistence interface for the hash-chained record log

PURPOSE:
  Defines the interface between the economy engine and record storage.
  The Log owns the hash chain: it assigns timestamps, links each record to
  its predecessor, and enforces a single global append order.

APPEND-ONLY CONTRACT:
  - Append() is the ONLY write operation. No update, no delete. Ever.
  - Appends are totally ordered; implementations serialize internally.
  - Durable kinds (completed balance mutations) are synced to stable
    storage before Append returns.

IMPLEMENTATIONS:
  - store/chainfile: production append-only file
  - ledger/store: in-memory, for tests
*/
package ledger

import "context"

// Log is the durable, tamper-evident record store.
type Log interface {
	// Append seals the record into the chain (assigning its timestamp,
	// previous hash, and record hash) and persists it. The record is
	// mutated in place so the caller can observe the assigned fields.
	Append(ctx context.Context, r *Record) error

	// LoadAndVerify reads every record in order, recomputing and comparing
	// hashes. On the first mismatch or unparseable record it returns an
	// error satisfying errors.Is(err, ErrIntegrity); the caller must treat
	// that as fatal and refuse to start.
	LoadAndVerify(ctx context.Context) ([]Record, error)

	// LastHash returns the hash of the most recent record, or GenesisHash
	// for an empty log.
	LastHash() string

	// Close flushes buffered records and releases resources.
	Close() error
}
