/*
Package chainfile provides the production file-backed ledger log and its
snapshot sidecar.

PURPOSE:
  Implements ledger.Log on a single append-only file: one record per line,
  fields in a fixed order ending in previousHash,recordHash. The file is
  the authoritative economy store for one server instance.

DURABILITY:
  Appends go through a buffered writer that is flushed on every append.
  Kinds marked Durable (completed balance mutations) additionally fsync
  before Append returns, so a credit is never acknowledged ahead of its
  record reaching stable storage.

FAIL-CLOSED LOADING:
  Open verifies the entire chain before accepting a single append. Any
  unparseable line, hash mismatch, or corrupt trailing bytes is a fatal
  integrity error. Do not weaken this to a warning.

CONCURRENCY:
  A single mutex serializes appends, which is what gives the hash chain
  its strict global order. Purchases are not a hot combat path; one writer
  is plenty.

SEE ALSO:
  - ledger/record.go: Line format and hash computation
  - snapshot.go: JSON snapshot sidecar
*/
package chainfile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/emberplay/economy-engine/ledger"
)

// Log is an append-only, hash-chained record file.
type Log struct {
	mu       sync.Mutex
	path     string
	f        *os.File
	w        *bufio.Writer
	lastHash string
	lastTS   int64
	closed   bool
}

// Open verifies any existing ledger at path and opens it for appending.
// A verification failure is fatal: the caller must refuse to start.
func Open(path string) (*Log, error) {
	l := &Log{path: path, lastHash: ledger.GenesisHash}

	records, err := l.readAll()
	if err != nil {
		return nil, err
	}
	if n := len(records); n > 0 {
		l.lastHash = records[n-1].RecordHash
		l.lastTS = records[n-1].Timestamp
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	l.f = f
	l.w = bufio.NewWriter(f)
	return l, nil
}

// Append seals r into the chain and writes it. Durable kinds are synced
// before return.
func (l *Log) Append(_ context.Context, r *ledger.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ledger.ErrLogClosed
	}
	if !r.Kind.Valid() || r.AccountID == "" {
		return ledger.ErrInvalidRecord
	}

	ts := time.Now().UnixNano()
	if ts <= l.lastTS {
		ts = l.lastTS + 1
	}
	r.Timestamp = ts
	r.Seal(l.lastHash)

	if _, err := l.w.WriteString(r.Encode() + "\n"); err != nil {
		return fmt.Errorf("append ledger record: %w", err)
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	if r.Kind.Durable() {
		if err := l.f.Sync(); err != nil {
			return fmt.Errorf("sync ledger: %w", err)
		}
	}

	l.lastHash = r.RecordHash
	l.lastTS = ts
	return nil
}

// LoadAndVerify re-reads the file from disk and validates the full chain.
func (l *Log) LoadAndVerify(_ context.Context) ([]ledger.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAll()
}

// LastHash returns the tail of the chain.
func (l *Log) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHash
}

// Close flushes and closes the file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.w != nil {
		if err := l.w.Flush(); err != nil {
			return err
		}
	}
	if l.f != nil {
		if err := l.f.Sync(); err != nil {
			return err
		}
		return l.f.Close()
	}
	return nil
}

// Path returns the ledger file path.
func (l *Log) Path() string { return l.path }

// readAll parses and verifies every record in the file.
// Caller holds l.mu (or the log is not yet shared).
func (l *Log) readAll() ([]ledger.Record, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", l.path, err)
	}

	var records []ledger.Record
	for i, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue // trailing newline
		}
		r, err := ledger.ParseRecord(line)
		if err != nil {
			// Corrupt bytes are indistinguishable from tampering: fatal.
			return nil, &ledger.IntegrityError{Index: i, Reason: "unparseable record", Err: err}
		}
		records = append(records, r)
	}

	if err := ledger.VerifyChain(records); err != nil {
		return nil, err
	}
	return records, nil
}
