/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Integrity errors - hash chain or serialization damage. FATAL: the
     system must refuse to start rather than operate on a possibly
     corrupted economy.
  2. Operational errors - infrastructure failures on individual operations
     (account lookup, append I/O). Returned to the caller, never cached.

  Expected business outcomes (insufficient funds, inventory full, rate
  limiting) are NOT errors. They are structured results; see the economy
  package.
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIntegrity is the root of all fatal ledger damage: a hash chain
	// mismatch or a record that cannot be parsed. Never weaken this to a
	// warning - a ledger that fails verification must not be served.
	ErrIntegrity = errors.New("ledger integrity violation")

	// ErrCorruptRecord is returned when a serialized record cannot be parsed.
	// Wrapped by IntegrityError during load, since corrupt bytes in the log
	// are indistinguishable from tampering.
	ErrCorruptRecord = errors.New("corrupt ledger record")

	// ErrLogClosed is returned when appending to a closed log.
	ErrLogClosed = errors.New("ledger log closed")

	// ErrInvalidRecord is returned when appending a record with an unknown
	// kind or missing account id.
	ErrInvalidRecord = errors.New("invalid ledger record")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// IntegrityError reports exactly where chain verification failed.
type IntegrityError struct {
	Index  int    // Record index (0-based) where verification failed
	Reason string // What did not match
	Err    error  // Underlying parse error, if any
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger integrity violation at record %d: %s: %v", e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("ledger integrity violation at record %d: %s", e.Index, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// IsFatal reports whether err means the ledger must not be used.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIntegrity)
}
