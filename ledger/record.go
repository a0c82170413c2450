/*
record.go - Canonical serialization and hash chaining

PURPOSE:
  Defines the on-disk line format for ledger records and the hash chain
  that makes truncation and mid-file tampering detectable.

LINE FORMAT:
  timestamp,kind,accountId,details,balanceDelta,resultingBalance,previousHash,recordHash

  - accountId and details are percent-escaped, so commas never appear
    inside a field
  - recordHash is the hex sha256 of everything before it (including the
    trailing previousHash), i.e. the line minus ",recordHash"
  - the first record chains from GenesisHash

VERIFICATION:
  VerifyChain recomputes every hash in order. The first mismatch, gap, or
  unparseable line is a fatal integrity violation - the caller must refuse
  to operate on the ledger. This is fail-closed on purpose.
*/
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// GenesisHash is the fixed PreviousHash of the first record in any ledger.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

const recordFieldCount = 8

// =============================================================================
// SERIALIZATION
// =============================================================================

// hashInput returns the canonical serialization of everything that is
// covered by the record hash: all fields, in line order, ending with
// PreviousHash.
func (r *Record) hashInput() string {
	return strings.Join([]string{
		strconv.FormatInt(r.Timestamp, 10),
		string(r.Kind),
		url.QueryEscape(r.AccountID),
		r.Details.Encode(),
		strconv.FormatInt(r.BalanceDelta, 10),
		strconv.FormatInt(r.ResultingBalance, 10),
		r.PreviousHash,
	}, ",")
}

// ComputeHash returns the hex sha256 of the record's canonical form.
// PreviousHash must already be set.
func (r *Record) ComputeHash() string {
	sum := sha256.Sum256([]byte(r.hashInput()))
	return hex.EncodeToString(sum[:])
}

// Seal sets PreviousHash from the given predecessor hash and computes
// RecordHash. Log implementations call this once per append.
func (r *Record) Seal(previousHash string) {
	r.PreviousHash = previousHash
	r.RecordHash = r.ComputeHash()
}

// Encode returns the full serialized line, without a trailing newline.
func (r *Record) Encode() string {
	return r.hashInput() + "," + r.RecordHash
}

// =============================================================================
// PARSING
// =============================================================================

// ParseRecord parses one serialized line. It validates field syntax but not
// the hash chain; chain validation is VerifyChain's job.
func ParseRecord(line string) (Record, error) {
	fields := strings.Split(line, ",")
	if len(fields) != recordFieldCount {
		return Record{}, fmt.Errorf("%w: expected %d fields, got %d", ErrCorruptRecord, recordFieldCount, len(fields))
	}

	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: bad timestamp %q", ErrCorruptRecord, fields[0])
	}

	kind := RecordKind(fields[1])
	if !kind.Valid() {
		return Record{}, fmt.Errorf("%w: unknown kind %q", ErrCorruptRecord, fields[1])
	}

	accountID, err := url.QueryUnescape(fields[2])
	if err != nil {
		return Record{}, fmt.Errorf("%w: bad account id", ErrCorruptRecord)
	}

	details, err := DecodeDetails(fields[3])
	if err != nil {
		return Record{}, fmt.Errorf("%w: bad details", ErrCorruptRecord)
	}

	delta, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: bad balance delta %q", ErrCorruptRecord, fields[4])
	}

	resulting, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%w: bad resulting balance %q", ErrCorruptRecord, fields[5])
	}

	return Record{
		Timestamp:        ts,
		Kind:             kind,
		AccountID:        accountID,
		Details:          details,
		BalanceDelta:     delta,
		ResultingBalance: resulting,
		PreviousHash:     fields[6],
		RecordHash:       fields[7],
	}, nil
}

// =============================================================================
// CHAIN VERIFICATION
// =============================================================================

// VerifyChain checks every record's hash and chain link in order.
// Any mismatch is returned as an *IntegrityError wrapping ErrIntegrity.
func VerifyChain(records []Record) error {
	prev := GenesisHash
	var lastTS int64
	for i := range records {
		r := &records[i]
		if r.PreviousHash != prev {
			return &IntegrityError{
				Index:  i,
				Reason: fmt.Sprintf("previous hash mismatch: chain has %s, record claims %s", prev, r.PreviousHash),
			}
		}
		if got := r.ComputeHash(); got != r.RecordHash {
			return &IntegrityError{
				Index:  i,
				Reason: fmt.Sprintf("record hash mismatch: computed %s, stored %s", got, r.RecordHash),
			}
		}
		if r.Timestamp <= lastTS && i > 0 {
			return &IntegrityError{
				Index:  i,
				Reason: fmt.Sprintf("non-monotonic timestamp %d after %d", r.Timestamp, lastTS),
			}
		}
		lastTS = r.Timestamp
		prev = r.RecordHash
	}
	return nil
}
