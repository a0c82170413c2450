package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberplay/economy-engine/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// chainOf seals n simple records into a valid chain.
func chainOf(n int) []ledger.Record {
	records := make([]ledger.Record, n)
	prev := ledger.GenesisHash
	for i := range records {
		records[i] = ledger.Record{
			Timestamp: int64(i + 1),
			Kind:      ledger.KindShopBuy,
			AccountID: "acct-1",
			Details: ledger.Details{
				ledger.DetailItem: "health_potion",
				ledger.DetailOp:   "op-" + string(rune('a'+i)),
			},
			BalanceDelta:     -10,
			ResultingBalance: int64(100 - 10*(i+1)),
		}
		records[i].Seal(prev)
		prev = records[i].RecordHash
	}
	return records
}

// =============================================================================
// SERIALIZATION ROUNDTRIP
// =============================================================================

func TestRecord_EncodeParse_Roundtrip(t *testing.T) {
	r := ledger.Record{
		Timestamp: 1234567890,
		Kind:      ledger.KindGiftBuy,
		AccountID: "acct-1",
		Details: ledger.Details{
			ledger.DetailItem:      "mount_whistle",
			ledger.DetailGiver:     "acct-1",
			ledger.DetailRecipient: "acct-2",
			ledger.DetailQty:       "1",
		},
		BalanceDelta:     -250,
		ResultingBalance: 750,
	}
	r.Seal(ledger.GenesisHash)

	parsed, err := ledger.ParseRecord(r.Encode())
	require.NoError(t, err)

	assert.Equal(t, r.Timestamp, parsed.Timestamp)
	assert.Equal(t, r.Kind, parsed.Kind)
	assert.Equal(t, r.AccountID, parsed.AccountID)
	assert.Equal(t, r.Details, parsed.Details)
	assert.Equal(t, r.BalanceDelta, parsed.BalanceDelta)
	assert.Equal(t, r.ResultingBalance, parsed.ResultingBalance)
	assert.Equal(t, r.PreviousHash, parsed.PreviousHash)
	assert.Equal(t, r.RecordHash, parsed.RecordHash)
}

func TestRecord_Roundtrip_HostileStrings(t *testing.T) {
	// Account ids and details may contain the format's own delimiters;
	// escaping must keep the line parseable and the hash stable.
	r := ledger.Record{
		Timestamp: 42,
		Kind:      ledger.KindShopBuyFailed,
		AccountID: "acct,with:odd;chars\n",
		Details: ledger.Details{
			"reason":       "commas, colons: and; semicolons",
			"weird key %s": "100%",
		},
		ResultingBalance: 5,
	}
	r.Seal(ledger.GenesisHash)

	parsed, err := ledger.ParseRecord(r.Encode())
	require.NoError(t, err)
	assert.Equal(t, r.AccountID, parsed.AccountID)
	assert.Equal(t, r.Details, parsed.Details)
	assert.Equal(t, r.RecordHash, parsed.ComputeHash(), "hash must be reproducible from parsed fields")
}

func TestParseRecord_MalformedLines(t *testing.T) {
	lines := []string{
		"",
		"not a record",
		"1,shop_buy,acct",                         // too few fields
		"x,shop_buy,acct,,0,0,prev,hash",          // bad timestamp
		"1,unknown_kind,acct,,0,0,prev,hash",      // unknown kind
		"1,shop_buy,acct,,zero,0,prev,hash",       // bad delta
		"1,shop_buy,acct,badpair,0,0,prev,hash",   // details missing colon
		"1,shop_buy,acct,,0,0,prev,hash,trailing", // too many fields
	}
	for _, line := range lines {
		_, err := ledger.ParseRecord(line)
		assert.ErrorIs(t, err, ledger.ErrCorruptRecord, "line %q should not parse", line)
	}
}

// =============================================================================
// CHAIN VERIFICATION
// =============================================================================

func TestVerifyChain_ValidChain(t *testing.T) {
	assert.NoError(t, ledger.VerifyChain(chainOf(5)))
	assert.NoError(t, ledger.VerifyChain(nil), "empty chain is valid")
}

func TestVerifyChain_TamperedPayload(t *testing.T) {
	// GIVEN: A valid 5-record chain
	// WHEN: A single field of a middle record is altered
	// THEN: Verification fails with a fatal integrity error

	records := chainOf(5)
	records[2].BalanceDelta = -9 // someone made their potion cheaper

	err := ledger.VerifyChain(records)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrIntegrity)
	assert.True(t, ledger.IsFatal(err))

	var ierr *ledger.IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, 2, ierr.Index)
}

func TestVerifyChain_BrokenLink(t *testing.T) {
	// Re-sealing a tampered record fixes its own hash but breaks the link
	// from its successor.
	records := chainOf(5)
	records[2].BalanceDelta = -9
	records[2].RecordHash = records[2].ComputeHash()

	err := ledger.VerifyChain(records)
	require.Error(t, err)
	var ierr *ledger.IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, 3, ierr.Index, "the successor's previous-hash check catches it")
}

func TestVerifyChain_TruncatedPrefix(t *testing.T) {
	// Dropping the first record breaks the genesis link.
	records := chainOf(3)[1:]
	assert.ErrorIs(t, ledger.VerifyChain(records), ledger.ErrIntegrity)
}

func TestVerifyChain_NonMonotonicTimestamps(t *testing.T) {
	records := chainOf(2)
	records[1].Timestamp = records[0].Timestamp
	records[1].RecordHash = records[1].ComputeHash()
	assert.ErrorIs(t, ledger.VerifyChain(records), ledger.ErrIntegrity)
}

// =============================================================================
// DETAILS ENCODING
// =============================================================================

func TestDetails_Encode_Deterministic(t *testing.T) {
	d := ledger.Details{"b": "2", "a": "1", "c": "3"}
	first := d.Encode()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.Encode(), "encoding feeds the hash and must be stable")
	}
	assert.Equal(t, "a:1;b:2;c:3", first)
}
