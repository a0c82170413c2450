package chainfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberplay/economy-engine/ledger"
	"github.com/emberplay/economy-engine/store/chainfile"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLog(t *testing.T) (*chainfile.Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "economy.ledger")
	log, err := chainfile.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log, path
}

func appendN(t *testing.T, log *chainfile.Log, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := &ledger.Record{
			Kind:             ledger.KindShopBuy,
			AccountID:        "acct-1",
			Details:          ledger.Details{ledger.DetailItem: "health_potion", ledger.DetailOp: "op-" + string(rune('a'+i))},
			BalanceDelta:     -10,
			ResultingBalance: int64(100 - 10*(i+1)),
		}
		require.NoError(t, log.Append(context.Background(), rec))
	}
}

// =============================================================================
// APPEND + RELOAD
// =============================================================================

func TestLog_AppendAndReload(t *testing.T) {
	// GIVEN: Records appended and the log closed
	// WHEN: Reopening the file
	// THEN: The chain verifies and the tail hash carries over

	log, path := newTestLog(t)
	appendN(t, log, 3)
	tail := log.LastHash()
	require.NoError(t, log.Close())

	reopened, err := chainfile.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, tail, reopened.LastHash())

	records, err := reopened.LoadAndVerify(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ledger.GenesisHash, records[0].PreviousHash)
	assert.Equal(t, tail, records[2].RecordHash)
}

func TestLog_OpenMissingFile(t *testing.T) {
	log, err := chainfile.Open(filepath.Join(t.TempDir(), "fresh.ledger"))
	require.NoError(t, err)
	defer log.Close()
	assert.Equal(t, ledger.GenesisHash, log.LastHash())
}

func TestLog_AppendAfterClose(t *testing.T) {
	log, _ := newTestLog(t)
	require.NoError(t, log.Close())

	err := log.Append(context.Background(), &ledger.Record{Kind: ledger.KindShopBuy, AccountID: "a"})
	assert.ErrorIs(t, err, ledger.ErrLogClosed)
}

func TestLog_RejectsInvalidRecords(t *testing.T) {
	log, _ := newTestLog(t)

	err := log.Append(context.Background(), &ledger.Record{Kind: "bogus", AccountID: "a"})
	assert.ErrorIs(t, err, ledger.ErrInvalidRecord)

	err = log.Append(context.Background(), &ledger.Record{Kind: ledger.KindShopBuy})
	assert.ErrorIs(t, err, ledger.ErrInvalidRecord, "account id is required")
}

// =============================================================================
// TAMPER DETECTION
// =============================================================================

func TestLog_CorruptingAnySingleByte_FailsOpen(t *testing.T) {
	// GIVEN: A valid three-record ledger file
	// WHEN: Any single byte is flipped
	// THEN: Open refuses with a fatal integrity error

	log, path := newTestLog(t)
	appendN(t, log, 3)
	require.NoError(t, log.Close())

	original, err := os.ReadFile(path)
	require.NoError(t, err)

	// Walk the file, flipping one byte at a time. Newlines are skipped:
	// flipping one changes line structure, which still must fail, but
	// through the parse path checked below.
	for i := 0; i < len(original); i++ {
		if original[i] == '\n' {
			continue
		}
		mutated := append([]byte(nil), original...)
		mutated[i] ^= 0x01
		require.NoError(t, os.WriteFile(path, mutated, 0o644))

		_, err := chainfile.Open(path)
		require.Error(t, err, "byte %d: corruption must be fatal", i)
		assert.True(t, ledger.IsFatal(err), "byte %d: error must satisfy ErrIntegrity", i)
	}
}

func TestLog_CorruptTrailingBytes_Fatal(t *testing.T) {
	log, path := newTestLog(t)
	appendN(t, log, 2)
	require.NoError(t, log.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("partial garbage")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = chainfile.Open(path)
	require.Error(t, err)
	assert.True(t, ledger.IsFatal(err))
}

func TestLog_TruncatedTail_Fatal(t *testing.T) {
	// Deleting the last line re-parses cleanly but the verified load of a
	// live engine would lose records; the next append from the old tail
	// hash is what tamper evidence is for. Here we cut mid-record, which
	// must fail outright.
	log, path := newTestLog(t)
	appendN(t, log, 2)
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-20], 0o644))

	_, err = chainfile.Open(path)
	require.Error(t, err)
	assert.True(t, ledger.IsFatal(err))
}

// =============================================================================
// SNAPSHOT SIDECAR
// =============================================================================

func TestSnapshotStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "economy.ledger")
	snaps := chainfile.NewSnapshotStore(path)
	assert.Equal(t, path+".snapshot.json", snaps.Path())

	saved := ledger.Snapshot{
		ActiveIntents: []ledger.PurchaseIntent{
			{OrderID: "order-1", AccountID: "acct-1", ProductID: "coins_100", Status: ledger.IntentPending},
		},
		Idempotency: map[string]ledger.IdempotencyEntry{
			"op-1": {Success: true, Message: "Already completed", ResultingBalance: 90},
		},
		CutoffTimestamp: 12345,
	}
	require.NoError(t, snaps.Save(context.Background(), saved))

	loaded, err := snaps.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.ActiveIntents, loaded.ActiveIntents)
	assert.Equal(t, saved.Idempotency, loaded.Idempotency)
	assert.Equal(t, saved.CutoffTimestamp, loaded.CutoffTimestamp)
}

func TestSnapshotStore_AbsentIsNotAnError(t *testing.T) {
	snaps := chainfile.NewSnapshotStore(filepath.Join(t.TempDir(), "none.ledger"))
	loaded, err := snaps.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSnapshotStore_CorruptDegradesToNil(t *testing.T) {
	// A broken snapshot only costs replay time; it must never be fatal.
	path := filepath.Join(t.TempDir(), "economy.ledger")
	snaps := chainfile.NewSnapshotStore(path)
	require.NoError(t, os.WriteFile(snaps.Path(), []byte("{not json"), 0o644))

	loaded, err := snaps.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSnapshotStore_SaveIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "economy.ledger")
	snaps := chainfile.NewSnapshotStore(path)

	require.NoError(t, snaps.Save(context.Background(), ledger.Snapshot{CutoffTimestamp: 1}))
	require.NoError(t, snaps.Save(context.Background(), ledger.Snapshot{CutoffTimestamp: 2}))

	loaded, err := snaps.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(2), loaded.CutoffTimestamp)

	_, err = os.Stat(snaps.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not linger")
}
