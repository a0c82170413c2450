package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberplay/economy-engine/ledger"
	"github.com/emberplay/economy-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func appendIntent(t *testing.T, log ledger.Log, account, orderID, productID string) *ledger.Record {
	t.Helper()
	rec := &ledger.Record{
		Kind:      ledger.KindPurchaseIntent,
		AccountID: account,
		Details: ledger.Details{
			ledger.DetailOrder:   orderID,
			ledger.DetailProduct: productID,
		},
	}
	require.NoError(t, log.Append(context.Background(), rec))
	return rec
}

func appendVerified(t *testing.T, log ledger.Log, account, orderID string, balance int64) *ledger.Record {
	t.Helper()
	rec := &ledger.Record{
		Kind:             ledger.KindPurchaseVerified,
		AccountID:        account,
		Details:          ledger.Details{ledger.DetailOrder: orderID},
		BalanceDelta:     550,
		ResultingBalance: balance,
	}
	require.NoError(t, log.Append(context.Background(), rec))
	return rec
}

func appendShopBuy(t *testing.T, log ledger.Log, account, opID string, balance int64) *ledger.Record {
	t.Helper()
	rec := &ledger.Record{
		Kind:             ledger.KindShopBuy,
		AccountID:        account,
		Details:          ledger.Details{ledger.DetailItem: "health_potion", ledger.DetailOp: opID},
		BalanceDelta:     -10,
		ResultingBalance: balance,
	}
	require.NoError(t, log.Append(context.Background(), rec))
	return rec
}

// =============================================================================
// FULL REPLAY
// =============================================================================

func TestRecovery_FullReplay_RebuildsState(t *testing.T) {
	// GIVEN: A log with an open intent, a verified purchase, and a shop buy
	// WHEN: Recovering with no snapshot
	// THEN: Every record is replayed and the maps are rebuilt

	log := store.NewMemoryLog()
	appendIntent(t, log, "acct-1", "order-open", "coins_100")
	appendIntent(t, log, "acct-1", "order-done", "coins_550")
	appendVerified(t, log, "acct-1", "order-done", 650)
	appendShopBuy(t, log, "acct-2", "op-1", 90)

	rc := ledger.NewRecovery(log, store.NewMemorySnapshots())
	assert.Equal(t, ledger.StateInitializing, rc.State())

	state, err := rc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ledger.StateReady, rc.State())
	assert.Equal(t, 4, rc.ReplayedRecordCount())
	assert.False(t, rc.UsedSnapshot())

	// Only the unverified intent stays active.
	require.Len(t, state.Intents, 1)
	assert.Equal(t, "acct-1", state.Intents["order-open"].AccountID)
	assert.Equal(t, ledger.IntentPending, state.Intents["order-open"].Status)

	// Both completed operations are cached.
	verified, ok := state.Index.Get("order-done")
	require.True(t, ok)
	assert.True(t, verified.Success)
	assert.Equal(t, int64(650), verified.ResultingBalance)

	bought, ok := state.Index.Get("op-1")
	require.True(t, ok)
	assert.Equal(t, int64(90), bought.ResultingBalance)
}

func TestRecovery_EmptyLog(t *testing.T) {
	rc := ledger.NewRecovery(store.NewMemoryLog(), store.NewMemorySnapshots())
	state, err := rc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, rc.ReplayedRecordCount())
	assert.Empty(t, state.Intents)
	assert.Equal(t, 0, state.Index.Len())
	assert.Equal(t, ledger.GenesisHash, state.LastHash)
}

// =============================================================================
// SNAPSHOT + PARTIAL REPLAY
// =============================================================================

func TestRecovery_SnapshotSkipsReplayedRecords(t *testing.T) {
	// GIVEN: A snapshot covering the first three records
	// WHEN: Recovering
	// THEN: Only records newer than the cutoff are replayed

	log := store.NewMemoryLog()
	appendIntent(t, log, "acct-1", "order-1", "coins_100")
	appendIntent(t, log, "acct-1", "order-2", "coins_100")
	third := appendVerified(t, log, "acct-1", "order-1", 100)

	snaps := store.NewMemorySnapshots()
	require.NoError(t, snaps.Save(context.Background(), ledger.Snapshot{
		ActiveIntents: []ledger.PurchaseIntent{
			{OrderID: "order-2", AccountID: "acct-1", ProductID: "coins_100", Status: ledger.IntentPending},
		},
		Idempotency: map[string]ledger.IdempotencyEntry{
			"order-1": {Success: true, Message: "Already completed", ResultingBalance: 100},
		},
		CutoffTimestamp: third.Timestamp,
	}))

	// Two more records after the snapshot.
	appendShopBuy(t, log, "acct-1", "op-x", 90)
	appendVerified(t, log, "acct-1", "order-2", 190)

	rc := ledger.NewRecovery(log, snaps)
	state, err := rc.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, rc.UsedSnapshot())
	assert.Equal(t, 2, rc.ReplayedRecordCount())
	assert.Empty(t, state.Intents, "order-2 was verified after the snapshot")

	_, ok := state.Index.Get("op-x")
	assert.True(t, ok)
}

func TestRecovery_SnapshotAndFullReplay_Equivalent(t *testing.T) {
	// GIVEN: One log, recovered once via snapshot and once from scratch
	// THEN: Both recoveries reach identical state

	log := store.NewMemoryLog()
	appendIntent(t, log, "acct-1", "order-1", "coins_550")
	appendVerified(t, log, "acct-1", "order-1", 550)
	appendShopBuy(t, log, "acct-1", "op-1", 540)
	cut := appendShopBuy(t, log, "acct-1", "op-2", 530)

	snaps := store.NewMemorySnapshots()
	require.NoError(t, snaps.Save(context.Background(), ledger.Snapshot{
		Idempotency: map[string]ledger.IdempotencyEntry{
			"order-1": {Success: true, Message: "Already completed", ResultingBalance: 550},
			"op-1":    {Success: true, Message: "Already completed", ResultingBalance: 540},
			"op-2":    {Success: true, Message: "Already completed", ResultingBalance: 530},
		},
		CutoffTimestamp: cut.Timestamp,
	}))

	appendIntent(t, log, "acct-1", "order-2", "coins_100")
	appendShopBuy(t, log, "acct-1", "op-3", 520)

	partial, err := ledger.NewRecovery(log, snaps).Run(context.Background())
	require.NoError(t, err)

	full, err := ledger.NewRecovery(log, store.NewMemorySnapshots()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, full.Index.Entries(), partial.Index.Entries())
	require.Len(t, partial.Intents, 1)
	require.Len(t, full.Intents, 1)
	assert.Equal(t, full.Intents["order-2"].ProductID, partial.Intents["order-2"].ProductID)
	assert.Equal(t, full.LastTimestamp, partial.LastTimestamp)
}

// =============================================================================
// FAIL-CLOSED
// =============================================================================

func TestRecovery_CorruptLog_Fatal(t *testing.T) {
	log := store.NewMemoryLog()
	appendShopBuy(t, log, "acct-1", "op-1", 90)
	appendShopBuy(t, log, "acct-1", "op-2", 80)
	log.Corrupt(0)

	rc := ledger.NewRecovery(log, store.NewMemorySnapshots())
	_, err := rc.Run(context.Background())

	require.Error(t, err)
	assert.True(t, ledger.IsFatal(err))
	assert.Equal(t, ledger.StateInitializing, rc.State(), "must never reach Ready on a corrupt log")
}

// =============================================================================
// IDEMPOTENCY INDEX
// =============================================================================

func TestIndex_FirstWriteWins(t *testing.T) {
	ix := ledger.NewIndex()
	ix.Put("op", ledger.IdempotencyEntry{Success: true, ResultingBalance: 90})
	ix.Put("op", ledger.IdempotencyEntry{Success: false, ResultingBalance: 0})

	e, ok := ix.Get("op")
	require.True(t, ok)
	assert.True(t, e.Success, "an operation id is never re-bound")
	assert.Equal(t, int64(90), e.ResultingBalance)
}

func TestIndex_EmptyKeyIgnored(t *testing.T) {
	ix := ledger.NewIndex()
	ix.Put("", ledger.IdempotencyEntry{Success: true})
	assert.Equal(t, 0, ix.Len())
}
