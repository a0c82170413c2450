/*
replay.go - Startup recovery: snapshot seed + partial log replay

PURPOSE:
  Rebuilds the in-memory transaction state after a restart. Recovery is a
  two-state machine: Initializing -> Ready. It loads the latest snapshot
  (if any), seeds the active-intent and idempotency maps, then replays log
  records strictly newer than the snapshot cutoff.

RECONSTRUCTION ONLY:
  Replay never re-invokes account side effects. Credits, debits, and item
  grants already happened before their records were appended; replay only
  rebuilds the maps that remember them.

FAIL-CLOSED:
  A log that fails verification aborts recovery with a fatal integrity
  error. A broken snapshot merely falls back to replaying the whole log.
*/
package ledger

import "context"

// =============================================================================
// RECOVERY STATE MACHINE
// =============================================================================

type RecoveryState int

const (
	StateInitializing RecoveryState = iota
	StateReady
)

func (s RecoveryState) String() string {
	if s == StateReady {
		return "ready"
	}
	return "initializing"
}

// =============================================================================
// RECOVERED STATE
// =============================================================================

// RecoveredState is the reconstructed in-memory ledger state.
type RecoveredState struct {
	Intents       map[string]*PurchaseIntent // active (pending) intents by order id
	Index         *Index                     // idempotency outcomes
	LastTimestamp int64                      // timestamp of the newest applied record
	LastHash      string                     // tail of the verified hash chain
}

// Recovery drives startup reconstruction and tracks replay statistics.
type Recovery struct {
	log       Log
	snapshots SnapshotStore

	state    RecoveryState
	replayed int
	fromSnap bool
}

func NewRecovery(log Log, snapshots SnapshotStore) *Recovery {
	return &Recovery{log: log, snapshots: snapshots, state: StateInitializing}
}

// State returns the current recovery state.
func (rc *Recovery) State() RecoveryState { return rc.state }

// ReplayedRecordCount returns how many log records were replayed (i.e. were
// newer than the snapshot cutoff). Exposed for observability and tests.
func (rc *Recovery) ReplayedRecordCount() int { return rc.replayed }

// UsedSnapshot reports whether a snapshot seeded the recovery.
func (rc *Recovery) UsedSnapshot() bool { return rc.fromSnap }

// Run performs recovery. On success the Recovery transitions to Ready.
// A fatal integrity error leaves it Initializing; the caller must not serve.
func (rc *Recovery) Run(ctx context.Context) (*RecoveredState, error) {
	state := &RecoveredState{
		Intents:  make(map[string]*PurchaseIntent),
		Index:    NewIndex(),
		LastHash: GenesisHash,
	}

	// Seed from snapshot. Errors are swallowed into a full replay: the log
	// is authoritative, the snapshot is only an accelerator.
	var cutoff int64
	if rc.snapshots != nil {
		if snap, err := rc.snapshots.Load(ctx); err == nil && snap != nil {
			for i := range snap.ActiveIntents {
				intent := snap.ActiveIntents[i]
				state.Intents[intent.OrderID] = &intent
			}
			state.Index.Seed(snap.Idempotency)
			cutoff = snap.CutoffTimestamp
			state.LastTimestamp = snap.CutoffTimestamp
			rc.fromSnap = true
		}
	}

	// Verify the full chain; fail closed on any damage.
	records, err := rc.log.LoadAndVerify(ctx)
	if err != nil {
		return nil, err
	}

	// Replay records strictly newer than the cutoff.
	for i := range records {
		r := &records[i]
		if r.Timestamp <= cutoff {
			continue
		}
		applyRecord(state, r)
		state.LastTimestamp = r.Timestamp
		rc.replayed++
	}
	state.LastHash = rc.log.LastHash()

	rc.state = StateReady
	return state, nil
}

// applyRecord folds one log record into the reconstructed state.
func applyRecord(state *RecoveredState, r *Record) {
	switch r.Kind {
	case KindPurchaseIntent:
		orderID := r.Details[DetailOrder]
		if orderID == "" {
			return
		}
		state.Intents[orderID] = &PurchaseIntent{
			OrderID:   orderID,
			AccountID: r.AccountID,
			ProductID: r.Details[DetailProduct],
			CreatedAt: r.Time(),
			Status:    IntentPending,
		}

	case KindPurchaseVerified:
		orderID := r.Details[DetailOrder]
		delete(state.Intents, orderID)
		state.Index.Put(orderID, IdempotencyEntry{
			Success:          true,
			Message:          "Already completed",
			ResultingBalance: r.ResultingBalance,
		})

	case KindShopBuy, KindGiftBuy:
		state.Index.Put(r.Details[DetailOp], IdempotencyEntry{
			Success:          true,
			Message:          "Already completed",
			ResultingBalance: r.ResultingBalance,
		})

	case KindShopBuyFailed, KindGiftBuyFailed:
		// Failures are audit-only: retryable, never cached.
	}
}
