/*
engine.go - The transaction orchestrator

PURPOSE:
  Sequences every economy operation end to end:

    InitiatePurchase: rate limit -> open intent -> append purchase_intent
    VerifyPurchase:   intent + receipt checks -> credit -> append (durable)
    BuyShopItem:      idempotency -> debit -> grant -> append (durable)
                      with refund compensation when the grant fails
    GiftShopItem:     two-party saga: debit giver -> grant receiver,
                      full refund on receiver inventory overflow

FAILURE SEMANTICS:
  Insufficient funds, full inventory, user mismatch, bad signatures, and
  rate-limit denials are expected outcomes returned as Result values.
  Errors are reserved for infrastructure failures (account resolution,
  log I/O) and fatal integrity violations at startup.

CONCURRENCY:
  One lock per account serializes that account's mutations; gifts acquire
  both locks in id order. The log itself enforces the single global append
  order the hash chain needs. Every operation runs to a terminal state -
  including compensation - before returning; there is no cancellation of
  an in-flight debit/grant pair.
*/
package economy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emberplay/economy-engine/ledger"
)

// ErrRateLimited is returned by InitiatePurchase when the account has
// exhausted its intent budget for the current window. No ledger record is
// written for a denial.
var ErrRateLimited = errors.New("purchase rate limit exceeded")

// ErrUnknownProduct is returned for product ids missing from the catalog.
var ErrUnknownProduct = errors.New("unknown product")

// =============================================================================
// CONFIG
// =============================================================================

// Config tunes the engine. Zero values fall back to defaults; the expiry
// window and cleanup cadence are deliberately configurable, not invariants.
type Config struct {
	ReceiptSecret string

	RateLimit  int           // intents per window per account (default 10)
	RateWindow time.Duration // rolling window (default 1m)

	IntentExpiry time.Duration // pending intent lifetime (default 15m)
	CleanupEvery int           // sweep expired intents every N calls (default 100)

	SnapshotEvery int // snapshot every N appends; 0 disables (default 1000)
}

func (c Config) withDefaults() Config {
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	if c.IntentExpiry <= 0 {
		c.IntentExpiry = 15 * time.Minute
	}
	if c.CleanupEvery <= 0 {
		c.CleanupEvery = 100
	}
	if c.SnapshotEvery == 0 {
		c.SnapshotEvery = 1000
	}
	return c
}

// =============================================================================
// RESULT
// =============================================================================

// Result is the structured outcome of a verify/buy/gift operation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Balance int64  `json:"balance"`
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the public-facing transaction orchestrator.
type Engine struct {
	cfg      Config
	log      ledger.Log
	snaps    ledger.SnapshotStore
	accounts AccountProvider
	catalog  *Catalog
	verifier *ReceiptVerifier
	limiter  *SlidingWindow
	locks    *lockTable
	logger   zerolog.Logger

	mu      sync.RWMutex
	intents map[string]*ledger.PurchaseIntent
	index   *ledger.Index
	lastTS  int64

	replayed int
	calls    atomic.Int64
	appends  atomic.Int64
	now      func() time.Time
}

// Open recovers ledger state and returns a ready engine. A log that fails
// chain verification aborts startup: the error satisfies ledger.IsFatal.
func Open(ctx context.Context, cfg Config, log ledger.Log, snaps ledger.SnapshotStore,
	accounts AccountProvider, catalog *Catalog, logger zerolog.Logger) (*Engine, error) {

	cfg = cfg.withDefaults()

	recovery := ledger.NewRecovery(log, snaps)
	state, err := recovery.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger recovery: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		log:      log,
		snaps:    snaps,
		accounts: accounts,
		catalog:  catalog,
		verifier: NewReceiptVerifier(cfg.ReceiptSecret),
		limiter:  NewSlidingWindow(cfg.RateLimit, cfg.RateWindow),
		locks:    newLockTable(),
		logger:   logger,
		intents:  state.Intents,
		index:    state.Index,
		lastTS:   state.LastTimestamp,
		replayed: recovery.ReplayedRecordCount(),
		now:      time.Now,
	}
	replayedRecords.Set(float64(e.replayed))

	logger.Info().
		Str("state", recovery.State().String()).
		Bool("from_snapshot", recovery.UsedSnapshot()).
		Int("replayed", e.replayed).
		Int("active_intents", len(e.intents)).
		Int("idempotency_entries", e.index.Len()).
		Msg("economy ledger ready")

	return e, nil
}

// ReplayedRecordCount returns how many records the last recovery replayed.
func (e *Engine) ReplayedRecordCount() int { return e.replayed }

// ActiveIntentCount returns the number of pending purchase intents.
func (e *Engine) ActiveIntentCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.intents)
}

// GenerateSignature mirrors the token an external payment provider would
// supply for an order. Server-internal / test utility.
func (e *Engine) GenerateSignature(orderID string) string {
	return e.verifier.GenerateSignature(orderID)
}

// VerifyChain re-reads the log and validates every hash link.
func (e *Engine) VerifyChain(ctx context.Context) error {
	_, err := e.log.LoadAndVerify(ctx)
	return err
}

// =============================================================================
// INITIATE PURCHASE
// =============================================================================

// InitiatePurchase opens a purchase intent for a premium product.
// Rate-limit denials return ErrRateLimited and write nothing.
func (e *Engine) InitiatePurchase(ctx context.Context, accountID, productID string) (*ledger.PurchaseIntent, error) {
	e.maybeCleanup()

	if _, ok := e.catalog.Product(productID); !ok {
		return nil, ErrUnknownProduct
	}
	acct, err := e.accounts.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if !e.limiter.TryAcquire(accountID) {
		rateLimitDenials.Inc()
		return nil, ErrRateLimited
	}

	intent := ledger.PurchaseIntent{
		OrderID:   uuid.NewString(),
		AccountID: accountID,
		ProductID: productID,
		CreatedAt: e.now(),
		Status:    ledger.IntentPending,
	}

	rec := &ledger.Record{
		Kind:      ledger.KindPurchaseIntent,
		AccountID: accountID,
		Details: ledger.Details{
			ledger.DetailOrder:   intent.OrderID,
			ledger.DetailProduct: productID,
		},
		ResultingBalance: acct.Balance(),
	}
	// The intent joins the active set before its record lands so that a
	// snapshot cut during the append can never cover the record while
	// missing the intent. Replaying the record on top is a no-op.
	// The map holds its own instance and the caller gets a detached copy;
	// the sweep and completion paths stay the only writers.
	owned := intent
	e.mu.Lock()
	e.intents[intent.OrderID] = &owned
	e.mu.Unlock()

	if err := e.append(ctx, rec); err != nil {
		e.mu.Lock()
		delete(e.intents, intent.OrderID)
		e.mu.Unlock()
		return nil, err
	}

	intentsOpened.Inc()
	e.logger.Debug().Str("account", accountID).Str("order", intent.OrderID).
		Str("product", productID).Msg("purchase intent opened")
	return &intent, nil
}

// =============================================================================
// VERIFY PURCHASE
// =============================================================================

// VerifyPurchase validates a receipt against an open intent and credits the
// product's currency exactly once. Retries with the same order id return
// the cached outcome without crediting again.
func (e *Engine) VerifyPurchase(ctx context.Context, accountID, orderID, receiptToken string) (Result, error) {
	unlock := e.locks.lock(accountID)
	defer unlock()

	if cached, ok := e.index.Get(orderID); ok {
		idempotentReplays.Inc()
		return Result{Success: cached.Success, Message: "Already completed", Balance: cached.ResultingBalance}, nil
	}

	// Copy the intent while the lock is held; the map's instance may be
	// mutated by the expiry sweep at any time.
	e.mu.RLock()
	var intent ledger.PurchaseIntent
	stored, ok := e.intents[orderID]
	if ok {
		intent = *stored
	}
	e.mu.RUnlock()
	if !ok {
		verifications.WithLabelValues(resultUnknown).Inc()
		return Result{Message: "Unknown order"}, nil
	}
	if intent.AccountID != accountID {
		verifications.WithLabelValues(resultUserMismatch).Inc()
		return Result{Message: "User mismatch"}, nil
	}
	if intent.ExpiredAt(e.now(), e.cfg.IntentExpiry) {
		verifications.WithLabelValues(resultUnknown).Inc()
		return Result{Message: "Order expired"}, nil
	}
	if !e.verifier.Verify(orderID, receiptToken) {
		verifications.WithLabelValues(resultInvalidSignature).Inc()
		return Result{Message: "Invalid receipt signature"}, nil
	}

	product, ok := e.catalog.Product(intent.ProductID)
	if !ok {
		verifications.WithLabelValues(resultUnknown).Inc()
		return Result{Message: "Unknown product"}, nil
	}

	acct, err := e.accounts.Account(ctx, accountID)
	if err != nil {
		return Result{}, err
	}
	if acct.HasProcessedOrder(orderID) {
		// Fulfilled before a restart that lost the index entry; do not
		// credit twice.
		balance := acct.Balance()
		e.complete(orderID, ledger.IdempotencyEntry{Success: true, Message: "Already completed", ResultingBalance: balance})
		idempotentReplays.Inc()
		return Result{Success: true, Message: "Already completed", Balance: balance}, nil
	}

	acct.Credit(product.Coins)
	acct.MarkOrderProcessed(orderID)
	balance := acct.Balance()

	rec := &ledger.Record{
		Kind:      ledger.KindPurchaseVerified,
		AccountID: accountID,
		Details: ledger.Details{
			ledger.DetailOrder:    orderID,
			ledger.DetailProduct:  intent.ProductID,
			ledger.DetailPriceUSD: product.PriceUSD.String(),
		},
		BalanceDelta:     product.Coins,
		ResultingBalance: balance,
	}
	// Cache before appending: the credit has already happened, and a
	// snapshot cut mid-append must see the outcome its cutoff covers.
	// Index entries are first-write-wins, so replay duplication is safe.
	e.complete(orderID, ledger.IdempotencyEntry{Success: true, Message: "Already completed", ResultingBalance: balance})

	if err := e.append(ctx, rec); err != nil {
		return Result{}, err
	}

	verifications.WithLabelValues(resultSuccess).Inc()
	e.logger.Info().Str("account", accountID).Str("order", orderID).
		Int64("credited", product.Coins).Msg("purchase verified")
	return Result{Success: true, Message: "Purchase verified", Balance: balance}, nil
}

// complete removes an intent from the active set and caches its outcome.
func (e *Engine) complete(orderID string, entry ledger.IdempotencyEntry) {
	e.mu.Lock()
	if intent, ok := e.intents[orderID]; ok {
		intent.Status = ledger.IntentCompleted
	}
	delete(e.intents, orderID)
	e.mu.Unlock()
	e.index.Put(orderID, entry)
}

// =============================================================================
// BUY SHOP ITEM
// =============================================================================

// BuyShopItem debits the account and grants the item atomically with
// respect to that account. If the grant fails the debit is compensated in
// full; the account ends in its pre-call state.
func (e *Engine) BuyShopItem(ctx context.Context, accountID, itemID string, quantity int, operationID string) (Result, error) {
	e.maybeCleanup()

	if quantity <= 0 {
		return Result{Message: "Invalid quantity"}, nil
	}

	unlock := e.locks.lock(accountID)
	defer unlock()

	if cached, ok := e.index.Get(operationID); ok {
		idempotentReplays.Inc()
		return Result{Success: cached.Success, Message: "Already completed", Balance: cached.ResultingBalance}, nil
	}

	item, ok := e.catalog.Item(itemID)
	if !ok {
		return Result{Message: "Unknown shop item"}, nil
	}
	acct, err := e.accounts.Account(ctx, accountID)
	if err != nil {
		return Result{}, err
	}

	cost := item.Cost * int64(quantity)
	if !acct.TryDebit(cost) {
		shopBuys.WithLabelValues(resultInsufficient).Inc()
		if err := e.appendShopFailure(ctx, ledger.KindShopBuyFailed, acct, itemID, quantity, operationID, ledger.ReasonInsufficientFunds, ""); err != nil {
			return Result{}, err
		}
		return Result{Message: "Insufficient funds", Balance: acct.Balance()}, nil
	}

	boundTo := ""
	if item.Bind == BindOnPickup {
		boundTo = accountID
	}
	if !acct.AddItem(itemID, quantity, item.Bind, boundTo) {
		// Compensate: the refund must round-trip the debit to zero.
		acct.Credit(cost)
		shopBuys.WithLabelValues(resultInventoryFull).Inc()
		if err := e.appendShopFailure(ctx, ledger.KindShopBuyFailed, acct, itemID, quantity, operationID, ledger.ReasonInventoryFull, ""); err != nil {
			return Result{}, err
		}
		return Result{Message: "Inventory full", Balance: acct.Balance()}, nil
	}

	balance := acct.Balance()
	rec := &ledger.Record{
		Kind:      ledger.KindShopBuy,
		AccountID: accountID,
		Details: ledger.Details{
			ledger.DetailItem:    itemID,
			ledger.DetailQty:     fmt.Sprintf("%d", quantity),
			ledger.DetailBind:    string(item.Bind),
			ledger.DetailBoundTo: boundTo,
			ledger.DetailOp:      operationID,
		},
		BalanceDelta:     -cost,
		ResultingBalance: balance,
	}
	e.index.Put(operationID, ledger.IdempotencyEntry{Success: true, Message: "Already completed", ResultingBalance: balance})

	if err := e.append(ctx, rec); err != nil {
		return Result{}, err
	}

	shopBuys.WithLabelValues(resultSuccess).Inc()
	return Result{Success: true, Message: "Item purchased", Balance: balance}, nil
}

// =============================================================================
// GIFT SHOP ITEM
// =============================================================================

// GiftShopItem runs the two-party gift saga: debit the giver, grant the
// receiver. A failed grant refunds the giver in full. Idempotent per
// operation id.
func (e *Engine) GiftShopItem(ctx context.Context, giverID, receiverID, itemID string, quantity int, operationID string) (Result, error) {
	e.maybeCleanup()

	if quantity <= 0 {
		return Result{Message: "Invalid quantity"}, nil
	}
	if giverID == receiverID {
		return Result{Message: "Cannot gift to yourself"}, nil
	}

	unlock := e.locks.lockPair(giverID, receiverID)
	defer unlock()

	if cached, ok := e.index.Get(operationID); ok {
		idempotentReplays.Inc()
		return Result{Success: cached.Success, Message: "Already completed", Balance: cached.ResultingBalance}, nil
	}

	item, ok := e.catalog.Item(itemID)
	if !ok {
		return Result{Message: "Unknown shop item"}, nil
	}
	giver, err := e.accounts.Account(ctx, giverID)
	if err != nil {
		return Result{}, err
	}
	receiver, err := e.accounts.Account(ctx, receiverID)
	if err != nil {
		return Result{}, err
	}

	cost := item.Cost * int64(quantity)
	if !giver.TryDebit(cost) {
		giftBuys.WithLabelValues(resultInsufficient).Inc()
		if err := e.appendShopFailure(ctx, ledger.KindGiftBuyFailed, giver, itemID, quantity, operationID, ledger.ReasonInsufficientFunds, receiverID); err != nil {
			return Result{}, err
		}
		return Result{Message: "Insufficient funds", Balance: giver.Balance()}, nil
	}

	boundTo := ""
	if item.Bind == BindOnPickup {
		boundTo = receiverID
	}
	if !receiver.AddItem(itemID, quantity, item.Bind, boundTo) {
		// Compensation: refund the giver in full.
		giver.Credit(cost)
		giftBuys.WithLabelValues(resultInventoryFull).Inc()
		if err := e.appendShopFailure(ctx, ledger.KindGiftBuyFailed, giver, itemID, quantity, operationID, ledger.ReasonReceiverInventoryFull, receiverID); err != nil {
			return Result{}, err
		}
		return Result{Message: "Receiver inventory full", Balance: giver.Balance()}, nil
	}

	balance := giver.Balance()
	rec := &ledger.Record{
		Kind:      ledger.KindGiftBuy,
		AccountID: giverID,
		Details: ledger.Details{
			ledger.DetailItem:      itemID,
			ledger.DetailQty:       fmt.Sprintf("%d", quantity),
			ledger.DetailBind:      string(item.Bind),
			ledger.DetailBoundTo:   boundTo,
			ledger.DetailGiver:     giverID,
			ledger.DetailRecipient: receiverID,
			ledger.DetailOp:        operationID,
		},
		BalanceDelta:     -cost,
		ResultingBalance: balance,
	}
	e.index.Put(operationID, ledger.IdempotencyEntry{Success: true, Message: "Already completed", ResultingBalance: balance})

	if err := e.append(ctx, rec); err != nil {
		return Result{}, err
	}

	giftBuys.WithLabelValues(resultSuccess).Inc()
	e.logger.Info().Str("giver", giverID).Str("receiver", receiverID).
		Str("item", itemID).Int("qty", quantity).Msg("gift delivered")
	return Result{Success: true, Message: "Gift delivered", Balance: balance}, nil
}

// appendShopFailure writes the audit record for a rejected buy/gift.
// Failures carry no balance delta - compensation already restored the
// account - and are not cached for idempotency (they are retryable).
func (e *Engine) appendShopFailure(ctx context.Context, kind ledger.RecordKind, acct Account,
	itemID string, quantity int, operationID, reason, recipientID string) error {

	details := ledger.Details{
		ledger.DetailItem:   itemID,
		ledger.DetailQty:    fmt.Sprintf("%d", quantity),
		ledger.DetailOp:     operationID,
		ledger.DetailReason: reason,
	}
	if recipientID != "" {
		details[ledger.DetailRecipient] = recipientID
	}
	rec := &ledger.Record{
		Kind:             kind,
		AccountID:        acct.ID(),
		Details:          details,
		ResultingBalance: acct.Balance(),
	}
	return e.append(ctx, rec)
}

// =============================================================================
// LOG / SNAPSHOT PLUMBING
// =============================================================================

// append writes a record and drives the periodic snapshot cadence.
func (e *Engine) append(ctx context.Context, rec *ledger.Record) error {
	if err := e.log.Append(ctx, rec); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}

	e.mu.Lock()
	if rec.Timestamp > e.lastTS {
		e.lastTS = rec.Timestamp
	}
	e.mu.Unlock()

	if n := e.appends.Add(1); e.cfg.SnapshotEvery > 0 && n%int64(e.cfg.SnapshotEvery) == 0 {
		if err := e.Snapshot(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("periodic snapshot failed")
		}
	}
	return nil
}

// Snapshot persists the current recovery state. Records with timestamps at
// or before the cutoff are never replayed again.
func (e *Engine) Snapshot(ctx context.Context) error {
	if e.snaps == nil {
		return nil
	}

	e.mu.RLock()
	intents := make([]ledger.PurchaseIntent, 0, len(e.intents))
	for _, it := range e.intents {
		intents = append(intents, *it)
	}
	cutoff := e.lastTS
	e.mu.RUnlock()

	return e.snaps.Save(ctx, ledger.Snapshot{
		ActiveIntents:   intents,
		Idempotency:     e.index.Entries(),
		CutoffTimestamp: cutoff,
		TakenAt:         e.now(),
	})
}

// Close snapshots the current state and closes the log. Call on graceful
// shutdown.
func (e *Engine) Close(ctx context.Context) error {
	if err := e.Snapshot(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("shutdown snapshot failed")
	}
	return e.log.Close()
}

// =============================================================================
// INTENT CLEANUP
// =============================================================================

// maybeCleanup sweeps expired pending intents every CleanupEvery calls.
// Piggybacked on operation traffic; no background goroutine needed.
func (e *Engine) maybeCleanup() {
	if e.calls.Add(1)%int64(e.cfg.CleanupEvery) != 0 {
		return
	}

	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for orderID, intent := range e.intents {
		if intent.ExpiredAt(now, e.cfg.IntentExpiry) {
			intent.Status = ledger.IntentExpired
			delete(e.intents, orderID)
			e.logger.Debug().Str("order", orderID).Msg("expired purchase intent dropped")
		}
	}
}
