/*
Package ledger provides the core transaction ledger for the game economy.

PURPOSE:
  This package contains the record model and algorithms shared by every
  economy operation: the hash-chained ledger record, the purchase intent
  lifecycle, the idempotency index, snapshots, and startup recovery.
  It is domain logic only - persistence lives behind the Log and
  SnapshotStore interfaces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: An immutable, hash-chained ledger entry
  - RecordKind: What kind of economy event a record describes
  - Details: Free-form key:value annotations attached to a record
  - PurchaseIntent: A premium purchase that has been opened but not verified

DESIGN PRINCIPLES:
  1. Immutability: Records are never modified after append
  2. Tamper evidence: Every record carries the hash of its predecessor
  3. Replayability: In-memory state is always reconstructible from records
  4. Idempotency: Client-retried operations are applied exactly once

SEE ALSO:
  - record.go: Canonical serialization and hash computation
  - replay.go: Startup recovery from snapshot + log
  - store/chainfile: File-backed Log implementation
*/
package ledger

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// RECORD KIND - What kind of economy event a record describes
// =============================================================================

type RecordKind string

const (
	KindPurchaseIntent   RecordKind = "purchase_intent"   // Premium purchase opened
	KindPurchaseVerified RecordKind = "purchase_verified" // Receipt verified, currency credited
	KindShopBuy          RecordKind = "shop_buy"          // Shop item bought
	KindShopBuyFailed    RecordKind = "shop_buy_failed"   // Shop buy rejected (with reason)
	KindGiftBuy          RecordKind = "gift_buy"          // Gift delivered to recipient
	KindGiftBuyFailed    RecordKind = "gift_buy_failed"   // Gift rejected and refunded
)

// Valid reports whether k is a known record kind.
func (k RecordKind) Valid() bool {
	switch k {
	case KindPurchaseIntent, KindPurchaseVerified,
		KindShopBuy, KindShopBuyFailed,
		KindGiftBuy, KindGiftBuyFailed:
		return true
	}
	return false
}

// Durable reports whether an append of this kind must be synced to disk
// before the operation acknowledges the caller. Completed balance mutations
// are durable; pending intents and failure annotations may be buffered.
func (k RecordKind) Durable() bool {
	switch k {
	case KindPurchaseVerified, KindShopBuy, KindGiftBuy:
		return true
	}
	return false
}

// =============================================================================
// DETAILS - Free-form key:value annotations
// =============================================================================

// Well-known detail keys. Records are free to carry additional keys.
const (
	DetailOrder     = "order"     // Order id of a purchase intent
	DetailProduct   = "product"   // Catalog product id
	DetailItem      = "item"      // Shop item id
	DetailQty       = "qty"       // Quantity bought or gifted
	DetailBind      = "bind"      // Bind policy applied to the granted item
	DetailBoundTo   = "bound_to"  // Account the item was bound to, if any
	DetailGiver     = "giver"     // Gifting account
	DetailRecipient = "recipient" // Receiving account
	DetailReason    = "reason"    // Failure reason on *_failed records
	DetailOp        = "op"        // Client-supplied operation id
	DetailPriceUSD  = "price_usd" // Real-money price of the verified product
)

// Failure reasons recorded on *_failed records.
const (
	ReasonInsufficientFunds     = "insufficient_funds"
	ReasonInventoryFull         = "inventory_full"
	ReasonReceiverInventoryFull = "receiver_inventory_full"
)

// Details annotates a record with free-form key:value pairs.
// Keys and values are percent-escaped on serialization, so any string is safe.
type Details map[string]string

// Encode serializes details deterministically: keys sorted, each pair
// escaped and written as key:value, pairs joined by semicolons.
// Determinism matters - the encoded form is part of the record hash.
func (d Details) Encode() string {
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+":"+url.QueryEscape(d[k]))
	}
	return strings.Join(parts, ";")
}

// DecodeDetails parses the serialized form produced by Encode.
func DecodeDetails(s string) (Details, error) {
	if s == "" {
		return Details{}, nil
	}
	d := Details{}
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, ErrCorruptRecord
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, ErrCorruptRecord
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			return nil, ErrCorruptRecord
		}
		d[key] = val
	}
	return d, nil
}

// =============================================================================
// RECORD - Immutable, hash-chained ledger entry
// =============================================================================

// Record is a single entry in the append-only economy ledger.
//
// INVARIANTS:
//   - RecordHash = sha256(PreviousHash || canonical serialization of the rest)
//   - The first record's PreviousHash is GenesisHash
//   - Timestamps are strictly increasing across the whole ledger
type Record struct {
	Timestamp        int64 // Unix nanoseconds, assigned by the Log on append
	Kind             RecordKind
	AccountID        string
	Details          Details
	BalanceDelta     int64 // Signed currency change applied by this event
	ResultingBalance int64 // Account balance after the event
	PreviousHash     string
	RecordHash       string
}

// Time returns the record timestamp as a time.Time.
func (r *Record) Time() time.Time {
	return time.Unix(0, r.Timestamp)
}

// =============================================================================
// PURCHASE INTENT - Opened premium purchase awaiting verification
// =============================================================================

type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentCompleted IntentStatus = "completed"
	IntentExpired   IntentStatus = "expired"
)

// PurchaseIntent tracks a premium purchase between initiation and receipt
// verification. Owned exclusively by the engine; callers only read it.
type PurchaseIntent struct {
	OrderID   string       `json:"order_id"`
	AccountID string       `json:"account_id"`
	ProductID string       `json:"product_id"`
	CreatedAt time.Time    `json:"created_at"`
	Status    IntentStatus `json:"status"`
}

// ExpiredAt reports whether the intent has outlived the pending window.
func (p *PurchaseIntent) ExpiredAt(now time.Time, window time.Duration) bool {
	return p.Status == IntentPending && now.Sub(p.CreatedAt) > window
}
