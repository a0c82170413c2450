/*
Package economy orchestrates the game's virtual-currency operations on top
of the ledger: premium purchases, shop buys, and peer-to-peer gifting.

PURPOSE:
  The Engine is the public face of the economy. It sequences
  intent -> verification -> fulfillment -> ledger append, drives two-party
  gift sagas with compensation, and guarantees exactly-once application of
  client-retried operations.

KEY CONCEPTS IN THIS FILE (account.go):
  - Account: the capability interface through which the engine mutates
    balances and inventory. The engine never owns account identity or
    inventory slots; it only invokes these primitives and logs the outcome.
  - AccountProvider: resolves authenticated account ids to Accounts.

SEE ALSO:
  - engine.go: The orchestrator
  - store/sqlite, store/memory: Account providers
*/
package economy

import (
	"context"
	"errors"
)

// ErrAccountNotFound is returned by providers for unknown account ids.
var ErrAccountNotFound = errors.New("account not found")

// =============================================================================
// BIND POLICY - How a granted item binds to its owner
// =============================================================================

type BindPolicy string

const (
	BindNone     BindPolicy = "none"      // Freely tradable
	BindOnPickup BindPolicy = "on_pickup" // Bound to the recipient on grant
	BindOnEquip  BindPolicy = "on_equip"  // Bound later, when first equipped
)

// =============================================================================
// ACCOUNT - Capability interface over the external character store
// =============================================================================

// Account exposes the balance and inventory mutation primitives the engine
// needs. Implementations must make TryDebit atomic: concurrent debits
// against one account may not both succeed past the available balance.
type Account interface {
	// ID returns the account identifier.
	ID() string

	// Balance returns the current virtual-currency balance.
	Balance() int64

	// TryDebit atomically subtracts amount if the balance covers it.
	TryDebit(amount int64) bool

	// Credit adds amount unconditionally. Used for grants and refunds.
	Credit(amount int64)

	// AddItem grants quantity of an item, applying the bind policy.
	// Returns false when the inventory cannot hold the item.
	AddItem(itemID string, quantity int, bind BindPolicy, boundTo string) bool

	// HasProcessedOrder reports whether a premium order was already
	// fulfilled for this account. Survives independently of the ledger.
	HasProcessedOrder(orderID string) bool

	// MarkOrderProcessed records a fulfilled premium order.
	MarkOrderProcessed(orderID string)
}

// AccountProvider resolves account ids. The caller supplies already
// authenticated ids; the provider only maps them to capabilities.
type AccountProvider interface {
	Account(ctx context.Context, id string) (Account, error)
}

// =============================================================================
// INVENTORY INSPECTION - Optional, for the API surface
// =============================================================================

// InventoryItem describes one granted inventory stack.
type InventoryItem struct {
	ItemID   string     `json:"item_id"`
	Quantity int        `json:"quantity"`
	Bind     BindPolicy `json:"bind"`
	BoundTo  string     `json:"bound_to,omitempty"`
}

// InventoryReader is implemented by account stores that can enumerate
// inventory, for read-only API endpoints.
type InventoryReader interface {
	Items() []InventoryItem
}
