/*
Package memory provides an in-memory AccountProvider for tests and dev mode.

Accounts here model the external character store: a balance, a bounded
inventory, and the processed-order marks that make premium fulfillment
idempotent across ledger resets.
*/
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/emberplay/economy-engine/economy"
)

// DefaultCapacity is the inventory slot limit for new accounts.
const DefaultCapacity = 50

// Store holds accounts in memory.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*account
	capacity int
}

func New() *Store {
	return &Store{accounts: make(map[string]*account), capacity: DefaultCapacity}
}

// NewWithCapacity overrides the inventory slot limit (tests use tiny ones).
func NewWithCapacity(capacity int) *Store {
	s := New()
	s.capacity = capacity
	return s
}

// CreateAccount registers a new account with a starting balance.
func (s *Store) CreateAccount(_ context.Context, id string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[id]; exists {
		return fmt.Errorf("account %s already exists", id)
	}
	s.accounts[id] = &account{
		id:       id,
		balance:  balance,
		capacity: s.capacity,
		orders:   make(map[string]bool),
	}
	return nil
}

// Account resolves an account id.
func (s *Store) Account(_ context.Context, id string) (economy.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, economy.ErrAccountNotFound
	}
	return a, nil
}

// =============================================================================
// ACCOUNT
// =============================================================================

type slot struct {
	itemID   string
	quantity int
	bind     economy.BindPolicy
	boundTo  string
}

type account struct {
	mu       sync.Mutex
	id       string
	balance  int64
	capacity int
	slots    []slot
	orders   map[string]bool
}

func (a *account) ID() string { return a.id }

func (a *account) Balance() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

func (a *account) TryDebit(amount int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount < 0 || a.balance < amount {
		return false
	}
	a.balance -= amount
	return true
}

func (a *account) Credit(amount int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance += amount
}

func (a *account) AddItem(itemID string, quantity int, bind economy.BindPolicy, boundTo string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Stacks merge into an existing slot; only new slots consume capacity.
	for i := range a.slots {
		s := &a.slots[i]
		if s.itemID == itemID && s.bind == bind && s.boundTo == boundTo {
			s.quantity += quantity
			return true
		}
	}
	if len(a.slots) >= a.capacity {
		return false
	}
	a.slots = append(a.slots, slot{itemID: itemID, quantity: quantity, bind: bind, boundTo: boundTo})
	return true
}

func (a *account) HasProcessedOrder(orderID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orders[orderID]
}

func (a *account) MarkOrderProcessed(orderID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders[orderID] = true
}

// Items implements economy.InventoryReader.
func (a *account) Items() []economy.InventoryItem {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]economy.InventoryItem, len(a.slots))
	for i, s := range a.slots {
		out[i] = economy.InventoryItem{
			ItemID:   s.itemID,
			Quantity: s.quantity,
			Bind:     s.bind,
			BoundTo:  s.boundTo,
		}
	}
	return out
}
