/*
Package sqlite provides a SQLite-backed AccountProvider.

PURPOSE:
  Persists the account-side state the engine consults through the
  economy.Account capability interface: balances, bounded inventories, and
  processed premium orders. The ledger itself lives in its own
  hash-chained file (store/chainfile); this store only backs accounts.

KEY TABLES:
  accounts:         id, balance
  inventory:        one row per item stack
  processed_orders: fulfilled premium order ids per account

ATOMIC DEBITS:
  TryDebit is a single conditional UPDATE (balance >= amount), so two
  concurrent debits can never both succeed past the available balance -
  the database enforces the invariant the engine's per-account lock
  already provides in-process.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block and crash
  recovery is cheap.

SEE ALSO:
  - economy/account.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/emberplay/economy-engine/economy"
)

// DefaultCapacity is the inventory slot limit for new stores.
const DefaultCapacity = 50

// Store implements economy.AccountProvider on SQLite.
type Store struct {
	db       *sql.DB
	capacity int
}

// New opens (or creates) the account database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; funnel everything through one connection so
	// concurrent debits queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, capacity: DefaultCapacity}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// SetCapacity overrides the inventory slot limit.
func (s *Store) SetCapacity(capacity int) { s.capacity = capacity }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id      TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS inventory (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		item_id    TEXT NOT NULL,
		quantity   INTEGER NOT NULL,
		bind       TEXT NOT NULL,
		bound_to   TEXT NOT NULL DEFAULT '',
		UNIQUE(account_id, item_id, bind, bound_to)
	);
	CREATE INDEX IF NOT EXISTS idx_inventory_account ON inventory(account_id);

	CREATE TABLE IF NOT EXISTS processed_orders (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		order_id   TEXT NOT NULL,
		PRIMARY KEY (account_id, order_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateAccount registers a new account with a starting balance.
func (s *Store) CreateAccount(ctx context.Context, id string, balance int64) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO accounts (id, balance) VALUES (?, ?)`, id, balance)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s already exists", id)
	}
	return nil
}

// Account resolves an account id.
func (s *Store) Account(ctx context.Context, id string) (economy.Account, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, economy.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	return &account{store: s, id: id}, nil
}

// =============================================================================
// ACCOUNT
// =============================================================================

// account is a thin capability handle; every method hits the database, so
// state is always current and shared across handles.
type account struct {
	store *Store
	id    string
}

func (a *account) ID() string { return a.id }

func (a *account) Balance() int64 {
	var balance int64
	err := a.store.db.QueryRow(`SELECT balance FROM accounts WHERE id = ?`, a.id).Scan(&balance)
	if err != nil {
		return 0
	}
	return balance
}

func (a *account) TryDebit(amount int64) bool {
	if amount < 0 {
		return false
	}
	res, err := a.store.db.Exec(
		`UPDATE accounts SET balance = balance - ? WHERE id = ? AND balance >= ?`,
		amount, a.id, amount)
	if err != nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n == 1
}

func (a *account) Credit(amount int64) {
	a.store.db.Exec(`UPDATE accounts SET balance = balance + ? WHERE id = ?`, amount, a.id)
}

func (a *account) AddItem(itemID string, quantity int, bind economy.BindPolicy, boundTo string) bool {
	// Merging into an existing stack does not consume a slot.
	res, err := a.store.db.Exec(
		`UPDATE inventory SET quantity = quantity + ?
		 WHERE account_id = ? AND item_id = ? AND bind = ? AND bound_to = ?`,
		quantity, a.id, itemID, string(bind), boundTo)
	if err == nil {
		if n, _ := res.RowsAffected(); n == 1 {
			return true
		}
	}

	var slots int
	if err := a.store.db.QueryRow(
		`SELECT COUNT(*) FROM inventory WHERE account_id = ?`, a.id).Scan(&slots); err != nil {
		return false
	}
	if slots >= a.store.capacity {
		return false
	}

	_, err = a.store.db.Exec(
		`INSERT INTO inventory (account_id, item_id, quantity, bind, bound_to)
		 VALUES (?, ?, ?, ?, ?)`,
		a.id, itemID, quantity, string(bind), boundTo)
	return err == nil
}

func (a *account) HasProcessedOrder(orderID string) bool {
	var one int
	err := a.store.db.QueryRow(
		`SELECT 1 FROM processed_orders WHERE account_id = ? AND order_id = ?`,
		a.id, orderID).Scan(&one)
	return err == nil
}

func (a *account) MarkOrderProcessed(orderID string) {
	a.store.db.Exec(
		`INSERT OR IGNORE INTO processed_orders (account_id, order_id) VALUES (?, ?)`,
		a.id, orderID)
}

// Items implements economy.InventoryReader.
func (a *account) Items() []economy.InventoryItem {
	rows, err := a.store.db.Query(
		`SELECT item_id, quantity, bind, bound_to FROM inventory WHERE account_id = ? ORDER BY item_id`,
		a.id)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var items []economy.InventoryItem
	for rows.Next() {
		var it economy.InventoryItem
		var bind string
		if err := rows.Scan(&it.ItemID, &it.Quantity, &bind, &it.BoundTo); err != nil {
			return items
		}
		it.Bind = economy.BindPolicy(bind)
		items = append(items, it)
	}
	return items
}
