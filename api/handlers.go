/*
handlers.go - HTTP handlers for the economy engine

PURPOSE:
  Exposes the transaction orchestrator over REST. Handlers parse and
  validate input, delegate to the engine, and serialize results.

ENDPOINTS:
  Purchases:
    POST /api/purchases                 Open a purchase intent
    POST /api/purchases/{orderID}/verify Verify a receipt, credit currency

  Shop:
    POST /api/shop/buy                  Buy an item (idempotent)
    POST /api/shop/gift                 Gift an item (idempotent saga)

  Accounts (dev/inspection surface):
    POST /api/accounts                  Create account
    GET  /api/accounts/{id}             Balance + inventory

  Admin:
    GET  /api/admin/signature/{orderID} Generate a receipt token
    POST /api/admin/verify-chain        Re-verify the hash chain

ERROR HANDLING:
  Expected outcomes (insufficient funds, inventory full, mismatches) are
  200s with success=false - they are results, not errors. Rate-limit
  denials map to 429. Only infrastructure failures return 5xx.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emberplay/economy-engine/economy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// AccountCreator registers new accounts; implemented by store/sqlite and
// store/memory. Only the dev/test account endpoint needs it.
type AccountCreator interface {
	CreateAccount(ctx context.Context, id string, balance int64) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine   *economy.Engine
	Accounts economy.AccountProvider
	Creator  AccountCreator
}

func NewHandler(engine *economy.Engine, accounts economy.AccountProvider, creator AccountCreator) *Handler {
	return &Handler{Engine: engine, Accounts: accounts, Creator: creator}
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// InitiatePurchase opens a purchase intent.
func (h *Handler) InitiatePurchase(w http.ResponseWriter, r *http.Request) {
	var req InitiatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AccountID == "" || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "account_id and product_id are required", nil)
		return
	}

	intent, err := h.Engine.InitiatePurchase(r.Context(), req.AccountID, req.ProductID)
	switch {
	case errors.Is(err, economy.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Purchase rate limit exceeded", nil)
		return
	case errors.Is(err, economy.ErrUnknownProduct):
		writeError(w, http.StatusNotFound, "Unknown product", nil)
		return
	case errors.Is(err, economy.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to open purchase intent", err)
		return
	}

	writeJSON(w, http.StatusCreated, IntentDTO{
		OrderID:   intent.OrderID,
		AccountID: intent.AccountID,
		ProductID: intent.ProductID,
		CreatedAt: intent.CreatedAt.UTC().Format(time.RFC3339),
		Status:    string(intent.Status),
	})
}

// VerifyPurchase validates a receipt and credits the account.
func (h *Handler) VerifyPurchase(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req VerifyPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required", nil)
		return
	}

	result, err := h.Engine.VerifyPurchase(r.Context(), req.AccountID, orderID, req.ReceiptToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Verification failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ResultDTO(result))
}

// =============================================================================
// SHOP HANDLERS
// =============================================================================

// BuyShopItem buys a shop item, idempotent on operation_id.
func (h *Handler) BuyShopItem(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AccountID == "" || req.ItemID == "" || req.OperationID == "" {
		writeError(w, http.StatusBadRequest, "account_id, item_id, and operation_id are required", nil)
		return
	}

	result, err := h.Engine.BuyShopItem(r.Context(), req.AccountID, req.ItemID, req.Quantity, req.OperationID)
	if err != nil {
		if errors.Is(err, economy.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "Account not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Buy failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ResultDTO(result))
}

// GiftShopItem gifts a shop item, idempotent on operation_id.
func (h *Handler) GiftShopItem(w http.ResponseWriter, r *http.Request) {
	var req GiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.GiverID == "" || req.ReceiverID == "" || req.ItemID == "" || req.OperationID == "" {
		writeError(w, http.StatusBadRequest, "giver_id, receiver_id, item_id, and operation_id are required", nil)
		return
	}

	result, err := h.Engine.GiftShopItem(r.Context(), req.GiverID, req.ReceiverID, req.ItemID, req.Quantity, req.OperationID)
	if err != nil {
		if errors.Is(err, economy.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "Account not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Gift failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ResultDTO(result))
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// CreateAccount registers an account. Dev/test surface - production
// accounts come from the character service.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	if req.Balance < 0 {
		writeError(w, http.StatusBadRequest, "balance must be non-negative", nil)
		return
	}

	if err := h.Creator.CreateAccount(r.Context(), req.ID, req.Balance); err != nil {
		writeError(w, http.StatusConflict, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, AccountDTO{ID: req.ID, Balance: req.Balance})
}

// GetAccount returns balance and inventory.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	acct, err := h.Accounts.Account(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}

	dto := AccountDTO{ID: id, Balance: acct.Balance()}
	if reader, ok := acct.(economy.InventoryReader); ok {
		dto.Inventory = reader.Items()
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GenerateSignature mints a receipt token for an order id. Mirrors what the
// external payment provider would supply; test utility only.
func (h *Handler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	writeJSON(w, http.StatusOK, SignatureDTO{
		OrderID: orderID,
		Token:   h.Engine.GenerateSignature(orderID),
	})
}

// VerifyChain re-validates the full hash chain on demand.
func (h *Handler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.VerifyChain(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Ledger integrity violation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Health is the liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := ErrorDTO{Error: msg}
	if err != nil {
		body.Details = err.Error()
	}
	writeJSON(w, status, body)
}
