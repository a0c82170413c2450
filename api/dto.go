/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP surface. These decouple the engine's types
  from the external API contract.

NAMING CONVENTION:
  - *Request: request body types from clients
  - *Response / *DTO: response types returned to clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
*/
package api

import "github.com/emberplay/economy-engine/economy"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// InitiatePurchaseRequest opens a purchase intent.
type InitiatePurchaseRequest struct {
	AccountID string `json:"account_id"`
	ProductID string `json:"product_id"`
}

// VerifyPurchaseRequest completes a purchase with a provider receipt.
type VerifyPurchaseRequest struct {
	AccountID    string `json:"account_id"`
	ReceiptToken string `json:"receipt_token"`
}

// BuyRequest buys a shop item.
type BuyRequest struct {
	AccountID   string `json:"account_id"`
	ItemID      string `json:"item_id"`
	Quantity    int    `json:"quantity"`
	OperationID string `json:"operation_id"`
}

// GiftRequest gifts a shop item to another account.
type GiftRequest struct {
	GiverID     string `json:"giver_id"`
	ReceiverID  string `json:"receiver_id"`
	ItemID      string `json:"item_id"`
	Quantity    int    `json:"quantity"`
	OperationID string `json:"operation_id"`
}

// CreateAccountRequest registers an account (dev/test surface).
type CreateAccountRequest struct {
	ID      string `json:"id"`
	Balance int64  `json:"balance"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// IntentDTO describes an opened purchase intent.
type IntentDTO struct {
	OrderID   string `json:"order_id"`
	AccountID string `json:"account_id"`
	ProductID string `json:"product_id"`
	CreatedAt string `json:"created_at"`
	Status    string `json:"status"`
}

// ResultDTO mirrors economy.Result.
type ResultDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Balance int64  `json:"balance"`
}

// AccountDTO describes an account's balance and inventory.
type AccountDTO struct {
	ID        string                  `json:"id"`
	Balance   int64                   `json:"balance"`
	Inventory []economy.InventoryItem `json:"inventory"`
}

// SignatureDTO carries a generated receipt token (test utility).
type SignatureDTO struct {
	OrderID string `json:"order_id"`
	Token   string `json:"token"`
}

// ErrorDTO is the uniform error body.
type ErrorDTO struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
