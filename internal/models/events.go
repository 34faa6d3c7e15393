package models

import "time"

// Event types
const (
	EventTypeTransactionCreated   = "TRANSACTION_CREATED"
	EventTypeTransactionCompleted = "TRANSACTION_COMPLETED"
	EventTypeTransactionFailed    = "TRANSACTION_FAILED"
	EventTypeTransactionRefunded  = "TRANSACTION_REFUNDED"
	EventTypeRateCardUpdated      = "RATE_CARD_UPDATED"
	EventTypeWalletSettlement     = "WALLET_SETTLEMENT"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionEvent is published when a rate card transaction is created or
// moves to a terminal state. Downstream consumers (earnings, notifications)
// key on TransactionID.
type TransactionEvent struct {
	BaseEvent
	TransactionID  string  `json:"transaction_id"`
	RateCardID     string  `json:"rate_card_id"`
	ItemID         string  `json:"item_id"`
	BuyerID        string  `json:"buyer_id"`
	SellerID       string  `json:"seller_id"`
	TotalAmount    float64 `json:"total_amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	IdempotencyKey string  `json:"idempotency_key"`
	Reason         string  `json:"reason,omitempty"`
}

// RateCardUpdatedEvent is published on any rate card or item mutation so
// downstream caches and search indexes can invalidate.
type RateCardUpdatedEvent struct {
	BaseEvent
	RateCardID string `json:"rate_card_id"`
	OwnerID    string `json:"owner_id"`
	Action     string `json:"action"` // created, updated, deleted
}

// WalletSettlementEvent is published by the wallet service when a transfer
// settles asynchronously. It drives transactions left pending by a wallet
// timeout to their terminal state.
type WalletSettlementEvent struct {
	BaseEvent
	IdempotencyKey string `json:"idempotency_key"`
	Status         string `json:"status"` // completed or failed
	Reason         string `json:"reason,omitempty"`
}
