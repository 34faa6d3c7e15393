package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ratecard-service/internal/models"
	"ratecard-service/internal/store"
	"ratecard-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ledgerStore is the slice of the store the ledger depends on. *store.Store
// satisfies it; tests inject an in-memory fake.
type ledgerStore interface {
	GetRateCardByID(ctx context.Context, id string) (*models.RateCard, error)
	GetItem(ctx context.Context, rateCardID, itemID string) (*models.Item, error)
	GetTransactionByID(ctx context.Context, id string) (*models.RateCardTransaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (*models.RateCardTransaction, error)
	CreateTransaction(ctx context.Context, tx *models.RateCardTransaction) (bool, error)
	CompleteTransaction(ctx context.Context, id string) (bool, error)
	FailTransaction(ctx context.Context, id string) (bool, error)
	RefundTransaction(ctx context.Context, id string) (bool, error)
	SearchTransactions(ctx context.Context, f store.TransactionFilter) ([]models.RateCardTransaction, error)
	ListPendingTransactionsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.RateCardTransaction, error)
}

// Publisher publishes domain events for downstream consumers
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, event *models.TransactionEvent) error
	PublishRateCardUpdated(ctx context.Context, event *models.RateCardUpdatedEvent) error
}

// legacyCardSource synthesizes the legacy-compatible card for sellers whose
// pricing has not been migrated. Their cards and items are never persisted,
// so the ledger re-derives them on demand when pricing a purchase.
type legacyCardSource interface {
	GetLegacyCompatibleRateCard(ctx context.Context, performerID string) (*models.RateCard, error)
}

// idempotencyCache is the redis fast path for replay detection. Best-effort:
// the unique index in Postgres stays the source of truth.
type idempotencyCache interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	MarkIdempotencyKey(ctx context.Context, key, transactionID string) error
}

// Ledger records and finalizes purchases with at-most-once semantics per
// idempotency key. It is the only component that mutates transaction state.
type Ledger struct {
	store         ledgerStore
	wallet        Wallet
	legacy        legacyCardSource
	cache         idempotencyCache
	publisher     Publisher
	logger        *zap.Logger
	walletTimeout time.Duration
}

// NewLedger creates a transaction ledger. legacy, cache and publisher may be
// nil; cache and publisher are best-effort side channels.
func NewLedger(st ledgerStore, wallet Wallet, legacy legacyCardSource, cache idempotencyCache, publisher Publisher, walletTimeout time.Duration) *Ledger {
	if walletTimeout <= 0 {
		walletTimeout = 10 * time.Second
	}
	return &Ledger{
		store:         st,
		wallet:        wallet,
		legacy:        legacy,
		cache:         cache,
		publisher:     publisher,
		logger:        util.GetLogger(),
		walletTimeout: walletTimeout,
	}
}

// ApplyItemRequest is a purchase request against a specific rate card item
type ApplyItemRequest struct {
	RateCardID     string          `json:"rateCardId" binding:"required"`
	ItemID         string          `json:"itemId" binding:"required"`
	BuyerID        string          `json:"buyerId" binding:"required"`
	SellerID       string          `json:"sellerId" binding:"required"`
	Quantity       int             `json:"quantity"`
	IdempotencyKey string          `json:"idempotencyKey" binding:"required"`
	GeoDemo        *models.GeoDemo `json:"geoDemo,omitempty"`
	Metadata       models.Attrs    `json:"metadata,omitempty"`
}

// ApplyItem executes a purchase exactly once per idempotency key.
//
// A retry with a known key returns the stored transaction verbatim, with no
// re-resolution and no second wallet transfer, regardless of what the
// request carries. Price and currency always come from the store, never
// from the caller. The returned transaction always has a defined status:
// wallet rejection yields a failed row, a wallet timeout leaves the row
// pending for the reconciliation sweep.
func (l *Ledger) ApplyItem(ctx context.Context, req *ApplyItemRequest) (*models.RateCardTransaction, error) {
	ctx, span := util.StartSpan(ctx, "Ledger.ApplyItem")
	defer span.End()

	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", models.ErrValidation)
	}
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotencyKey is required", models.ErrValidation)
	}
	if req.BuyerID == "" || req.SellerID == "" {
		return nil, fmt.Errorf("%w: buyerId and sellerId are required", models.ErrValidation)
	}
	if req.GeoDemo != nil {
		if err := req.GeoDemo.Validate(); err != nil {
			return nil, err
		}
	}

	// Fast path: when the cache has never seen the key the Postgres by-key
	// lookup is skipped. A cache miss on a known key is safe: the
	// conditional insert below still loses and re-reads the winner's row.
	seen := true
	if l.cache != nil {
		if cached, err := l.cache.CheckIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
			seen = cached
		}
	}
	if seen {
		if existing, err := l.store.GetTransactionByIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		} else if existing != nil {
			l.replay(existing)
			return existing, nil
		}
	}

	// Authoritative price: never trust the caller
	card, item, err := l.lookupItem(ctx, req)
	if err != nil {
		return nil, err
	}
	if card.Status != models.RateCardStatusActive || item.Status != models.ItemStatusActive {
		return nil, fmt.Errorf("%w: item %s is not purchasable", models.ErrNotFound, req.ItemID)
	}

	tx := &models.RateCardTransaction{
		ID:             uuid.New().String(),
		RateCardID:     card.ID,
		ItemID:         item.ID,
		BuyerID:        req.BuyerID,
		SellerID:       req.SellerID,
		Price:          item.Price,
		Currency:       item.Currency,
		Quantity:       req.Quantity,
		TotalAmount:    item.Price * float64(req.Quantity),
		Status:         models.TxStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	}
	if req.GeoDemo != nil {
		tx.AppliedGeoDemo = *req.GeoDemo
	}

	created, err := l.store.CreateTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	if !created {
		// Lost the conditional-insert race: the winner's row is the
		// transaction, this call is a replay
		winner, err := l.store.GetTransactionByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load winning transaction: %w", err)
		}
		if winner == nil {
			return nil, fmt.Errorf("transaction for key %s vanished after conflict", req.IdempotencyKey)
		}
		l.replay(winner)
		return winner, nil
	}

	util.TransactionsCreatedTotal.Inc()
	l.logger.Info("Transaction created",
		zap.String("transaction_id", tx.ID),
		zap.String("idempotency_key", tx.IdempotencyKey),
		zap.Float64("total_amount", tx.TotalAmount))

	if l.cache != nil {
		if err := l.cache.MarkIdempotencyKey(ctx, tx.IdempotencyKey, tx.ID); err != nil {
			l.logger.Warn("Failed to mark idempotency key in cache", zap.Error(err))
		}
	}

	l.publishTransaction(ctx, tx, models.EventTypeTransactionCreated, "")

	l.settle(ctx, tx)
	return tx, nil
}

// lookupItem loads the card and item backing a purchase. When the card id is
// unknown to the store it may be a synthesized legacy-compatible card, which
// is never persisted: re-derive it from the seller's legacy pricing and
// match on the deterministic ids, so legacy-derived items are purchasable
// through the same path as canonical ones.
func (l *Ledger) lookupItem(ctx context.Context, req *ApplyItemRequest) (*models.RateCard, *models.Item, error) {
	card, err := l.store.GetRateCardByID(ctx, req.RateCardID)
	if err == nil {
		item, err := l.store.GetItem(ctx, req.RateCardID, req.ItemID)
		if err != nil {
			return nil, nil, err
		}
		return card, item, nil
	}
	if !errors.Is(err, models.ErrNotFound) || l.legacy == nil {
		return nil, nil, err
	}

	legacyCard, legacyErr := l.legacy.GetLegacyCompatibleRateCard(ctx, req.SellerID)
	if legacyErr != nil {
		if errors.Is(legacyErr, models.ErrNotFound) {
			return nil, nil, err
		}
		return nil, nil, legacyErr
	}
	if legacyCard.ID != req.RateCardID {
		return nil, nil, err
	}
	for i := range legacyCard.Items {
		if legacyCard.Items[i].ID == req.ItemID {
			return legacyCard, &legacyCard.Items[i], nil
		}
	}
	return nil, nil, fmt.Errorf("%w: item %s in rate card %s", models.ErrNotFound, req.ItemID, req.RateCardID)
}

// settle drives the wallet transfer and finalizes the row. Errors never
// escape: the transaction ends pending, completed or failed.
func (l *Ledger) settle(ctx context.Context, tx *models.RateCardTransaction) {
	wctx, cancel := context.WithTimeout(ctx, l.walletTimeout)
	defer cancel()

	result, err := l.wallet.Transfer(wctx, TransferRequest{
		BuyerID:        tx.BuyerID,
		SellerID:       tx.SellerID,
		Amount:         tx.TotalAmount,
		Currency:       tx.Currency,
		IdempotencyKey: tx.IdempotencyKey,
	})
	if err != nil {
		// Timeout or transport failure: the outcome is unknown, so the
		// row stays pending until reconciliation learns the truth
		l.logger.Warn("Wallet transfer unresolved, leaving transaction pending",
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
		return
	}

	switch result.Status {
	case TransferStatusCompleted:
		l.finalize(ctx, tx, true, "")
	case TransferStatusPending:
		l.logger.Info("Wallet accepted transfer, settlement pending",
			zap.String("transaction_id", tx.ID))
	default:
		l.finalize(ctx, tx, false, result.Reason)
	}
}

// finalize applies the pending -> completed/failed transition once. The
// guarded update makes concurrent finalizers race safely: only the one that
// wins mutates the row and publishes.
func (l *Ledger) finalize(ctx context.Context, tx *models.RateCardTransaction, success bool, reason string) {
	var applied bool
	var err error
	if success {
		applied, err = l.store.CompleteTransaction(ctx, tx.ID)
	} else {
		applied, err = l.store.FailTransaction(ctx, tx.ID)
	}
	if err != nil {
		l.logger.Error("Failed to finalize transaction",
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
		return
	}
	if !applied {
		return
	}

	now := time.Now()
	tx.CompletedAt = &now
	if success {
		tx.Status = models.TxStatusCompleted
		util.TransactionsCompletedTotal.Inc()
		l.publishTransaction(ctx, tx, models.EventTypeTransactionCompleted, "")
		l.logger.Info("Transaction completed", zap.String("transaction_id", tx.ID))
	} else {
		tx.Status = models.TxStatusFailed
		util.TransactionsFailedTotal.WithLabelValues("wallet_declined").Inc()
		l.publishTransaction(ctx, tx, models.EventTypeTransactionFailed, reason)
		l.logger.Warn("Transaction failed",
			zap.String("transaction_id", tx.ID),
			zap.String("reason", reason))
	}
}

// Settle applies an asynchronous wallet settlement to the transaction
// holding the given idempotency key. Non-pending rows are left untouched,
// so replays of the same settlement are no-ops.
func (l *Ledger) Settle(ctx context.Context, idempotencyKey, status, reason string) error {
	tx, err := l.store.GetTransactionByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("%w: transaction for key %s", models.ErrNotFound, idempotencyKey)
	}
	if tx.Status != models.TxStatusPending {
		return nil
	}

	switch status {
	case models.TxStatusCompleted:
		l.finalize(ctx, tx, true, "")
	case models.TxStatusFailed:
		l.finalize(ctx, tx, false, reason)
	default:
		return fmt.Errorf("%w: settlement status %q", models.ErrValidation, status)
	}
	return nil
}

// Refund moves a completed transaction to refunded and reverses the wallet
// transfer. This is a distinct administrative operation; it never touches
// the frozen value fields.
//
// The reversal runs before the status flip: a refunded row always means the
// funds moved back. When the reversal is unresolved the row stays completed
// and the call fails, so the admin retries; the reversal key makes retries
// idempotent on the wallet side.
func (l *Ledger) Refund(ctx context.Context, transactionID string) (*models.RateCardTransaction, error) {
	ctx, span := util.StartSpan(ctx, "Ledger.Refund")
	defer span.End()

	tx, err := l.store.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status == models.TxStatusRefunded {
		return tx, nil
	}
	if tx.Status != models.TxStatusCompleted {
		return nil, fmt.Errorf("%w: cannot refund a %s transaction", models.ErrInvalidTransition, tx.Status)
	}

	wctx, cancel := context.WithTimeout(ctx, l.walletTimeout)
	defer cancel()
	result, err := l.wallet.Transfer(wctx, TransferRequest{
		BuyerID:        tx.SellerID,
		SellerID:       tx.BuyerID,
		Amount:         tx.TotalAmount,
		Currency:       tx.Currency,
		IdempotencyKey: "refund:" + tx.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("wallet reversal unresolved, refund not recorded: %w", err)
	}
	if result.Status == TransferStatusFailed {
		return nil, fmt.Errorf("%w: wallet rejected reversal: %s", models.ErrConflict, result.Reason)
	}

	applied, err := l.store.RefundTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a concurrent refund race; the other caller's reversal used
		// the same key, so no double reversal occurred
		return l.store.GetTransactionByID(ctx, transactionID)
	}

	tx.Status = models.TxStatusRefunded
	util.TransactionsRefundedTotal.Inc()
	l.publishTransaction(ctx, tx, models.EventTypeTransactionRefunded, "")
	l.logger.Info("Transaction refunded", zap.String("transaction_id", tx.ID))
	return tx, nil
}

// GetTransaction retrieves a transaction by ID
func (l *Ledger) GetTransaction(ctx context.Context, id string) (*models.RateCardTransaction, error) {
	return l.store.GetTransactionByID(ctx, id)
}

// SearchTransactions lists transactions matching the filter
func (l *Ledger) SearchTransactions(ctx context.Context, f store.TransactionFilter) ([]models.RateCardTransaction, error) {
	return l.store.SearchTransactions(ctx, f)
}

// ReconcilePending queries wallet state for stale pending transactions and
// drives each to a terminal status. Safe to re-run: every transition is
// guarded, so a row reconciles exactly once.
func (l *Ledger) ReconcilePending(ctx context.Context, olderThan time.Duration, batch int) error {
	cutoff := time.Now().Add(-olderThan)
	pending, err := l.store.ListPendingTransactionsBefore(ctx, cutoff, batch)
	if err != nil {
		return fmt.Errorf("failed to list pending transactions: %w", err)
	}

	for i := range pending {
		tx := &pending[i]

		wctx, cancel := context.WithTimeout(ctx, l.walletTimeout)
		result, err := l.wallet.GetTransfer(wctx, tx.IdempotencyKey)
		cancel()

		switch {
		case errors.Is(err, models.ErrNotFound):
			// The transfer never reached the wallet, so no funds moved
			l.finalize(ctx, tx, false, "wallet_transfer_missing")
			util.TransactionsReconciledTotal.WithLabelValues("failed").Inc()
		case err != nil:
			l.logger.Warn("Wallet lookup failed during reconciliation",
				zap.String("transaction_id", tx.ID),
				zap.Error(err))
		case result.Status == TransferStatusCompleted:
			l.finalize(ctx, tx, true, "")
			util.TransactionsReconciledTotal.WithLabelValues("completed").Inc()
		case result.Status == TransferStatusFailed:
			l.finalize(ctx, tx, false, result.Reason)
			util.TransactionsReconciledTotal.WithLabelValues("failed").Inc()
		default:
			// Still settling on the wallet side; next sweep picks it up
		}
	}
	return nil
}

func (l *Ledger) replay(tx *models.RateCardTransaction) {
	util.IdempotentReplaysTotal.Inc()
	l.logger.Info("Idempotent replay",
		zap.String("idempotency_key", tx.IdempotencyKey),
		zap.String("transaction_id", tx.ID),
		zap.String("status", tx.Status))
}

func (l *Ledger) publishTransaction(ctx context.Context, tx *models.RateCardTransaction, eventType, reason string) {
	if l.publisher == nil {
		return
	}
	event := &models.TransactionEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		TransactionID:  tx.ID,
		RateCardID:     tx.RateCardID,
		ItemID:         tx.ItemID,
		BuyerID:        tx.BuyerID,
		SellerID:       tx.SellerID,
		TotalAmount:    tx.TotalAmount,
		Currency:       tx.Currency,
		Status:         tx.Status,
		IdempotencyKey: tx.IdempotencyKey,
		Reason:         reason,
	}
	if err := l.publisher.PublishTransactionEvent(ctx, event); err != nil {
		l.logger.Error("Failed to publish transaction event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
