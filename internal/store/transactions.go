package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ratecard-service/internal/models"
)

// CreateTransaction inserts a transaction row keyed by its idempotency key.
// The insert is a single conditional operation: when another call already
// created a row for the same key, no row is written and (false, nil) is
// returned so the caller can re-read the winner's row.
func (s *Store) CreateTransaction(ctx context.Context, tx *models.RateCardTransaction) (bool, error) {
	query := `
		INSERT INTO rate_card_transactions (id, rate_card_id, item_id, buyer_id, seller_id,
			price, currency, quantity, total_amount, applied_geo_demo, status,
			idempotency_key, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING created_at`

	row := s.db.QueryRowxContext(ctx, query,
		tx.ID, tx.RateCardID, tx.ItemID, tx.BuyerID, tx.SellerID,
		tx.Price, tx.Currency, tx.Quantity, tx.TotalAmount, tx.AppliedGeoDemo, tx.Status,
		tx.IdempotencyKey, tx.Metadata)

	err := row.Scan(&tx.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return true, nil
}

// GetTransactionByID retrieves a transaction by ID
func (s *Store) GetTransactionByID(ctx context.Context, id string) (*models.RateCardTransaction, error) {
	var tx models.RateCardTransaction
	err := s.db.GetContext(ctx, &tx, "SELECT * FROM rate_card_transactions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetTransactionByIdempotencyKey retrieves a transaction by its idempotency
// key. Returns (nil, nil) when no row exists.
func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*models.RateCardTransaction, error) {
	var tx models.RateCardTransaction
	err := s.db.GetContext(ctx, &tx,
		"SELECT * FROM rate_card_transactions WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CompleteTransaction moves pending -> completed and stamps completed_at.
// The status guard makes the transition safe to race: only one finalizer
// observes applied=true.
func (s *Store) CompleteTransaction(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE rate_card_transactions SET status = $1, completed_at = NOW() WHERE id = $2 AND status = $3",
		models.TxStatusCompleted, id, models.TxStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FailTransaction moves pending -> failed
func (s *Store) FailTransaction(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE rate_card_transactions SET status = $1, completed_at = NOW() WHERE id = $2 AND status = $3",
		models.TxStatusFailed, id, models.TxStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RefundTransaction moves completed -> refunded. Pending and failed rows are
// not refundable.
func (s *Store) RefundTransaction(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE rate_card_transactions SET status = $1 WHERE id = $2 AND status = $3",
		models.TxStatusRefunded, id, models.TxStatusCompleted)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TransactionFilter narrows SearchTransactions results
type TransactionFilter struct {
	BuyerID    string
	SellerID   string
	RateCardID string
	Status     string
	Limit      int
	Offset     int
}

// SearchTransactions lists transactions matching the filter, newest first
func (s *Store) SearchTransactions(ctx context.Context, f TransactionFilter) ([]models.RateCardTransaction, error) {
	query := "SELECT * FROM rate_card_transactions WHERE 1=1"
	args := []interface{}{}

	if f.BuyerID != "" {
		args = append(args, f.BuyerID)
		query += fmt.Sprintf(" AND buyer_id = $%d", len(args))
	}
	if f.SellerID != "" {
		args = append(args, f.SellerID)
		query += fmt.Sprintf(" AND seller_id = $%d", len(args))
	}
	if f.RateCardID != "" {
		args = append(args, f.RateCardID)
		query += fmt.Sprintf(" AND rate_card_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var txs []models.RateCardTransaction
	err := s.db.SelectContext(ctx, &txs, query, args...)
	return txs, err
}

// ListPendingTransactionsBefore returns pending rows created before the
// cutoff, oldest first. Input to the reconciliation sweep.
func (s *Store) ListPendingTransactionsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.RateCardTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var txs []models.RateCardTransaction
	err := s.db.SelectContext(ctx, &txs,
		"SELECT * FROM rate_card_transactions WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3",
		models.TxStatusPending, cutoff, limit)
	return txs, err
}
