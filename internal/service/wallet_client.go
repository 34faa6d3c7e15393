package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ratecard-service/internal/models"
	"ratecard-service/internal/util"

	"go.uber.org/zap"
)

// Transfer outcomes reported by the wallet service
const (
	TransferStatusCompleted = "completed"
	TransferStatusFailed    = "failed"
	TransferStatusPending   = "pending"
)

// TransferRequest debits the buyer and credits the seller for one
// transaction. The idempotency key makes the wallet side at-most-once too.
type TransferRequest struct {
	BuyerID        string  `json:"buyer_id"`
	SellerID       string  `json:"seller_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// TransferResult is the wallet's answer for a transfer
type TransferResult struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Wallet is the external settlement collaborator that actually moves funds
type Wallet interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	GetTransfer(ctx context.Context, idempotencyKey string) (*TransferResult, error)
}

// WalletClient is the HTTP implementation of Wallet
type WalletClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewWalletClient creates a wallet client with a bounded per-call timeout
func NewWalletClient(baseURL string, timeout time.Duration) *WalletClient {
	return &WalletClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  util.GetLogger(),
	}
}

// Transfer executes a debit/credit pair on the wallet service
func (w *WalletClient) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	start := time.Now()
	defer func() {
		util.WalletTransferLatency.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := w.client.Do(httpReq)
	if err != nil {
		util.WalletTransferFailures.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("wallet transfer failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		util.WalletTransferFailures.WithLabelValues("server_error").Inc()
		return nil, fmt.Errorf("wallet returned status %d", resp.StatusCode)
	}

	var result TransferResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode wallet response: %w", err)
	}

	w.logger.Info("Wallet transfer answered",
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.String("status", result.Status))
	return &result, nil
}

// GetTransfer queries the settlement state of a transfer by idempotency
// key. Returns ErrNotFound when the wallet never saw the transfer.
func (w *WalletClient) GetTransfer(ctx context.Context, idempotencyKey string) (*TransferResult, error) {
	endpoint := w.baseURL + "/transfers/" + url.PathEscape(idempotencyKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("wallet lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: transfer %s", models.ErrNotFound, idempotencyKey)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wallet returned status %d", resp.StatusCode)
	}

	var result TransferResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode wallet response: %w", err)
	}
	return &result, nil
}
