package worker

import (
	"context"
	"time"

	"ratecard-service/internal/broker"
	"ratecard-service/internal/models"
	"ratecard-service/internal/redisclient"
	"ratecard-service/internal/service"
	"ratecard-service/internal/util"

	"go.uber.org/zap"
)

// SettlementWorker consumes asynchronous wallet settlement events and
// applies them to transactions that were left pending by a wallet timeout
type SettlementWorker struct {
	consumer *broker.Consumer
	handler  *broker.SettlementHandler
	logger   *zap.Logger
}

// NewSettlementWorker creates a settlement worker
func NewSettlementWorker(consumer *broker.Consumer, ledger *service.Ledger) *SettlementWorker {
	handler := broker.NewSettlementHandler(func(ctx context.Context, event *models.WalletSettlementEvent) error {
		return ledger.Settle(ctx, event.IdempotencyKey, event.Status, event.Reason)
	})

	return &SettlementWorker{
		consumer: consumer,
		handler:  handler,
		logger:   util.GetLogger(),
	}
}

// Start starts consuming settlement events
func (w *SettlementWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting settlement worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *SettlementWorker) Stop() error {
	w.logger.Info("Stopping settlement worker")
	return w.consumer.Close()
}

// ReconcileWorker periodically sweeps stale pending transactions and drives
// each to a terminal state by querying wallet truth. A redis lock keeps the
// sweep on a single instance at a time; the sweep itself is idempotent, so
// a lost lock is only an efficiency concern.
type ReconcileWorker struct {
	ledger     *service.Ledger
	redis      *redisclient.Client
	interval   time.Duration
	pendingAge time.Duration
	batchSize  int
	logger     *zap.Logger
}

// NewReconcileWorker creates a reconciliation worker
func NewReconcileWorker(ledger *service.Ledger, redis *redisclient.Client, interval, pendingAge time.Duration, batchSize int) *ReconcileWorker {
	return &ReconcileWorker{
		ledger:     ledger,
		redis:      redis,
		interval:   interval,
		pendingAge: pendingAge,
		batchSize:  batchSize,
		logger:     util.GetLogger(),
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reconcile worker",
		zap.Duration("interval", w.interval),
		zap.Duration("pending_age", w.pendingAge))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Reconcile worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ReconcileWorker) sweep(ctx context.Context) {
	if w.redis != nil {
		acquired, err := w.redis.AcquireLock(ctx, "reconcile-sweep", w.interval)
		if err != nil {
			w.logger.Warn("Failed to acquire reconcile lock", zap.Error(err))
			return
		}
		if !acquired {
			return
		}
		defer func() {
			if err := w.redis.ReleaseLock(ctx, "reconcile-sweep"); err != nil {
				w.logger.Warn("Failed to release reconcile lock", zap.Error(err))
			}
		}()
	}

	if err := w.ledger.ReconcilePending(ctx, w.pendingAge, w.batchSize); err != nil {
		w.logger.Error("Reconcile sweep failed", zap.Error(err))
	}
}
