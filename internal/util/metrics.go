package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratecard_transactions_created_total",
		Help: "Total number of rate card transactions created",
	})

	TransactionsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratecard_transactions_completed_total",
		Help: "Total number of transactions settled successfully",
	})

	TransactionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratecard_transactions_failed_total",
		Help: "Total number of failed transactions",
	}, []string{"reason"})

	TransactionsRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratecard_transactions_refunded_total",
		Help: "Total number of refunded transactions",
	})

	TransactionsReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratecard_transactions_reconciled_total",
		Help: "Total number of pending transactions driven to a terminal state by reconciliation",
	}, []string{"outcome"})

	IdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratecard_idempotent_replays_total",
		Help: "Total number of apply-item calls answered from an existing transaction",
	})

	WalletTransferLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ratecard_wallet_transfer_latency_seconds",
		Help:    "Latency of wallet transfer calls",
		Buckets: prometheus.DefBuckets,
	})

	WalletTransferFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratecard_wallet_transfer_failures_total",
		Help: "Total number of wallet transfer failures",
	}, []string{"reason"})

	ResolveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ratecard_resolve_latency_seconds",
		Help:    "Latency of rate card resolution",
		Buckets: prometheus.DefBuckets,
	})

	ResolveNotFoundTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratecard_resolve_not_found_total",
		Help: "Total number of resolutions that matched no item",
	})

	RateCardCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratecard_cache_lookups_total",
		Help: "Rate card cache lookups by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
