package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"ratecard-service/internal/models"
	"ratecard-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes rate card domain events. It satisfies the
// service layer's Publisher interface.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishTransactionEvent publishes a transaction lifecycle event, keyed by
// transaction id so every event for one purchase lands on one partition
func (ep *EventPublisher) PublishTransactionEvent(ctx context.Context, event *models.TransactionEvent) error {
	key := fmt.Sprintf("transaction-%s", event.TransactionID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishRateCardUpdated publishes a rate card mutation event
func (ep *EventPublisher) PublishRateCardUpdated(ctx context.Context, event *models.RateCardUpdatedEvent) error {
	key := fmt.Sprintf("ratecard-%s", event.RateCardID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// SettlementHandler routes wallet settlement events to a registered
// callback. Messages with other event types are acknowledged and skipped.
type SettlementHandler struct {
	onSettlement func(context.Context, *models.WalletSettlementEvent) error
	logger       *zap.Logger
}

// NewSettlementHandler creates a settlement event handler
func NewSettlementHandler(onSettlement func(context.Context, *models.WalletSettlementEvent) error) *SettlementHandler {
	return &SettlementHandler{
		onSettlement: onSettlement,
		logger:       util.GetLogger(),
	}
}

// HandleMessage decodes and dispatches one Kafka message
func (sh *SettlementHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	if baseEvent.EventType != models.EventTypeWalletSettlement {
		sh.logger.Debug("Skipping event", zap.String("event_type", baseEvent.EventType))
		return nil
	}

	var event models.WalletSettlementEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal settlement event: %w", err)
	}
	return sh.onSettlement(ctx, &event)
}
