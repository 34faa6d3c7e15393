package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ratecard-service/internal/geodemo"
	"ratecard-service/internal/models"
	"ratecard-service/internal/redisclient"
	"ratecard-service/internal/store"
	"ratecard-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RateCardService owns rate card and item lifecycle plus price resolution.
// Mutations go through the store's optimistic-concurrency checks; reads of
// single cards are served from the redis cache when possible.
type RateCardService struct {
	store          *store.Store
	redis          *redisclient.Client
	publisher      Publisher
	resolver       *Resolver
	legacy         *LegacyAdapter
	legacyResolver *Resolver
	logger         *zap.Logger
}

// NewRateCardService creates the rate card service. redis and publisher may
// be nil.
func NewRateCardService(st *store.Store, redis *redisclient.Client, publisher Publisher, legacy *LegacyAdapter) *RateCardService {
	return &RateCardService{
		store:          st,
		redis:          redis,
		publisher:      publisher,
		resolver:       NewResolver(st),
		legacy:         legacy,
		legacyResolver: NewResolver(legacy),
		logger:         util.GetLogger(),
	}
}

// CreateRateCard validates and persists a new card with its items
func (s *RateCardService) CreateRateCard(ctx context.Context, card *models.RateCard) error {
	ctx, span := util.StartSpan(ctx, "RateCardService.CreateRateCard")
	defer span.End()

	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	if card.Status == "" {
		card.Status = models.RateCardStatusDraft
	}
	if err := card.Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(card.Items))
	for i := range card.Items {
		item := &card.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		if seen[item.ID] {
			return fmt.Errorf("%w: duplicate item id %s", models.ErrValidation, item.ID)
		}
		seen[item.ID] = true
		if item.Status == "" {
			item.Status = models.ItemStatusActive
		}
		if err := item.Validate(); err != nil {
			return err
		}
	}

	if err := s.store.CreateRateCard(ctx, card); err != nil {
		return err
	}

	s.logger.Info("Rate card created",
		zap.String("rate_card_id", card.ID),
		zap.String("owner_id", card.OwnerID))
	s.publishCardEvent(ctx, card.ID, card.OwnerID, "created")
	return nil
}

// GetRateCard retrieves a card, serving from cache when it can
func (s *RateCardService) GetRateCard(ctx context.Context, id string) (*models.RateCard, error) {
	if s.redis != nil {
		if card, ok := s.redis.GetCachedRateCard(ctx, id); ok {
			util.RateCardCacheLookups.WithLabelValues("hit").Inc()
			return card, nil
		}
		util.RateCardCacheLookups.WithLabelValues("miss").Inc()
	}

	card, err := s.store.GetRateCardByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.CacheRateCard(ctx, card); err != nil {
			s.logger.Warn("Failed to cache rate card", zap.Error(err))
		}
	}
	return card, nil
}

// SearchRateCards lists cards matching the filter
func (s *RateCardService) SearchRateCards(ctx context.Context, f store.RateCardFilter) ([]models.RateCard, error) {
	return s.store.SearchRateCards(ctx, f)
}

// UpdateRateCard applies card-level changes. The card's UpdatedAt must be
// the version the caller read; a stale version fails with ErrConflict.
func (s *RateCardService) UpdateRateCard(ctx context.Context, card *models.RateCard) error {
	ctx, span := util.StartSpan(ctx, "RateCardService.UpdateRateCard")
	defer span.End()

	if err := card.Validate(); err != nil {
		return err
	}
	if card.UpdatedAt.IsZero() {
		current, err := s.store.GetRateCardByID(ctx, card.ID)
		if err != nil {
			return err
		}
		card.UpdatedAt = current.UpdatedAt
	}

	if err := s.store.UpdateRateCard(ctx, card); err != nil {
		return err
	}

	s.invalidate(ctx, card.ID)
	s.publishCardEvent(ctx, card.ID, card.OwnerID, "updated")
	return nil
}

// DeleteRateCard removes a card and all its items
func (s *RateCardService) DeleteRateCard(ctx context.Context, id string) error {
	card, err := s.store.GetRateCardByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteRateCard(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.publishCardEvent(ctx, id, card.OwnerID, "deleted")
	return nil
}

// ListItems returns a card's items with optional type/status filters
func (s *RateCardService) ListItems(ctx context.Context, rateCardID string, itemType models.ItemType, status string) ([]models.Item, error) {
	if itemType != "" && !itemType.Valid() {
		return nil, fmt.Errorf("%w: unknown item type %q", models.ErrValidation, itemType)
	}
	return s.store.ListItems(ctx, rateCardID, itemType, status)
}

// AddItem adds an item to an existing card
func (s *RateCardService) AddItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = models.ItemStatusActive
	}
	if err := item.Validate(); err != nil {
		return err
	}

	if err := s.store.CreateItem(ctx, item); err != nil {
		return err
	}

	s.invalidate(ctx, item.RateCardID)
	s.publishCardEvent(ctx, item.RateCardID, "", "updated")
	return nil
}

// UpdateItem applies item changes under the same optimistic check as cards
func (s *RateCardService) UpdateItem(ctx context.Context, item *models.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if item.UpdatedAt.IsZero() {
		current, err := s.store.GetItem(ctx, item.RateCardID, item.ID)
		if err != nil {
			return err
		}
		item.UpdatedAt = current.UpdatedAt
	}

	if err := s.store.UpdateItem(ctx, item); err != nil {
		return err
	}

	s.invalidate(ctx, item.RateCardID)
	s.publishCardEvent(ctx, item.RateCardID, "", "updated")
	return nil
}

// RemoveItem deletes an item from a card
func (s *RateCardService) RemoveItem(ctx context.Context, rateCardID, itemID string) error {
	if err := s.store.DeleteItem(ctx, rateCardID, itemID); err != nil {
		return err
	}
	s.invalidate(ctx, rateCardID)
	s.publishCardEvent(ctx, rateCardID, "", "updated")
	return nil
}

// ValidateGeoDemo evaluates a targeting rule against a buyer context
func (s *RateCardService) ValidateGeoDemo(rule models.GeoDemo, buyer models.BuyerContext) (bool, int, error) {
	if err := rule.Validate(); err != nil {
		return false, 0, err
	}
	match, specificity := geodemo.Matches(rule, buyer)
	return match, specificity, nil
}

// ResolveItem picks the applicable item for a buyer, falling back to the
// synthesized legacy-compatible card for performers that have no canonical
// cards yet
func (s *RateCardService) ResolveItem(ctx context.Context, ownerID, ownerType string, itemType models.ItemType, buyer models.BuyerContext, now time.Time) (*models.RateCard, *models.Item, error) {
	card, item, err := s.resolver.Resolve(ctx, ownerID, ownerType, itemType, buyer, now)
	if err == nil {
		return card, item, nil
	}
	if !errors.Is(err, models.ErrNotFound) || ownerType != models.OwnerTypePerformer {
		return nil, nil, err
	}
	return s.legacyResolver.Resolve(ctx, ownerID, ownerType, itemType, buyer, now)
}

// ResolveCardForPerformer returns the best matching card for a performer
// and buyer context, synthesizing the legacy view when no canonical card
// applies
func (s *RateCardService) ResolveCardForPerformer(ctx context.Context, performerID string, buyer models.BuyerContext, now time.Time) (*models.RateCard, error) {
	card, err := s.resolver.ResolveCard(ctx, performerID, models.OwnerTypePerformer, buyer, now)
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	return s.legacy.GetLegacyCompatibleRateCard(ctx, performerID)
}

// ConvertLegacyPricing exposes the adapter's deterministic conversion
func (s *RateCardService) ConvertLegacyPricing(legacyType, entityID string, price float64, currency string, metadata models.Attrs) (*models.Item, error) {
	return s.legacy.ConvertLegacyPricing(legacyType, entityID, price, currency, metadata)
}

// GetLegacyCompatibleRateCard exposes the adapter's synthesized card view
func (s *RateCardService) GetLegacyCompatibleRateCard(ctx context.Context, performerID string) (*models.RateCard, error) {
	return s.legacy.GetLegacyCompatibleRateCard(ctx, performerID)
}

func (s *RateCardService) invalidate(ctx context.Context, rateCardID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.InvalidateRateCard(ctx, rateCardID); err != nil {
		s.logger.Warn("Failed to invalidate rate card cache",
			zap.String("rate_card_id", rateCardID),
			zap.Error(err))
	}
}

func (s *RateCardService) publishCardEvent(ctx context.Context, rateCardID, ownerID, action string) {
	if s.publisher == nil {
		return
	}
	event := &models.RateCardUpdatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRateCardUpdated,
			Timestamp: time.Now(),
		},
		RateCardID: rateCardID,
		OwnerID:    ownerID,
		Action:     action,
	}
	if err := s.publisher.PublishRateCardUpdated(ctx, event); err != nil {
		s.logger.Error("Failed to publish rate card event", zap.Error(err))
	}
}
