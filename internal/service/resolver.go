package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ratecard-service/internal/geodemo"
	"ratecard-service/internal/models"
	"ratecard-service/internal/util"

	"go.uber.org/zap"
)

// CardSource provides resolver candidates: the owner's active rate cards
// with items attached. Implementations must return a consistent snapshot.
type CardSource interface {
	ListActiveRateCards(ctx context.Context, ownerID, ownerType string) ([]models.RateCard, error)
}

// Resolver picks the single applicable rate card item for a buyer. It is a
// pure read over a point-in-time snapshot and safe to call concurrently.
type Resolver struct {
	source CardSource
	logger *zap.Logger
}

// NewResolver creates a resolver over the given card source
func NewResolver(source CardSource) *Resolver {
	return &Resolver{
		source: source,
		logger: util.GetLogger(),
	}
}

type candidate struct {
	card        *models.RateCard
	item        *models.Item
	specificity int
	updatedAt   time.Time
}

// Resolve returns the one item of the requested type that applies to the
// buyer, with its card. Ordering is a total order: priority descending,
// combined card+item specificity descending, most recent edit descending,
// then card id and item id ascending, so the result is identical for any
// two calls over the same snapshot.
func (r *Resolver) Resolve(ctx context.Context, ownerID, ownerType string, itemType models.ItemType, buyer models.BuyerContext, now time.Time) (*models.RateCard, *models.Item, error) {
	ctx, span := util.StartSpan(ctx, "Resolver.Resolve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ResolveLatency.Observe(time.Since(start).Seconds())
	}()

	cards, err := r.source.ListActiveRateCards(ctx, ownerID, ownerType)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list rate cards: %w", err)
	}

	var candidates []candidate
	for i := range cards {
		card := &cards[i]
		if card.Status != models.RateCardStatusActive || !card.EffectiveAt(now) {
			continue
		}

		cardMatch, cardSpec := geodemo.Matches(card.GeoDemo, buyer)
		if !cardMatch {
			continue
		}

		for j := range card.Items {
			item := &card.Items[j]
			if item.Type != itemType || item.Status != models.ItemStatusActive {
				continue
			}

			// The item-level rule refines the card-level rule: both
			// must match, so an item can never relax its card's
			// targeting.
			itemSpec := 0
			if !item.GeoDemo.IsEmpty() {
				itemMatch, spec := geodemo.Matches(item.GeoDemo, buyer)
				if !itemMatch {
					continue
				}
				itemSpec = spec
			}

			candidates = append(candidates, candidate{
				card:        card,
				item:        item,
				specificity: cardSpec + itemSpec,
				updatedAt:   latest(card.UpdatedAt, item.UpdatedAt),
			})
		}
	}

	if len(candidates) == 0 {
		util.ResolveNotFoundTotal.Inc()
		return nil, nil, fmt.Errorf("%w: no %s item resolves for owner %s", models.ErrNotFound, itemType, ownerID)
	}

	sort.Slice(candidates, func(a, b int) bool {
		return lessCandidate(candidates[a], candidates[b])
	})

	head := candidates[0]
	r.logger.Debug("Resolved rate card item",
		zap.String("owner_id", ownerID),
		zap.String("rate_card_id", head.card.ID),
		zap.String("item_id", head.item.ID),
		zap.Int("specificity", head.specificity))

	return head.card, head.item, nil
}

// ResolveCard returns the single best matching card for a buyer regardless
// of item type, using the same ordering as Resolve
func (r *Resolver) ResolveCard(ctx context.Context, ownerID, ownerType string, buyer models.BuyerContext, now time.Time) (*models.RateCard, error) {
	cards, err := r.source.ListActiveRateCards(ctx, ownerID, ownerType)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate cards: %w", err)
	}

	var best *models.RateCard
	bestSpec := 0
	for i := range cards {
		card := &cards[i]
		if card.Status != models.RateCardStatusActive || !card.EffectiveAt(now) {
			continue
		}
		match, spec := geodemo.Matches(card.GeoDemo, buyer)
		if !match {
			continue
		}
		if best == nil || cardBeats(card, spec, best, bestSpec) {
			best, bestSpec = card, spec
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no rate card resolves for owner %s", models.ErrNotFound, ownerID)
	}
	return best, nil
}

func lessCandidate(a, b candidate) bool {
	if a.card.Priority != b.card.Priority {
		return a.card.Priority > b.card.Priority
	}
	if a.specificity != b.specificity {
		return a.specificity > b.specificity
	}
	if !a.updatedAt.Equal(b.updatedAt) {
		return a.updatedAt.After(b.updatedAt)
	}
	if a.card.ID != b.card.ID {
		return a.card.ID < b.card.ID
	}
	return a.item.ID < b.item.ID
}

func cardBeats(card *models.RateCard, spec int, best *models.RateCard, bestSpec int) bool {
	if card.Priority != best.Priority {
		return card.Priority > best.Priority
	}
	if spec != bestSpec {
		return spec > bestSpec
	}
	if !card.UpdatedAt.Equal(best.UpdatedAt) {
		return card.UpdatedAt.After(best.UpdatedAt)
	}
	return card.ID < best.ID
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
