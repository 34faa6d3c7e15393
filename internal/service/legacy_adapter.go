package service

import (
	"context"
	"errors"
	"fmt"

	"ratecard-service/internal/models"
	"ratecard-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Legacy pricing types awaiting migration
const (
	LegacyTypePrivateCall     = "privateCallPrice"
	LegacyTypeGroupCall       = "groupCallPrice"
	LegacyTypeTipMenu         = "tipMenu"
	LegacyTypeProduct         = "product"
	LegacyTypeGallery         = "gallery"
	LegacyTypeVideo           = "video"
	LegacyTypeTokenPackage    = "tokenPackage"
	LegacyTypeFeaturedPackage = "featuredPackage"
)

// DefaultCurrency is the platform token currency assumed for legacy prices
const DefaultCurrency = "TOKEN"

// legacyItemNamespace seeds UUIDv5 derivation so the same legacy field
// always converts to an item with the same identity
var legacyItemNamespace = uuid.MustParse("8f1c6b2e-5a43-4d9b-b6f0-42d1a97c3e15")

// LegacyItemID derives the deterministic item id for a legacy pricing field
func LegacyItemID(legacyType, entityID string) string {
	return uuid.NewSHA1(legacyItemNamespace, []byte(legacyType+":"+entityID)).String()
}

// LegacyCardID derives the deterministic id of a performer's synthesized
// legacy-compatible rate card
func LegacyCardID(performerID string) string {
	return uuid.NewSHA1(legacyItemNamespace, []byte("card:"+performerID)).String()
}

var legacyItemNames = map[string]string{
	LegacyTypePrivateCall:     "Private Call",
	LegacyTypeGroupCall:       "Group Call",
	LegacyTypeTipMenu:         "Tip",
	LegacyTypeProduct:         "Product",
	LegacyTypeGallery:         "Gallery Access",
	LegacyTypeVideo:           "Video Access",
	LegacyTypeTokenPackage:    "Token Package",
	LegacyTypeFeaturedPackage: "Featured Placement",
}

// LegacyPricingSource reads a performer's not-yet-migrated pricing fields
type LegacyPricingSource interface {
	GetLegacyPerformerPricing(ctx context.Context, performerID string) (*models.LegacyPerformerPricing, error)
}

// LegacyAdapter maps the old per-feature pricing fields onto canonical
// items and rate cards so the resolver sees one uniform model during
// migration. All derived views are recomputed on demand, never persisted.
type LegacyAdapter struct {
	source LegacyPricingSource
	logger *zap.Logger
}

// NewLegacyAdapter creates a legacy pricing adapter
func NewLegacyAdapter(source LegacyPricingSource) *LegacyAdapter {
	return &LegacyAdapter{
		source: source,
		logger: util.GetLogger(),
	}
}

// ConvertLegacyPricing maps one legacy pricing field to a canonical item.
// The item id is a pure function of (legacyType, entityId): converting the
// same field twice yields the same identity no matter what the price is,
// which keeps legacy and canonical purchases idempotency-compatible.
func (a *LegacyAdapter) ConvertLegacyPricing(legacyType, entityID string, price float64, currency string, metadata models.Attrs) (*models.Item, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entityId is required", models.ErrValidation)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: price must be non-negative", models.ErrValidation)
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	itemType, err := mapLegacyType(legacyType, metadata)
	if err != nil {
		return nil, err
	}

	return &models.Item{
		ID:       LegacyItemID(legacyType, entityID),
		Name:     legacyItemNames[legacyType],
		Type:     itemType,
		Price:    price,
		Currency: currency,
		Metadata: metadata,
		LegacyRef: models.LegacyRef{
			LegacyType: legacyType,
			EntityID:   entityID,
		},
		Status: models.ItemStatusActive,
	}, nil
}

func mapLegacyType(legacyType string, metadata models.Attrs) (models.ItemType, error) {
	switch legacyType {
	case LegacyTypePrivateCall, LegacyTypeGroupCall:
		return models.ItemTypeTimeBlock, nil
	case LegacyTypeTipMenu:
		return models.ItemTypePerformanceAction, nil
	case LegacyTypeProduct:
		if v, ok := metadata["digital"]; ok && v.Equal(models.BoolRule(true)) {
			return models.ItemTypeDigitalProduct, nil
		}
		return models.ItemTypePhysicalProduct, nil
	case LegacyTypeGallery, LegacyTypeVideo:
		return models.ItemTypePass, nil
	case LegacyTypeTokenPackage:
		return models.ItemTypeTokenPackage, nil
	case LegacyTypeFeaturedPackage:
		return models.ItemTypeFeaturedPlacement, nil
	default:
		return "", fmt.Errorf("%w: unknown legacy type %q", models.ErrValidation, legacyType)
	}
}

// GetLegacyCompatibleRateCard synthesizes a virtual active rate card from
// all of a performer's unmigrated legacy fields. The view is read-only and
// recomputed per call so it can never diverge from the source fields.
func (a *LegacyAdapter) GetLegacyCompatibleRateCard(ctx context.Context, performerID string) (*models.RateCard, error) {
	pricing, err := a.source.GetLegacyPerformerPricing(ctx, performerID)
	if err != nil {
		return nil, err
	}

	card := &models.RateCard{
		ID:        LegacyCardID(performerID),
		Name:      "Legacy Pricing",
		OwnerID:   performerID,
		OwnerType: models.OwnerTypePerformer,
		Status:    models.RateCardStatusActive,
		Priority:  0,
		CreatedAt: pricing.UpdatedAt,
		UpdatedAt: pricing.UpdatedAt,
	}

	currency := pricing.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	addItem := func(legacyType, entityID string, price float64, name string) error {
		item, err := a.ConvertLegacyPricing(legacyType, entityID, price, currency, nil)
		if err != nil {
			return err
		}
		if name != "" {
			item.Name = name
		}
		item.RateCardID = card.ID
		item.CreatedAt = pricing.UpdatedAt
		item.UpdatedAt = pricing.UpdatedAt
		card.Items = append(card.Items, *item)
		return nil
	}

	if pricing.PrivateCallPrice != nil {
		if err := addItem(LegacyTypePrivateCall, performerID, *pricing.PrivateCallPrice, ""); err != nil {
			return nil, err
		}
	}
	if pricing.GroupCallPrice != nil {
		if err := addItem(LegacyTypeGroupCall, performerID, *pricing.GroupCallPrice, ""); err != nil {
			return nil, err
		}
	}
	for _, entry := range pricing.TipMenu {
		if err := addItem(LegacyTypeTipMenu, entry.EntityID, entry.Price, entry.Name); err != nil {
			a.logger.Warn("Skipping malformed legacy tip menu entry",
				zap.String("performer_id", performerID),
				zap.String("entity_id", entry.EntityID),
				zap.Error(err))
		}
	}

	return card, nil
}

// ListActiveRateCards makes the adapter a CardSource, letting the resolver
// run unmodified over performers that have no canonical rate cards yet
func (a *LegacyAdapter) ListActiveRateCards(ctx context.Context, ownerID, ownerType string) ([]models.RateCard, error) {
	if ownerType != models.OwnerTypePerformer {
		return nil, nil
	}
	card, err := a.GetLegacyCompatibleRateCard(ctx, ownerID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []models.RateCard{*card}, nil
}
