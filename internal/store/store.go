package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ratecard-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// CreateRateCard inserts a rate card together with its items in one
// transaction
func (s *Store) CreateRateCard(ctx context.Context, card *models.RateCard) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO rate_cards (id, name, description, owner_id, owner_type, geo_demo,
			status, priority, effective_from, effective_to, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	row := tx.QueryRowxContext(ctx, query,
		card.ID, card.Name, card.Description, card.OwnerID, card.OwnerType, card.GeoDemo,
		card.Status, card.Priority, card.EffectiveFrom, card.EffectiveTo,
		card.CreatedBy, card.UpdatedBy)
	if err := row.Scan(&card.CreatedAt, &card.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert rate card: %w", err)
	}

	for i := range card.Items {
		card.Items[i].RateCardID = card.ID
		if err := insertItemTx(ctx, tx, &card.Items[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertItemTx(ctx context.Context, tx *sqlx.Tx, item *models.Item) error {
	query := `
		INSERT INTO rate_card_items (id, rate_card_id, name, description, type, price,
			currency, quantity, geo_demo, metadata, legacy_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	row := tx.QueryRowxContext(ctx, query,
		item.ID, item.RateCardID, item.Name, item.Description, item.Type, item.Price,
		item.Currency, item.Quantity, item.GeoDemo, item.Metadata, item.LegacyRef, item.Status)
	if err := row.Scan(&item.CreatedAt, &item.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// GetRateCardByID retrieves a rate card with its items
func (s *Store) GetRateCardByID(ctx context.Context, id string) (*models.RateCard, error) {
	var card models.RateCard
	err := s.db.GetContext(ctx, &card, "SELECT * FROM rate_cards WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: rate card %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadItems(ctx, []*models.RateCard{&card}); err != nil {
		return nil, err
	}
	return &card, nil
}

// RateCardFilter narrows SearchRateCards results
type RateCardFilter struct {
	OwnerID   string
	OwnerType string
	Status    string
	Limit     int
	Offset    int
}

// SearchRateCards lists rate cards matching the filter, newest first
func (s *Store) SearchRateCards(ctx context.Context, f RateCardFilter) ([]models.RateCard, error) {
	query := "SELECT * FROM rate_cards WHERE 1=1"
	args := []interface{}{}

	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if f.OwnerType != "" {
		args = append(args, f.OwnerType)
		query += fmt.Sprintf(" AND owner_type = $%d", len(args))
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
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var cards []models.RateCard
	if err := s.db.SelectContext(ctx, &cards, query, args...); err != nil {
		return nil, err
	}

	refs := make([]*models.RateCard, len(cards))
	for i := range cards {
		refs[i] = &cards[i]
	}
	if err := s.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return cards, nil
}

// ListActiveRateCards returns the resolver candidates for an owner: cards
// with status=active. Effective-window filtering is left to the resolver,
// which evaluates against its own point-in-time clock.
func (s *Store) ListActiveRateCards(ctx context.Context, ownerID, ownerType string) ([]models.RateCard, error) {
	var cards []models.RateCard
	err := s.db.SelectContext(ctx, &cards,
		"SELECT * FROM rate_cards WHERE owner_id = $1 AND owner_type = $2 AND status = $3",
		ownerID, ownerType, models.RateCardStatusActive)
	if err != nil {
		return nil, err
	}

	refs := make([]*models.RateCard, len(cards))
	for i := range cards {
		refs[i] = &cards[i]
	}
	if err := s.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return cards, nil
}

// loadItems attaches items to the given cards with a single IN query
func (s *Store) loadItems(ctx context.Context, cards []*models.RateCard) error {
	if len(cards) == 0 {
		return nil
	}

	ids := make([]string, len(cards))
	byID := make(map[string]*models.RateCard, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
		byID[c.ID] = c
		c.Items = []models.Item{}
	}

	query, args, err := sqlx.In("SELECT * FROM rate_card_items WHERE rate_card_id IN (?) ORDER BY id", ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	var items []models.Item
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return err
	}

	for _, item := range items {
		if card, ok := byID[item.RateCardID]; ok {
			card.Items = append(card.Items, item)
		}
	}
	return nil
}

// UpdateRateCard updates card-level fields with an optimistic-concurrency
// check against updated_at. A stale write returns ErrConflict.
func (s *Store) UpdateRateCard(ctx context.Context, card *models.RateCard) error {
	query := `
		UPDATE rate_cards
		SET name = $1, description = $2, geo_demo = $3, status = $4, priority = $5,
			effective_from = $6, effective_to = $7, updated_by = $8, updated_at = NOW()
		WHERE id = $9 AND updated_at = $10
		RETURNING updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		card.Name, card.Description, card.GeoDemo, card.Status, card.Priority,
		card.EffectiveFrom, card.EffectiveTo, card.UpdatedBy,
		card.ID, card.UpdatedAt)

	err := row.Scan(&card.UpdatedAt)
	if err == sql.ErrNoRows {
		return s.staleOrMissing(ctx, "rate_cards", card.ID)
	}
	return err
}

// DeleteRateCard removes a card and cascades to its items
func (s *Store) DeleteRateCard(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM rate_card_items WHERE rate_card_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM rate_cards WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: rate card %s", models.ErrNotFound, id)
	}

	return tx.Commit()
}

// ListItems returns a card's items, optionally filtered by type and status
func (s *Store) ListItems(ctx context.Context, rateCardID string, itemType models.ItemType, status string) ([]models.Item, error) {
	query := "SELECT * FROM rate_card_items WHERE rate_card_id = $1"
	args := []interface{}{rateCardID}

	if itemType != "" {
		args = append(args, itemType)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY id"

	var items []models.Item
	err := s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// GetItem retrieves one item scoped to its card
func (s *Store) GetItem(ctx context.Context, rateCardID, itemID string) (*models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item,
		"SELECT * FROM rate_card_items WHERE rate_card_id = $1 AND id = $2", rateCardID, itemID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: item %s in rate card %s", models.ErrNotFound, itemID, rateCardID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem adds an item to an existing card
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM rate_cards WHERE id = $1)", item.RateCardID); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: rate card %s", models.ErrNotFound, item.RateCardID)
	}

	if err := insertItemTx(ctx, tx, item); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateItem updates an item with an optimistic-concurrency check against
// updated_at
func (s *Store) UpdateItem(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE rate_card_items
		SET name = $1, description = $2, type = $3, price = $4, currency = $5,
			quantity = $6, geo_demo = $7, metadata = $8, status = $9, updated_at = NOW()
		WHERE rate_card_id = $10 AND id = $11 AND updated_at = $12
		RETURNING updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		item.Name, item.Description, item.Type, item.Price, item.Currency,
		item.Quantity, item.GeoDemo, item.Metadata, item.Status,
		item.RateCardID, item.ID, item.UpdatedAt)

	err := row.Scan(&item.UpdatedAt)
	if err == sql.ErrNoRows {
		return s.staleOrMissing(ctx, "rate_card_items", item.ID)
	}
	return err
}

// DeleteItem removes an item from a card
func (s *Store) DeleteItem(ctx context.Context, rateCardID, itemID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM rate_card_items WHERE rate_card_id = $1 AND id = $2", rateCardID, itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %s in rate card %s", models.ErrNotFound, itemID, rateCardID)
	}
	return nil
}

// GetLegacyPerformerPricing reads a performer's not-yet-migrated price
// fields. Returns ErrNotFound when the performer has no legacy record.
func (s *Store) GetLegacyPerformerPricing(ctx context.Context, performerID string) (*models.LegacyPerformerPricing, error) {
	var p models.LegacyPerformerPricing
	err := s.db.GetContext(ctx, &p,
		"SELECT * FROM legacy_performer_pricing WHERE performer_id = $1", performerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: legacy pricing for performer %s", models.ErrNotFound, performerID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// staleOrMissing distinguishes an optimistic-concurrency conflict from an
// unknown id after a guarded update matched no rows
func (s *Store) staleOrMissing(ctx context.Context, table, id string) error {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table), id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s %s was modified concurrently", models.ErrConflict, table, id)
	}
	return fmt.Errorf("%w: %s %s", models.ErrNotFound, table, id)
}
