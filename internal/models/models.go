package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ItemType defines the pre-approved categories of purchasable value
type ItemType string

const (
	ItemTypePerformanceAction ItemType = "PERFORMANCE_ACTION"
	ItemTypeTimeBlock         ItemType = "TIME_BLOCK"
	ItemTypePass              ItemType = "PASS"
	ItemTypePhysicalProduct   ItemType = "PHYSICAL_PRODUCT"
	ItemTypeDigitalProduct    ItemType = "DIGITAL_PRODUCT"
	ItemTypeTokenPackage      ItemType = "TOKEN_PACKAGE"
	ItemTypeFeaturedPlacement ItemType = "FEATURED_PLACEMENT"
	ItemTypeCustom            ItemType = "CUSTOM"
)

// Valid reports whether t is one of the approved item types
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypePerformanceAction, ItemTypeTimeBlock, ItemTypePass,
		ItemTypePhysicalProduct, ItemTypeDigitalProduct, ItemTypeTokenPackage,
		ItemTypeFeaturedPlacement, ItemTypeCustom:
		return true
	}
	return false
}

// Item statuses
const (
	ItemStatusActive   = "active"
	ItemStatusInactive = "inactive"
	ItemStatusArchived = "archived"
)

// Rate card statuses
const (
	RateCardStatusActive   = "active"
	RateCardStatusInactive = "inactive"
	RateCardStatusDraft    = "draft"
)

// Owner types
const (
	OwnerTypePerformer = "performer"
	OwnerTypeStudio    = "studio"
	OwnerTypePlatform  = "platform"
)

// Transaction statuses
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
	TxStatusRefunded  = "refunded"
)

// RuleKind identifies the value kind carried by a RuleValue
type RuleKind int

const (
	RuleKindString RuleKind = iota
	RuleKindNumber
	RuleKindBool
)

// RuleValue is a closed scalar used for custom targeting rules and metadata.
// Only strings, numbers and booleans are accepted at the boundary; objects
// and arrays are rejected.
type RuleValue struct {
	Kind RuleKind
	Str  string
	Num  float64
	Bool bool
}

// StringRule builds a string-valued RuleValue
func StringRule(s string) RuleValue { return RuleValue{Kind: RuleKindString, Str: s} }

// NumberRule builds a number-valued RuleValue
func NumberRule(n float64) RuleValue { return RuleValue{Kind: RuleKindNumber, Num: n} }

// BoolRule builds a boolean-valued RuleValue
func BoolRule(b bool) RuleValue { return RuleValue{Kind: RuleKindBool, Bool: b} }

// Equal compares kind and value. String comparison is case-insensitive.
func (v RuleValue) Equal(o RuleValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case RuleKindString:
		return strings.EqualFold(v.Str, o.Str)
	case RuleKindNumber:
		return v.Num == o.Num
	default:
		return v.Bool == o.Bool
	}
}

// MarshalJSON encodes the value as a bare JSON scalar
func (v RuleValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case RuleKindString:
		return json.Marshal(v.Str)
	case RuleKindNumber:
		return json.Marshal(v.Num)
	default:
		return json.Marshal(v.Bool)
	}
}

// UnmarshalJSON decodes a bare JSON scalar, rejecting objects and arrays
func (v *RuleValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case string:
		*v = StringRule(val)
	case float64:
		*v = NumberRule(val)
	case bool:
		*v = BoolRule(val)
	default:
		return fmt.Errorf("%w: rule values must be string, number or boolean", ErrValidation)
	}
	return nil
}

// Attrs is a closed-scalar string map used for custom rules and transaction
// metadata. Stored as JSONB.
type Attrs map[string]RuleValue

// Value implements driver.Valuer
func (a Attrs) Value() (driver.Value, error) {
	if len(a) == 0 {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *Attrs) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("attrs: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, a)
}

// GeoDemo is a targeting predicate over geographic and demographic fields.
// An unset field is a wildcard and matches any context.
type GeoDemo struct {
	Country     string `json:"country,omitempty"`
	Region      string `json:"region,omitempty"`
	Segment     string `json:"segment,omitempty"`
	MinAge      *int   `json:"minAge,omitempty"`
	MaxAge      *int   `json:"maxAge,omitempty"`
	CustomRules Attrs  `json:"customRules,omitempty"`
}

// IsEmpty reports whether every field is a wildcard
func (g GeoDemo) IsEmpty() bool {
	return g.Country == "" && g.Region == "" && g.Segment == "" &&
		g.MinAge == nil && g.MaxAge == nil && len(g.CustomRules) == 0
}

// Validate checks the age bounds
func (g GeoDemo) Validate() error {
	if g.MinAge != nil && *g.MinAge < 0 {
		return fmt.Errorf("%w: minAge must be non-negative", ErrValidation)
	}
	if g.MinAge != nil && g.MaxAge != nil && *g.MinAge > *g.MaxAge {
		return fmt.Errorf("%w: minAge exceeds maxAge", ErrValidation)
	}
	return nil
}

// Value implements driver.Valuer; all-wildcard rules are stored as NULL
func (g GeoDemo) Value() (driver.Value, error) {
	if g.IsEmpty() {
		return nil, nil
	}
	return json.Marshal(g)
}

// Scan implements sql.Scanner
func (g *GeoDemo) Scan(src interface{}) error {
	if src == nil {
		*g = GeoDemo{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("geodemo: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, g)
}

// BuyerContext carries the attributes of a buyer that targeting rules are
// evaluated against
type BuyerContext struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	Segment string `json:"segment,omitempty"`
	Age     *int   `json:"age,omitempty"`
	Custom  Attrs  `json:"custom,omitempty"`
}

// LegacyRef links an item back to the legacy pricing field it was derived
// from during migration
type LegacyRef struct {
	LegacyType string `json:"legacyType"`
	EntityID   string `json:"entityId,omitempty"`
}

// Value implements driver.Valuer
func (r LegacyRef) Value() (driver.Value, error) {
	if r.LegacyType == "" {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner
func (r *LegacyRef) Scan(src interface{}) error {
	if src == nil {
		*r = LegacyRef{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("legacyref: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, r)
}

// Item is the atomic unit of sale. All purchasable value is represented as
// an Item inside a RateCard.
type Item struct {
	ID          string    `db:"id" json:"id"`
	RateCardID  string    `db:"rate_card_id" json:"rate_card_id,omitempty"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	Type        ItemType  `db:"type" json:"type"`
	Price       float64   `db:"price" json:"price"`
	Currency    string    `db:"currency" json:"currency"`
	Quantity    *int      `db:"quantity" json:"quantity,omitempty"`
	GeoDemo     GeoDemo   `db:"geo_demo" json:"geoDemo,omitempty"`
	Metadata    Attrs     `db:"metadata" json:"metadata,omitempty"`
	LegacyRef   LegacyRef `db:"legacy_ref" json:"legacyRef,omitempty"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks item invariants
func (i *Item) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("%w: item name is required", ErrValidation)
	}
	if !i.Type.Valid() {
		return fmt.Errorf("%w: unknown item type %q", ErrValidation, i.Type)
	}
	if i.Price < 0 {
		return fmt.Errorf("%w: price must be non-negative", ErrValidation)
	}
	if i.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	if i.Quantity != nil && *i.Quantity < 0 {
		return fmt.Errorf("%w: quantity cap must be non-negative", ErrValidation)
	}
	return i.GeoDemo.Validate()
}

// RateCard is the canonical pricing structure: a collection of priced items
// exclusively owned by one seller
type RateCard struct {
	ID            string     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Description   string     `db:"description" json:"description,omitempty"`
	Items         []Item     `db:"-" json:"items"`
	OwnerID       string     `db:"owner_id" json:"owner_id"`
	OwnerType     string     `db:"owner_type" json:"owner_type"`
	GeoDemo       GeoDemo    `db:"geo_demo" json:"geoDemo,omitempty"`
	Status        string     `db:"status" json:"status"`
	Priority      int        `db:"priority" json:"priority"`
	EffectiveFrom *time.Time `db:"effective_from" json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time `db:"effective_to" json:"effectiveTo,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	CreatedBy     string     `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy     string     `db:"updated_by" json:"updated_by,omitempty"`
}

// Validate checks card invariants
func (rc *RateCard) Validate() error {
	if rc.Name == "" {
		return fmt.Errorf("%w: rate card name is required", ErrValidation)
	}
	if rc.OwnerID == "" {
		return fmt.Errorf("%w: ownerId is required", ErrValidation)
	}
	switch rc.OwnerType {
	case OwnerTypePerformer, OwnerTypeStudio, OwnerTypePlatform:
	default:
		return fmt.Errorf("%w: unknown owner type %q", ErrValidation, rc.OwnerType)
	}
	switch rc.Status {
	case RateCardStatusActive, RateCardStatusInactive, RateCardStatusDraft:
	default:
		return fmt.Errorf("%w: unknown rate card status %q", ErrValidation, rc.Status)
	}
	if rc.EffectiveFrom != nil && rc.EffectiveTo != nil && rc.EffectiveFrom.After(*rc.EffectiveTo) {
		return fmt.Errorf("%w: effectiveFrom is after effectiveTo", ErrValidation)
	}
	return rc.GeoDemo.Validate()
}

// EffectiveAt reports whether now falls inside the card's effective window.
// An absent bound is unbounded.
func (rc *RateCard) EffectiveAt(now time.Time) bool {
	if rc.EffectiveFrom != nil && now.Before(*rc.EffectiveFrom) {
		return false
	}
	if rc.EffectiveTo != nil && now.After(*rc.EffectiveTo) {
		return false
	}
	return true
}

// RateCardTransaction is an append-only purchase record. Price, currency,
// quantity and total amount are frozen at creation time and never change;
// only status and completed_at move, along legal transitions.
type RateCardTransaction struct {
	ID             string     `db:"id" json:"id"`
	RateCardID     string     `db:"rate_card_id" json:"rate_card_id"`
	ItemID         string     `db:"item_id" json:"item_id"`
	BuyerID        string     `db:"buyer_id" json:"buyer_id"`
	SellerID       string     `db:"seller_id" json:"seller_id"`
	Price          float64    `db:"price" json:"price"`
	Currency       string     `db:"currency" json:"currency"`
	Quantity       int        `db:"quantity" json:"quantity"`
	TotalAmount    float64    `db:"total_amount" json:"total_amount"`
	AppliedGeoDemo GeoDemo    `db:"applied_geo_demo" json:"appliedGeoDemo,omitempty"`
	Status         string     `db:"status" json:"status"`
	IdempotencyKey string     `db:"idempotency_key" json:"idempotency_key"`
	Metadata       Attrs      `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// LegacyPerformerPricing holds the not-yet-migrated per-feature price fields
// of a performer. It is read-only input to the legacy adapter.
type LegacyPerformerPricing struct {
	PerformerID      string        `db:"performer_id" json:"performer_id"`
	PrivateCallPrice *float64      `db:"private_call_price" json:"private_call_price,omitempty"`
	GroupCallPrice   *float64      `db:"group_call_price" json:"group_call_price,omitempty"`
	Currency         string        `db:"currency" json:"currency"`
	TipMenu          LegacyTipMenu `db:"tip_menu" json:"tip_menu,omitempty"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// LegacyTipMenuEntry is one priced tip action from the legacy tip menu
type LegacyTipMenuEntry struct {
	EntityID string  `json:"entityId"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
}

// LegacyTipMenu is the JSONB-stored list of legacy tip actions
type LegacyTipMenu []LegacyTipMenuEntry

// Value implements driver.Valuer
func (m LegacyTipMenu) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *LegacyTipMenu) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("tipmenu: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, m)
}
