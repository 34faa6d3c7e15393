package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleValueAcceptsScalarsOnly(t *testing.T) {
	var v RuleValue

	require.NoError(t, json.Unmarshal([]byte(`"vip"`), &v))
	assert.Equal(t, StringRule("vip"), v)

	require.NoError(t, json.Unmarshal([]byte(`42`), &v))
	assert.Equal(t, NumberRule(42), v)

	require.NoError(t, json.Unmarshal([]byte(`true`), &v))
	assert.Equal(t, BoolRule(true), v)

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"nested":1}`), &v), ErrValidation)
	assert.ErrorIs(t, json.Unmarshal([]byte(`[1,2]`), &v), ErrValidation)
	assert.ErrorIs(t, json.Unmarshal([]byte(`null`), &v), ErrValidation)
}

func TestRuleValueRoundTrip(t *testing.T) {
	attrs := Attrs{
		"tier":    StringRule("gold"),
		"credits": NumberRule(12.5),
		"beta":    BoolRule(true),
	}

	data, err := json.Marshal(attrs)
	require.NoError(t, err)

	var decoded Attrs
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, attrs, decoded)
}

func TestRuleValueEqual(t *testing.T) {
	assert.True(t, StringRule("VIP").Equal(StringRule("vip")), "string rules compare case-insensitively")
	assert.False(t, StringRule("1").Equal(NumberRule(1)), "kinds never cross-match")
	assert.True(t, NumberRule(3).Equal(NumberRule(3)))
	assert.False(t, BoolRule(true).Equal(BoolRule(false)))
}

func TestGeoDemoValidate(t *testing.T) {
	minAge, maxAge := 18, 35
	assert.NoError(t, GeoDemo{MinAge: &minAge, MaxAge: &maxAge}.Validate())

	neg := -1
	assert.ErrorIs(t, GeoDemo{MinAge: &neg}.Validate(), ErrValidation)

	lo, hi := 40, 20
	assert.ErrorIs(t, GeoDemo{MinAge: &lo, MaxAge: &hi}.Validate(), ErrValidation)
}

func TestRateCardValidate(t *testing.T) {
	card := &RateCard{
		Name:      "Standard",
		OwnerID:   "performer-1",
		OwnerType: OwnerTypePerformer,
		Status:    RateCardStatusActive,
	}
	assert.NoError(t, card.Validate())

	card.OwnerType = "agency"
	assert.ErrorIs(t, card.Validate(), ErrValidation)

	card.OwnerType = OwnerTypePerformer
	card.Status = "published"
	assert.ErrorIs(t, card.Validate(), ErrValidation)
}

func TestItemValidate(t *testing.T) {
	item := &Item{
		Name:     "Tip",
		Type:     ItemTypePerformanceAction,
		Price:    5,
		Currency: "TOKEN",
		Status:   ItemStatusActive,
	}
	assert.NoError(t, item.Validate())

	item.Price = -1
	assert.ErrorIs(t, item.Validate(), ErrValidation)

	item.Price = 5
	item.Type = "SUBSCRIPTION"
	assert.ErrorIs(t, item.Validate(), ErrValidation)
}
