package geodemo

import (
	"testing"

	"ratecard-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int { return &i }

func TestMatchesWildcardRule(t *testing.T) {
	ok, spec := Matches(models.GeoDemo{}, models.BuyerContext{Country: "US", Age: intPtr(30)})
	assert.True(t, ok)
	assert.Equal(t, 0, spec)
}

func TestMatchesCountryCaseNormalized(t *testing.T) {
	rule := models.GeoDemo{Country: "us"}

	ok, spec := Matches(rule, models.BuyerContext{Country: "US"})
	assert.True(t, ok)
	assert.Equal(t, 1, spec)

	ok, _ = Matches(rule, models.BuyerContext{Country: "GB"})
	assert.False(t, ok)

	// Missing context country is not a wildcard on the context side
	ok, _ = Matches(rule, models.BuyerContext{})
	assert.False(t, ok)
}

func TestMatchesSpecificityCounts(t *testing.T) {
	rule := models.GeoDemo{
		Country: "US",
		Region:  "CA",
		Segment: "vip",
		MinAge:  intPtr(18),
		MaxAge:  intPtr(65),
	}
	ctx := models.BuyerContext{Country: "US", Region: "CA", Segment: "VIP", Age: intPtr(30)}

	ok, spec := Matches(rule, ctx)
	assert.True(t, ok)
	assert.Equal(t, 5, spec)
}

func TestMatchesAgeBounds(t *testing.T) {
	rule := models.GeoDemo{MinAge: intPtr(18), MaxAge: intPtr(25)}

	ok, _ := Matches(rule, models.BuyerContext{Age: intPtr(18)})
	assert.True(t, ok, "min bound is inclusive")

	ok, _ = Matches(rule, models.BuyerContext{Age: intPtr(25)})
	assert.True(t, ok, "max bound is inclusive")

	ok, _ = Matches(rule, models.BuyerContext{Age: intPtr(17)})
	assert.False(t, ok)

	ok, _ = Matches(rule, models.BuyerContext{Age: intPtr(26)})
	assert.False(t, ok)

	ok, _ = Matches(rule, models.BuyerContext{})
	assert.False(t, ok, "age bound with no context age is a non-match")
}

func TestMatchesCustomRules(t *testing.T) {
	rule := models.GeoDemo{CustomRules: models.Attrs{
		"tier":    models.StringRule("gold"),
		"credits": models.NumberRule(100),
	}}

	ctx := models.BuyerContext{Custom: models.Attrs{
		"tier":    models.StringRule("Gold"),
		"credits": models.NumberRule(100),
	}}
	ok, spec := Matches(rule, ctx)
	assert.True(t, ok)
	assert.Equal(t, 2, spec)

	ctx.Custom["tier"] = models.StringRule("silver")
	ok, _ = Matches(rule, ctx)
	assert.False(t, ok)
}

func TestMatchesUnknownCustomKeyIgnored(t *testing.T) {
	rule := models.GeoDemo{CustomRules: models.Attrs{
		"some_future_flag": models.BoolRule(true),
	}}

	// The context schema does not know the key: forward compatible, no
	// failure and no specificity
	ok, spec := Matches(rule, models.BuyerContext{Country: "US"})
	assert.True(t, ok)
	assert.Equal(t, 0, spec)
}

// Adding a non-wildcard constraint may only narrow the set of matching
// contexts, never widen it
func TestMatchesMonotonicity(t *testing.T) {
	contexts := []models.BuyerContext{
		{Country: "US", Region: "CA", Age: intPtr(30)},
		{Country: "US", Age: intPtr(17)},
		{Country: "GB", Segment: "vip"},
		{},
		{Country: "US", Custom: models.Attrs{"tier": models.StringRule("gold")}},
	}

	base := models.GeoDemo{Country: "US"}
	narrowed := []models.GeoDemo{
		{Country: "US", Region: "CA"},
		{Country: "US", MinAge: intPtr(18)},
		{Country: "US", CustomRules: models.Attrs{"tier": models.StringRule("silver")}},
	}

	for _, ctx := range contexts {
		baseOK, _ := Matches(base, ctx)
		for _, rule := range narrowed {
			ok, _ := Matches(rule, ctx)
			if ok {
				assert.True(t, baseOK, "narrowed rule matched a context the base rule rejected")
			}
		}
	}
}
