// Package geodemo evaluates geographic/demographic targeting rules against
// buyer contexts. Matching is pure and safe for concurrent use.
package geodemo

import (
	"strings"

	"ratecard-service/internal/models"
)

// Matches evaluates a targeting rule against a buyer context.
//
// Unset rule fields are wildcards: they match any context and contribute no
// specificity. Set fields must match exactly (case-normalized for strings,
// inclusive bounds for ages). Specificity is the count of non-wildcard
// fields that matched; it is the resolver's tie-break signal.
func Matches(rule models.GeoDemo, ctx models.BuyerContext) (bool, int) {
	specificity := 0

	if rule.Country != "" {
		if !strings.EqualFold(rule.Country, ctx.Country) {
			return false, 0
		}
		specificity++
	}
	if rule.Region != "" {
		if !strings.EqualFold(rule.Region, ctx.Region) {
			return false, 0
		}
		specificity++
	}
	if rule.Segment != "" {
		if !strings.EqualFold(rule.Segment, ctx.Segment) {
			return false, 0
		}
		specificity++
	}

	// An age bound with no context age is a non-match, not a wildcard.
	if rule.MinAge != nil {
		if ctx.Age == nil || *ctx.Age < *rule.MinAge {
			return false, 0
		}
		specificity++
	}
	if rule.MaxAge != nil {
		if ctx.Age == nil || *ctx.Age > *rule.MaxAge {
			return false, 0
		}
		specificity++
	}

	for key, want := range rule.CustomRules {
		got, known := ctx.Custom[key]
		if !known {
			// Keys the context schema does not carry are ignored so
			// legacy payloads with stray fields keep matching.
			continue
		}
		if !want.Equal(got) {
			return false, 0
		}
		specificity++
	}

	return true, specificity
}
