package ordersync

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ordersync/backend/internal/domain/integration"
)

// DiscountMatcher resolves an order's coupon code against the rule table.
//
// Codes carrying a promotional prefix are matched fuzzily against rule
// titles, scoped by product id only. All other codes need an exact
// (case-insensitive) title match and a rule scoped to the product or the
// variant of the line item.
type DiscountMatcher struct {
	promoPrefixes []string
}

// NewDiscountMatcher creates a matcher for the given promotional prefixes
func NewDiscountMatcher(promoPrefixes []string) *DiscountMatcher {
	return &DiscountMatcher{promoPrefixes: promoPrefixes}
}

// Match returns the first rule that applies to item for code
func (m *DiscountMatcher) Match(code string, item integration.StorefrontLineItem, rules []integration.DiscountRule) (integration.DiscountRule, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return integration.DiscountRule{}, false
	}

	if stripped, ok := m.stripPromoPrefix(code); ok {
		want := m.tokens(stripped)
		whole := m.tokens(code)
		for _, r := range rules {
			if !r.CoversProduct(item.ProductID) {
				continue
			}
			title := m.tokens(r.Title)
			if slices.Equal(title, want) || slices.Equal(title, whole) {
				return r, true
			}
		}
		return integration.DiscountRule{}, false
	}

	for _, r := range rules {
		if !strings.EqualFold(strings.TrimSpace(r.Title), code) {
			continue
		}
		if r.CoversProduct(item.ProductID) || r.CoversVariant(item.VariantID) {
			return r, true
		}
	}
	return integration.DiscountRule{}, false
}

func (m *DiscountMatcher) stripPromoPrefix(code string) (string, bool) {
	for _, p := range m.promoPrefixes {
		if p != "" && len(code) > len(p) && strings.EqualFold(code[:len(p)], p) {
			return code[len(p):], true
		}
	}
	return "", false
}

// tokens normalizes s and splits it into sorted letter and digit runs, so
// "ZIN15WELCOME" without its prefix and "Welcome 15" compare equal.
func (m *DiscountMatcher) tokens(s string) []string {
	// Casers carry state, so each call gets its own.
	s = cases.Fold().String(norm.NFKC.String(s))

	var (
		out  []string
		cur  []rune
		kind int
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range s {
		k := 0
		switch {
		case unicode.IsLetter(r):
			k = 1
		case unicode.IsDigit(r):
			k = 2
		}
		if k != kind {
			flush()
			kind = k
		}
		if k != 0 {
			cur = append(cur, r)
		}
	}
	flush()
	slices.Sort(out)
	return out
}
