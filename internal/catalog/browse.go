package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// SortOption names one of the product list orderings.
type SortOption string

const (
	SortNone           SortOption = "none"
	SortPriceLowToHigh SortOption = "price_low_to_high"
	SortPriceHighToLow SortOption = "price_high_to_low"
	SortTopRated       SortOption = "top_rated"
	SortLowRated       SortOption = "low_rated"
)

// SortChoice pairs a sort option with its menu label.
type SortChoice struct {
	Label string
	Value SortOption
}

// SortChoices lists options in menu order.
var SortChoices = []SortChoice{
	{Label: "Price Low to High", Value: SortPriceLowToHigh},
	{Label: "Price High to Low", Value: SortPriceHighToLow},
	{Label: "Top Rated", Value: SortTopRated},
	{Label: "Low Rated", Value: SortLowRated},
	{Label: "None", Value: SortNone},
}

var discountThreshold = decimal.NewFromInt(100)

// ParseSortOption validates a sort option name. Empty means SortNone.
func ParseSortOption(value string) (SortOption, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return SortNone, nil
	}
	for _, choice := range SortChoices {
		if string(choice.Value) == value {
			return choice.Value, nil
		}
	}
	return SortNone, fmt.Errorf("catalog: unknown sort option %q", value)
}

// Label returns the menu label for o.
func (o SortOption) Label() string {
	for _, choice := range SortChoices {
		if choice.Value == o {
			return choice.Label
		}
	}
	return "None"
}

// Sort returns a sorted copy of products. Ties keep API order; SortNone
// returns the input order unchanged.
func Sort(products []Product, option SortOption) []Product {
	out := append([]Product(nil), products...)
	var less func(a, b Product) bool
	switch option {
	case SortPriceLowToHigh:
		less = func(a, b Product) bool { return a.Price.LessThan(b.Price) }
	case SortPriceHighToLow:
		less = func(a, b Product) bool { return a.Price.GreaterThan(b.Price) }
	case SortTopRated:
		less = func(a, b Product) bool { return a.Rating.Rate > b.Rating.Rate }
	case SortLowRated:
		less = func(a, b Product) bool { return a.Rating.Rate < b.Rating.Rate }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// FilterByCategories keeps products whose category is selected. An empty
// selection keeps everything.
func FilterByCategories(products []Product, categories []string) []Product {
	if len(categories) == 0 {
		return append([]Product(nil), products...)
	}
	selected := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		selected[c] = struct{}{}
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if _, ok := selected[p.Category]; ok {
			out = append(out, p)
		}
	}
	return out
}

// FilterByTitle keeps products whose title contains query, ignoring case and
// surrounding whitespace. An empty query keeps everything.
func FilterByTitle(products []Product, query string) []Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return append([]Product(nil), products...)
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Title), query) {
			out = append(out, p)
		}
	}
	return out
}

// Browse applies the category filter and then the sort, which is what the
// product list shows.
func Browse(products []Product, option SortOption, categories []string) []Product {
	return Sort(FilterByCategories(products, categories), option)
}

// HasDiscountBadge reports whether the list shows the "10% OFF" badge.
func HasDiscountBadge(p Product) bool {
	return p.Price.GreaterThan(discountThreshold)
}

// Similar returns the products sharing p's category, excluding p itself.
func Similar(products []Product, p Product) []Product {
	out := make([]Product, 0, len(products))
	for _, candidate := range products {
		if candidate.ID == p.ID || candidate.Category != p.Category {
			continue
		}
		out = append(out, candidate)
	}
	return out
}
