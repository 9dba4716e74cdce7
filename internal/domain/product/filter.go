package product

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// SortOrder names a client-side product ordering.
type SortOrder string

const (
	SortPriceAsc  SortOrder = "price-asc"
	SortPriceDesc SortOrder = "price-desc"
	SortNameAsc   SortOrder = "name-asc"
	SortNameDesc  SortOrder = "name-desc"
)

// Search returns the products whose name, description or category contain
// term, case-insensitively. An empty term matches everything.
func Search(products []Product, term string) []Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return products
	}
	var out []Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), term) ||
			strings.Contains(strings.ToLower(p.Description), term) ||
			strings.Contains(strings.ToLower(p.Category), term) {
			out = append(out, p)
		}
	}
	return out
}

// FilterByPrice keeps products priced within [lo, hi]. Nil bounds are open.
func FilterByPrice(products []Product, lo, hi *decimal.Decimal) []Product {
	var out []Product
	for _, p := range products {
		if lo != nil && p.Price.LessThan(*lo) {
			continue
		}
		if hi != nil && p.Price.GreaterThan(*hi) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Sort returns a sorted copy of products. Unknown orders keep the input order.
func Sort(products []Product, order SortOrder) []Product {
	out := slices.Clone(products)
	switch order {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b Product) int { return a.Price.Cmp(b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b Product) int { return b.Price.Cmp(a.Price) })
	case SortNameAsc:
		slices.SortStableFunc(out, func(a, b Product) int { return strings.Compare(a.Name, b.Name) })
	case SortNameDesc:
		slices.SortStableFunc(out, func(a, b Product) int { return strings.Compare(b.Name, a.Name) })
	}
	return out
}
