// Package catalog holds the read-only product catalog and its lookup paths:
// case-insensitive code lookup, substring search and a weighted fuzzy index
// over product code and name.
package catalog

import (
	"fmt"
	"math"
	"strings"

	"github.com/smart-order-intake/server/internal/intake/model"
)

const (
	// FuzzyThreshold is the score below which a fuzzy hit counts as a confident match.
	FuzzyThreshold = 0.2
	// SuggestionThreshold is the score below which a fuzzy hit is offered as a suggestion.
	SuggestionThreshold = 0.5
	// MaxSuggestions caps SearchResult.Suggestions.
	MaxSuggestions = 5
)

// Catalog is an immutable, in-memory product set. Build it once with Load or New
// and share the pointer; nothing mutates it afterwards.
type Catalog struct {
	products []model.Product
	byCode   map[string]int
	index    *fuzzyIndex
}

// New validates rows and builds a catalog from them. Rows are copied.
func New(products []model.Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]model.Product, 0, len(products)),
		byCode:   make(map[string]int, len(products)),
	}
	for i, p := range products {
		if err := validateProduct(p); err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		key := codeKey(p.Code)
		if _, dup := c.byCode[key]; dup {
			return nil, fmt.Errorf("product %d: duplicate product code %q", i, p.Code)
		}
		c.byCode[key] = len(c.products)
		c.products = append(c.products, p)
	}
	c.index = newFuzzyIndex(c.products)
	return c, nil
}

func validateProduct(p model.Product) error {
	switch {
	case strings.TrimSpace(p.Code) == "":
		return fmt.Errorf("empty product code")
	case math.IsNaN(p.Price) || math.IsInf(p.Price, 0):
		return fmt.Errorf("price must be a finite number, got %v", p.Price)
	case p.Price < 0:
		return fmt.Errorf("negative price %v", p.Price)
	case p.Stock < 0:
		return fmt.Errorf("negative stock %d", p.Stock)
	case p.MinOrderQty < 1:
		return fmt.Errorf("minimum order quantity must be positive, got %d", p.MinOrderQty)
	}
	return nil
}

func codeKey(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Products returns a copy of all products in load order.
func (c *Catalog) Products() []model.Product {
	out := make([]model.Product, len(c.products))
	copy(out, c.products)
	return out
}

// FindByCode performs a case-insensitive exact lookup on the product code.
func (c *Catalog) FindByCode(code string) (model.Product, bool) {
	i, ok := c.byCode[codeKey(code)]
	if !ok {
		return model.Product{}, false
	}
	return c.products[i], true
}

// Search resolves a loose product reference. ExactMatches are case-insensitive
// substring hits on code or name in catalog order; FuzzyMatches and Suggestions
// come from the fuzzy index, best first.
func (c *Catalog) Search(query string) model.SearchResult {
	res := model.SearchResult{
		ExactMatches: []model.Product{},
		FuzzyMatches: []model.Product{},
		Suggestions:  []model.Product{},
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return res
	}

	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Code), q) || strings.Contains(strings.ToLower(p.Name), q) {
			res.ExactMatches = append(res.ExactMatches, p)
		}
	}

	for _, hit := range c.index.search(query) {
		switch {
		case hit.score < FuzzyThreshold:
			res.FuzzyMatches = append(res.FuzzyMatches, c.products[hit.idx])
		case hit.score < SuggestionThreshold && len(res.Suggestions) < MaxSuggestions:
			res.Suggestions = append(res.Suggestions, c.products[hit.idx])
		}
	}
	return res
}

// Score returns the fuzzy score of query against the product with the given code,
// or 1 when the code is unknown. Lower is better.
func (c *Catalog) Score(query, code string) float64 {
	i, ok := c.byCode[codeKey(code)]
	if !ok {
		return 1
	}
	return c.index.score(normalize(query), i)
}
