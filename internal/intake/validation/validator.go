// Package validation reconciles extracted line items against the catalog and
// recommends order quantities.
package validation

import (
	"fmt"
	"strings"

	"github.com/smart-order-intake/server/internal/intake/model"
	logx "github.com/smart-order-intake/server/pkg/logger"
)

const (
	notFoundPenalty = 0.5
	perIssuePenalty = 0.2
	resolvedFloor   = 0.1
	maxSuggested    = 3
	maxAlternatives = 5
)

// Catalog is the read-only lookup surface the validator needs.
type Catalog interface {
	FindByCode(code string) (model.Product, bool)
	Search(query string) model.SearchResult
}

// Validator resolves requested items to catalog products and flags stock and
// MOQ problems. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	catalog Catalog
}

func NewValidator(catalog Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Validate resolves one item: exact code, then substring search, then fuzzy
// match. Unresolved items carry SKU_NOT_FOUND with up to three suggestions.
func (v *Validator) Validate(item model.RequestedItem) model.ValidatedItem {
	out := model.ValidatedItem{
		SKU:                  item.SKU,
		RawSKU:               item.SKU,
		ProductName:          item.ProductName,
		RequestedQuantity:    item.RequestedQuantity,
		Issues:               []model.Issue{},
		Confidence:           model.ClampUnit(item.Confidence),
		ExtractionConfidence: model.ClampUnit(item.Confidence),
	}

	// the model sometimes leaves the SKU blank and only names the product
	ref := item.SKU
	if strings.TrimSpace(ref) == "" {
		ref = item.ProductName
	}

	product, ok := v.resolve(ref)
	if !ok {
		search := v.catalog.Search(ref)
		out.Issues = append(out.Issues, model.Issue{
			Kind:              model.IssueSKUNotFound,
			Message:           fmt.Sprintf("Product with SKU %q not found", ref),
			SuggestedSolution: "Consider similar products or verify SKU",
			SuggestedProducts: firstN(maxSuggested, search.FuzzyMatches, search.Suggestions),
		})
		out.Confidence = max(0, out.Confidence-notFoundPenalty)
		logx.Debug().Str("sku", ref).Int("suggestions", len(out.Issues[0].SuggestedProducts)).Msg("SKU not found in catalog")
		return out
	}

	if product.Code != ref {
		logx.Debug().Str("raw_sku", ref).Str("sku", product.Code).Msg("Mapped product reference to catalog SKU")
	}
	p := product
	out.Product = &p
	out.SKU = product.Code
	out.ProductName = product.Name
	out.Price = product.Price

	switch {
	case product.Stock == 0:
		out.Issues = append(out.Issues, model.Issue{
			Kind:              model.IssueOutOfStock,
			Message:           fmt.Sprintf("%s is out of stock", product.Name),
			SuggestedSolution: "Consider alternative products or wait for restock",
		})
	case product.Stock < item.RequestedQuantity:
		out.Issues = append(out.Issues, model.Issue{
			Kind:              model.IssueInsufficientStock,
			Message:           fmt.Sprintf("Only %d units available, but %d requested", product.Stock, item.RequestedQuantity),
			SuggestedSolution: fmt.Sprintf("Reduce quantity to %d or consider partial shipment", product.Stock),
		})
		out.ValidatedQuantity = intPtr(product.Stock)
	}

	if item.RequestedQuantity < product.MinOrderQty {
		out.Issues = append(out.Issues, model.Issue{
			Kind:              model.IssueMOQNotMet,
			Message:           fmt.Sprintf("Minimum order quantity is %d, but %d requested", product.MinOrderQty, item.RequestedQuantity),
			SuggestedSolution: fmt.Sprintf("Increase quantity to %d or more", product.MinOrderQty),
		})
	}

	if len(out.Issues) == 0 {
		out.ValidatedQuantity = intPtr(item.RequestedQuantity)
	}
	out.TotalPrice = product.Price * float64(out.EffectiveQuantity())

	if n := len(out.Issues); n > 0 {
		// never raise a confidence that already sits below the floor
		out.Confidence = min(out.Confidence, max(resolvedFloor, out.Confidence-float64(n)*perIssuePenalty))
	}
	return out
}

func (v *Validator) resolve(ref string) (model.Product, bool) {
	if p, ok := v.catalog.FindByCode(ref); ok {
		return p, true
	}
	search := v.catalog.Search(ref)
	if len(search.ExactMatches) > 0 {
		return search.ExactMatches[0], true
	}
	if len(search.FuzzyMatches) > 0 {
		return search.FuzzyMatches[0], true
	}
	return model.Product{}, false
}

// ValidateAll validates every item independently, preserving order.
func (v *Validator) ValidateAll(items []model.RequestedItem) []model.ValidatedItem {
	out := make([]model.ValidatedItem, 0, len(items))
	for _, it := range items {
		out = append(out, v.Validate(it))
	}
	return out
}

// SuggestAlternatives lists up to five close catalog products for a reference.
func (v *Validator) SuggestAlternatives(sku string) []model.Product {
	search := v.catalog.Search(sku)
	return firstN(maxAlternatives, search.FuzzyMatches, search.Suggestions)
}

func firstN(n int, lists ...[]model.Product) []model.Product {
	out := make([]model.Product, 0, n)
	for _, l := range lists {
		for _, p := range l {
			if len(out) == n {
				return out
			}
			out = append(out, p)
		}
	}
	return out
}

func intPtr(v int) *int {
	return &v
}
