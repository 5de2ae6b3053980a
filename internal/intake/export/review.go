// Package export renders processed orders for human review, as sales order
// form data and as downloadable JSON.
package export

import (
	"github.com/smart-order-intake/server/internal/intake/model"
)

// ReviewItem is one line of the review table.
type ReviewItem struct {
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Subtotal   float64 `json:"subtotal"`
	Stock      int     `json:"stock"`
	MOQ        int     `json:"moq"`
	Confidence float64 `json:"confidence"`
}

type ReviewIssue struct {
	Type              model.IssueKind `json:"type"`
	SKU               string          `json:"sku,omitempty"`
	Message           string          `json:"message"`
	SuggestedSolution string          `json:"suggested_solution,omitempty"`
	Suggestions       []string        `json:"suggestions,omitempty"`
}

// Review is the flattened view a sales rep works from.
type Review struct {
	Items      []ReviewItem  `json:"items"`
	Issues     []ReviewIssue `json:"issues"`
	TotalPrice float64       `json:"total_price"`
}

// BuildReview flattens an order. Unresolved items show stock 0 and MOQ 1.
func BuildReview(order *model.Order) Review {
	r := Review{
		Items:  make([]ReviewItem, 0, len(order.Items)),
		Issues: []ReviewIssue{},
	}
	for _, it := range order.Items {
		line := ReviewItem{
			SKU:        it.SKU,
			Name:       it.ProductName,
			Quantity:   it.EffectiveQuantity(),
			Price:      it.Price,
			Subtotal:   it.TotalPrice,
			MOQ:        1,
			Confidence: it.Confidence,
		}
		if it.Product != nil {
			line.Stock = it.Product.Stock
			line.MOQ = it.Product.MinOrderQty
		}
		r.Items = append(r.Items, line)
		r.TotalPrice += it.TotalPrice

		for _, is := range it.Issues {
			r.Issues = append(r.Issues, ReviewIssue{
				Type:              is.Kind,
				SKU:               it.SKU,
				Message:           is.Message,
				SuggestedSolution: is.SuggestedSolution,
				Suggestions:       productCodes(is.SuggestedProducts),
			})
		}
	}

	// order-level issues with no item behind them (failed extraction)
	for _, is := range order.OverallIssues {
		if is.Kind == model.IssueExtractionFailed {
			r.Issues = append(r.Issues, ReviewIssue{
				Type:              is.Kind,
				Message:           is.Message,
				SuggestedSolution: is.SuggestedSolution,
			})
		}
	}
	return r
}

func productCodes(ps []model.Product) []string {
	if len(ps) == 0 {
		return nil
	}
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Code)
	}
	return out
}
