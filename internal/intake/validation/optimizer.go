package validation

import (
	"fmt"

	"github.com/smart-order-intake/server/internal/intake/model"
)

// Optimize recommends quantities for resolved items: raise to the MOQ, then cap
// at available stock. The stock cap runs last and wins when both apply, even
// if that leaves the quantity under the MOQ. Line totals are recomputed.
// Unresolved items pass through unchanged. The input slice is not modified.
func Optimize(items []model.ValidatedItem) []model.ValidatedItem {
	out := make([]model.ValidatedItem, len(items))
	for i, it := range items {
		out[i] = optimizeItem(it)
	}
	return out
}

func optimizeItem(it model.ValidatedItem) model.ValidatedItem {
	if it.Product == nil {
		return it
	}
	p := it.Product

	// issues are rewritten below; detach from the caller's backing array
	it.Issues = append([]model.Issue(nil), it.Issues...)

	if it.RequestedQuantity < p.MinOrderQty {
		it.ValidatedQuantity = intPtr(p.MinOrderQty)
		for i := range it.Issues {
			if it.Issues[i].Kind == model.IssueMOQNotMet {
				it.Issues[i].SuggestedSolution = fmt.Sprintf("Recommended quantity: %d (meets MOQ requirement)", p.MinOrderQty)
			}
		}
	}
	if it.RequestedQuantity > p.Stock {
		it.ValidatedQuantity = intPtr(p.Stock)
	}

	it.TotalPrice = it.Price * float64(it.EffectiveQuantity())
	return it
}
