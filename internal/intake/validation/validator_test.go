package validation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-order-intake/server/internal/intake/catalog"
	"github.com/smart-order-intake/server/internal/intake/model"
)

var fixtureProducts = []model.Product{
	{Code: "DSK-0001", Name: "Coffee STRÅDAL 620", Price: 50, Stock: 5, MinOrderQty: 2},
	{Code: "DSK-0002", Name: "Office Desk MALMÖ 140", Price: 120, Stock: 0, MinOrderQty: 1},
	{Code: "CHR-0101", Name: "Ergonomic Chair KVISTA", Price: 89.5, Stock: 40, MinOrderQty: 4},
	{Code: "LMP-0200", Name: "Desk Lamp LUMEN", Price: 25, Stock: 100, MinOrderQty: 10},
	{Code: "SHF-0300", Name: "Bookshelf HEMNES 5-tier", Price: 150, Stock: 3, MinOrderQty: 5},
}

func newTestValidator(t *testing.T, products ...model.Product) *Validator {
	t.Helper()
	if len(products) == 0 {
		products = fixtureProducts
	}
	c, err := catalog.New(products)
	require.NoError(t, err)
	return NewValidator(c)
}

func kinds(issues []model.Issue) []model.IssueKind {
	out := make([]model.IssueKind, 0, len(issues))
	for _, is := range issues {
		out = append(out, is.Kind)
	}
	return out
}

func TestValidate_ResolvesByNameAndFlagsInsufficientStock(t *testing.T) {
	v := newTestValidator(t)

	got := v.Validate(model.RequestedItem{SKU: "STRÅDAL 620", RequestedQuantity: 9, Confidence: 0.9})

	require.NotNil(t, got.Product)
	assert.Equal(t, "DSK-0001", got.SKU)
	assert.Equal(t, "STRÅDAL 620", got.RawSKU)
	assert.Equal(t, "Coffee STRÅDAL 620", got.ProductName)
	assert.Equal(t, []model.IssueKind{model.IssueInsufficientStock}, kinds(got.Issues))
	assert.Equal(t, "Reduce quantity to 5 or consider partial shipment", got.Issues[0].SuggestedSolution)
	require.NotNil(t, got.ValidatedQuantity)
	assert.Equal(t, 5, *got.ValidatedQuantity)
	assert.Equal(t, 250.0, got.TotalPrice)
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)
	assert.Equal(t, 0.9, got.ExtractionConfidence)
}

func TestValidate_MOQNotMet(t *testing.T) {
	v := newTestValidator(t)

	got := v.Validate(model.RequestedItem{SKU: "dsk-0001", RequestedQuantity: 1, Confidence: 0.9})

	assert.Equal(t, "DSK-0001", got.SKU)
	assert.Equal(t, []model.IssueKind{model.IssueMOQNotMet}, kinds(got.Issues))
	assert.Equal(t, "Increase quantity to 2 or more", got.Issues[0].SuggestedSolution)
	assert.Nil(t, got.ValidatedQuantity)
	assert.Equal(t, 50.0, got.TotalPrice)
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)
}

func TestValidate_NotFound(t *testing.T) {
	v := newTestValidator(t)

	got := v.Validate(model.RequestedItem{SKU: "ZZZ-9999", ProductName: "Mystery", RequestedQuantity: 4, Confidence: 0.8})

	assert.Nil(t, got.Product)
	assert.Equal(t, "ZZZ-9999", got.SKU)
	assert.Equal(t, "Mystery", got.ProductName)
	assert.Equal(t, []model.IssueKind{model.IssueSKUNotFound}, kinds(got.Issues))
	assert.Empty(t, got.Issues[0].SuggestedProducts)
	assert.Zero(t, got.Price)
	assert.Zero(t, got.TotalPrice)
	assert.InDelta(t, 0.3, got.Confidence, 1e-9)

	low := v.Validate(model.RequestedItem{SKU: "ZZZ-9999", RequestedQuantity: 1, Confidence: 0.3})
	assert.Zero(t, low.Confidence)
}

func TestValidate_NotFoundOffersAtMostThreeSuggestions(t *testing.T) {
	var products []model.Product
	for i := 1; i <= 6; i++ {
		products = append(products, model.Product{
			Code: fmt.Sprintf("WID-%03d", i), Name: fmt.Sprintf("Widget A%d", i), Price: 1, Stock: 10, MinOrderQty: 1,
		})
	}
	v := newTestValidator(t, products...)

	got := v.Validate(model.RequestedItem{SKU: "wadgit", RequestedQuantity: 1, Confidence: 1})

	require.Equal(t, []model.IssueKind{model.IssueSKUNotFound}, kinds(got.Issues))
	assert.Len(t, got.Issues[0].SuggestedProducts, 3)
	assert.Len(t, v.SuggestAlternatives("wadgit"), 5)
}

func TestValidate_OutOfStockIsExclusiveOfInsufficientStock(t *testing.T) {
	v := newTestValidator(t)

	got := v.Validate(model.RequestedItem{SKU: "DSK-0002", RequestedQuantity: 3, Confidence: 1})

	assert.Equal(t, []model.IssueKind{model.IssueOutOfStock}, kinds(got.Issues))
	assert.Nil(t, got.ValidatedQuantity)
	assert.Equal(t, 360.0, got.TotalPrice)
}

func TestValidate_CleanItem(t *testing.T) {
	v := newTestValidator(t)

	got := v.Validate(model.RequestedItem{SKU: "CHR-0101", RequestedQuantity: 10, Confidence: 0.95})

	assert.Empty(t, got.Issues)
	require.NotNil(t, got.ValidatedQuantity)
	assert.Equal(t, 10, *got.ValidatedQuantity)
	assert.Equal(t, 895.0, got.TotalPrice)
	assert.Equal(t, 0.95, got.Confidence)
}

func TestValidate_FuzzyMatchRewritesSKU(t *testing.T) {
	v := newTestValidator(t)

	got := v.Validate(model.RequestedItem{SKU: "ergonomic chiar", RequestedQuantity: 4, Confidence: 0.9})

	assert.Equal(t, "CHR-0101", got.SKU)
	assert.Equal(t, "ergonomic chiar", got.RawSKU)
	assert.Empty(t, got.Issues)
}

func TestValidate_BlankSKUFallsBackToProductName(t *testing.T) {
	v := newTestValidator(t)

	got := v.Validate(model.RequestedItem{SKU: " ", ProductName: "Desk Lamp LUMEN", RequestedQuantity: 20, Confidence: 0.9})

	assert.Equal(t, "LMP-0200", got.SKU)
	assert.Empty(t, got.Issues)
}

func TestValidate_ConfidencePenaltyPerIssue(t *testing.T) {
	v := newTestValidator(t)
	// SHF-0300: stock 3, moq 5 -> 4 units trips both INSUFFICIENT_STOCK and MOQ_NOT_MET
	item := model.RequestedItem{SKU: "SHF-0300", RequestedQuantity: 4}

	tests := []struct {
		base float64
		want float64
	}{
		{base: 0.9, want: 0.5},
		{base: 0.5, want: 0.1},
		{base: 0.35, want: 0.1},
		{base: 0.05, want: 0.05},
		{base: 1.7, want: 0.6},
		{base: -2, want: 0},
	}
	for _, tt := range tests {
		item.Confidence = tt.base
		got := v.Validate(item)
		require.Equal(t, []model.IssueKind{model.IssueInsufficientStock, model.IssueMOQNotMet}, kinds(got.Issues))
		assert.InDelta(t, tt.want, got.Confidence, 1e-9, "base %v", tt.base)
	}
}

func TestValidate_StockAndMOQProperties(t *testing.T) {
	for stock := 0; stock <= 6; stock++ {
		for moq := 1; moq <= 4; moq++ {
			p := model.Product{Code: "P-1", Name: "Probe", Price: 2, Stock: stock, MinOrderQty: moq}
			v := newTestValidator(t, p)
			for qty := 0; qty <= 8; qty++ {
				base := 0.85
				got := v.Validate(model.RequestedItem{SKU: "P-1", RequestedQuantity: qty, Confidence: base})
				name := fmt.Sprintf("stock=%d moq=%d qty=%d", stock, moq, qty)

				if stock == 0 {
					assert.Equal(t, 1, model.CountIssues(got.Issues, model.IssueOutOfStock), name)
					assert.False(t, model.HasIssue(got.Issues, model.IssueInsufficientStock), name)
				}
				if stock > 0 && stock < qty {
					assert.Equal(t, 1, model.CountIssues(got.Issues, model.IssueInsufficientStock), name)
					require.NotNil(t, got.ValidatedQuantity, name)
					assert.Equal(t, stock, *got.ValidatedQuantity, name)
				}
				assert.Equal(t, qty < moq, model.HasIssue(got.Issues, model.IssueMOQNotMet), name)

				assert.GreaterOrEqual(t, got.Confidence, 0.0, name)
				assert.LessOrEqual(t, got.Confidence, base, name)
				if n := len(got.Issues); n > 0 {
					assert.InDelta(t, max(0.1, base-0.2*float64(n)), got.Confidence, 1e-9, name)
				}
				assert.InDelta(t, p.Price*float64(got.EffectiveQuantity()), got.TotalPrice, 1e-9, name)
			}
		}
	}
}
