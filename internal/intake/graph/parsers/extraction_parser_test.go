package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-order-intake/server/internal/intake/model"
)

func TestParseExtraction_FencedJSON(t *testing.T) {
	content := "Here is the order:\n```json\n" + `{
  "customerInfo": {"name": "Jane Doe", "email": null, "deliveryAddress": "12 Harbour Rd", "deliveryDate": "2025-04-01", "notes": null},
  "items": [
    {"sku": "DSK-0001", "productName": "Coffee STRÅDAL 620", "requestedQuantity": 9, "confidence": 0.95},
    {"sku": "LMP-0200", "productName": "Desk Lamp", "requestedQuantity": 10, "confidence": 0.85}
  ]
}` + "\n```"

	got, err := ParseExtraction(content)
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", got.CustomerInfo.Name)
	assert.Empty(t, got.CustomerInfo.Email)
	assert.Equal(t, "12 Harbour Rd", got.CustomerInfo.DeliveryAddress)
	assert.Equal(t, "2025-04-01", got.CustomerInfo.DeliveryDate)
	require.Len(t, got.Items, 2)
	assert.Equal(t, model.RequestedItem{SKU: "DSK-0001", ProductName: "Coffee STRÅDAL 620", RequestedQuantity: 9, Confidence: 0.95}, got.Items[0])
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.NotContains(t, got.ParsingMetadata, "parsing_errors")
}

func TestParseExtraction_CoercesQuantitiesAndConfidence(t *testing.T) {
	content := `{"customerInfo": {}, "items": [
		{"sku": "A", "requestedQuantity": "10 units", "confidence": "0.8"},
		{"sku": "B", "requestedQuantity": 2.7, "confidence": 1.4},
		{"sku": "C", "requestedQuantity": "many", "confidence": -1},
		{"sku": "D", "requestedQuantity": -4},
		{"productName": "Desk Lamp", "requestedQuantity": "3"}
	]}`

	got, err := ParseExtraction(content)
	require.NoError(t, err)
	require.Len(t, got.Items, 5)

	qty := make([]int, 0, len(got.Items))
	conf := make([]float64, 0, len(got.Items))
	for _, it := range got.Items {
		qty = append(qty, it.RequestedQuantity)
		conf = append(conf, it.Confidence)
	}
	assert.Equal(t, []int{10, 2, 0, 0, 3}, qty)
	assert.Equal(t, []float64{0.8, 1, 0, 0, 0}, conf)
	assert.Equal(t, "Desk Lamp", got.Items[4].ProductName)

	errs, _ := got.ParsingMetadata["parsing_errors"].([]string)
	assert.Len(t, errs, 4)
}

func TestParseExtraction_DefaultsCustomerFields(t *testing.T) {
	got, err := ParseExtraction(`{"customerInfo": {"name": "  ", "deliveryAddress": "null"}, "items": []}`)
	require.NoError(t, err)

	assert.Equal(t, model.UnknownCustomerName, got.CustomerInfo.Name)
	assert.Equal(t, model.UnknownDeliveryAddress, got.CustomerInfo.DeliveryAddress)
	assert.Empty(t, got.Items)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestParseExtraction_SkipsEmptyItems(t *testing.T) {
	got, err := ParseExtraction(`{"items": [{"requestedQuantity": 4}, {"sku": "X", "requestedQuantity": 1, "confidence": 0.5}]}`)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "X", got.Items[0].SKU)
}

func TestParseExtraction_Errors(t *testing.T) {
	_, err := ParseExtraction("I could not find any order in this email.")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseExtraction(`{"items": [ {"sku": }`)
	assert.Error(t, err)

	_, err = ParseExtraction(`{"items": "none"}`)
	assert.Error(t, err)
}

func TestParseExtraction_TruncatesHugeContent(t *testing.T) {
	body := `{"items": [{"sku": "A", "requestedQuantity": 1, "confidence": 1}]}`
	content := body + strings.Repeat(" ", maxContentLen)

	got, err := ParseExtraction(content)
	require.NoError(t, err)
	assert.Equal(t, true, got.ParsingMetadata["truncated"])
}
