package model

import "time"

// OrderStatus is the overall verdict on a processed order.
type OrderStatus string

const (
	StatusValid       OrderStatus = "VALID"
	StatusNeedsReview OrderStatus = "NEEDS_REVIEW"
	StatusInvalid     OrderStatus = "INVALID"
)

const (
	UnknownCustomerName    = "Unknown Customer"
	UnknownDeliveryAddress = "Address not specified"
)

// CustomerInfo is what the extraction model found about the sender.
type CustomerInfo struct {
	Name            string `json:"name"`
	Email           string `json:"email,omitempty"`
	DeliveryAddress string `json:"delivery_address"`
	DeliveryDate    string `json:"delivery_date,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// RequestedItem is a line item as extracted from the email, before any catalog lookup.
type RequestedItem struct {
	SKU               string  `json:"sku"`
	ProductName       string  `json:"product_name"`
	RequestedQuantity int     `json:"requested_quantity"`
	Confidence        float64 `json:"confidence"`
}

// ValidatedItem is a RequestedItem reconciled against the catalog.
// Product is nil when the reference could not be resolved.
type ValidatedItem struct {
	SKU                  string   `json:"sku"`
	RawSKU               string   `json:"raw_sku"`
	ProductName          string   `json:"product_name"`
	RequestedQuantity    int      `json:"requested_quantity"`
	ValidatedQuantity    *int     `json:"validated_quantity,omitempty"`
	Price                float64  `json:"price"`
	TotalPrice           float64  `json:"total_price"`
	Issues               []Issue  `json:"issues"`
	Confidence           float64  `json:"confidence"`
	ExtractionConfidence float64  `json:"extraction_confidence"`
	Product              *Product `json:"product,omitempty"`
}

// Resolved reports whether the item was matched to a catalog product.
func (it ValidatedItem) Resolved() bool {
	return it.Product != nil
}

// EffectiveQuantity is the validated quantity when set, else the requested one.
func (it ValidatedItem) EffectiveQuantity() int {
	if it.ValidatedQuantity != nil {
		return *it.ValidatedQuantity
	}
	return it.RequestedQuantity
}

// ExtractedOrder is the best-effort output of the extraction step.
type ExtractedOrder struct {
	OriginalEmail string          `json:"original_email"`
	CustomerInfo  CustomerInfo    `json:"customer_info"`
	Items         []RequestedItem `json:"items"`
	Confidence    float64         `json:"confidence"`
	// Issues are order-level problems found during extraction (degraded runs).
	Issues          []Issue        `json:"issues,omitempty"`
	Degraded        bool           `json:"degraded"`
	CostUSD         float64        `json:"cost_usd"`
	ParsingMetadata map[string]any `json:"parsing_metadata,omitempty"`
}

// DegradedExtraction is returned whenever extraction fails for any reason.
func DegradedExtraction(email string) *ExtractedOrder {
	return &ExtractedOrder{
		OriginalEmail: email,
		CustomerInfo: CustomerInfo{
			Name:            UnknownCustomerName,
			DeliveryAddress: UnknownDeliveryAddress,
		},
		Items:      []RequestedItem{},
		Confidence: 0,
		Issues: []Issue{{
			Kind:              IssueExtractionFailed,
			Message:           "Failed to parse email content",
			SuggestedSolution: "Manual review required",
			Count:             1,
		}},
		Degraded: true,
	}
}

// Order is the fully processed, reviewable result for one email.
type Order struct {
	ID            string          `json:"id"`
	OriginalEmail string          `json:"original_email"`
	CustomerInfo  CustomerInfo    `json:"customer_info"`
	Items         []ValidatedItem `json:"items"`
	TotalValue    float64         `json:"total_value"`
	OverallIssues []Issue         `json:"overall_issues"`
	Confidence    float64         `json:"confidence"`
	Status        OrderStatus     `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	Degraded      bool            `json:"degraded"`
	CostUSD       float64         `json:"extraction_cost_usd"`
}

// HasIssues reports whether any order-level issue is present.
func (o *Order) HasIssues() bool {
	return len(o.OverallIssues) > 0
}

// ClampUnit bounds v to [0,1]; NaN becomes 0.
func ClampUnit(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
