package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/smart-order-intake/server/internal/core"
	"github.com/smart-order-intake/server/internal/intake/model"
)

const notAvailable = "N/A"

// Stock and MOQ statuses printed on form lines.
const (
	StockAvailable    = "Available"
	StockInsufficient = "Insufficient Stock"
	MOQMet            = "Met"
	MOQBelow          = "Below MOQ"
)

// Form statuses.
const (
	FormStatusApproved    = "APPROVED"
	FormStatusNeedsReview = "NEEDS_REVIEW"
)

type FormLine struct {
	LineNumber  int     `json:"line_number"`
	SKU         string  `json:"sku"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
	StockStatus string  `json:"stock_status"`
	MOQStatus   string  `json:"moq_status"`
}

// SalesOrderForm is the data needed to fill the sales order template.
type SalesOrderForm struct {
	OrderNumber   string `json:"order_number"`
	OrderDate     string `json:"order_date"`
	SourceOrderID string `json:"source_order_id"`

	CustomerName          string `json:"customer_name"`
	CustomerEmail         string `json:"customer_email"`
	DeliveryAddress       string `json:"delivery_address"`
	RequestedDeliveryDate string `json:"requested_delivery_date"`

	Items      []FormLine `json:"items"`
	TotalItems int        `json:"total_items"`
	Subtotal   float64    `json:"subtotal"`
	TaxRate    float64    `json:"tax_rate"`
	Tax        float64    `json:"tax"`
	GrandTotal float64    `json:"grand_total"`

	HasIssues bool          `json:"has_issues"`
	Issues    []ReviewIssue `json:"issues"`

	ProcessedBy string  `json:"processed_by"`
	ProcessedAt string  `json:"processed_at"`
	Confidence  float64 `json:"confidence"`

	FormFields map[string]string `json:"form_fields"`
}

// TemplateInfo reports whether the blank form template is present.
type TemplateInfo struct {
	Exists bool   `json:"exists"`
	Path   string `json:"path,omitempty"`
}

// FormBuilder turns reviewed orders into sales order form data.
type FormBuilder struct {
	taxRate      float64
	templatePath string
	now          func() time.Time
}

func NewFormBuilder(cfg model.ExportConfig) *FormBuilder {
	return &FormBuilder{
		taxRate:      cfg.TaxRate,
		templatePath: cfg.FormTemplate,
		now:          time.Now,
	}
}

// Build fills the form from the order's review lines.
func (b *FormBuilder) Build(order *model.Order) *SalesOrderForm {
	now := b.now().UTC()
	review := BuildReview(order)
	ci := order.CustomerInfo

	form := &SalesOrderForm{
		OrderNumber:           fmt.Sprintf("ORD-%d", now.UnixMilli()),
		OrderDate:             now.Format(time.DateOnly),
		SourceOrderID:         order.ID,
		CustomerName:          orNA(ci.Name),
		CustomerEmail:         orNA(ci.Email),
		DeliveryAddress:       orNA(ci.DeliveryAddress),
		RequestedDeliveryDate: orNA(ci.DeliveryDate),
		Items:                 make([]FormLine, 0, len(review.Items)),
		TotalItems:            len(review.Items),
		Subtotal:              review.TotalPrice,
		TaxRate:               b.taxRate,
		HasIssues:             len(review.Issues) > 0,
		Issues:                review.Issues,
		ProcessedBy:           core.ServiceName,
		ProcessedAt:           now.Format(time.RFC3339),
		Confidence:            order.Confidence,
	}
	form.Tax = form.Subtotal * b.taxRate
	form.GrandTotal = form.Subtotal + form.Tax

	for i, it := range review.Items {
		line := FormLine{
			LineNumber:  i + 1,
			SKU:         it.SKU,
			ProductName: it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.Price,
			TotalPrice:  it.Subtotal,
			StockStatus: StockAvailable,
			MOQStatus:   MOQMet,
		}
		if it.Stock < it.Quantity {
			line.StockStatus = StockInsufficient
		}
		if it.Quantity < it.MOQ {
			line.MOQStatus = MOQBelow
		}
		form.Items = append(form.Items, line)
	}

	status := FormStatusApproved
	if form.HasIssues {
		status = FormStatusNeedsReview
	}
	form.FormFields = map[string]string{
		"order_number":     form.OrderNumber,
		"order_date":       form.OrderDate,
		"customer_name":    ci.Name,
		"customer_email":   ci.Email,
		"delivery_address": ci.DeliveryAddress,
		"delivery_date":    ci.DeliveryDate,
		"total_amount":     fmt.Sprintf("%.2f", form.Subtotal),
		"status":           status,
		"notes":            orderNotes(order.Confidence, review.Issues),
	}
	return form
}

// TemplateInfo checks the configured template path.
func (b *FormBuilder) TemplateInfo() TemplateInfo {
	if b.templatePath == "" {
		return TemplateInfo{}
	}
	st, err := os.Stat(b.templatePath)
	if err != nil || st.IsDir() {
		return TemplateInfo{}
	}
	return TemplateInfo{Exists: true, Path: b.templatePath}
}

func orderNotes(confidence float64, issues []ReviewIssue) string {
	notes := []string{fmt.Sprintf("AI Extraction Confidence: %.1f%%", confidence*100)}
	if len(issues) > 0 {
		notes = append(notes, fmt.Sprintf("Issues Found: %d", len(issues)))
		for _, is := range issues {
			notes = append(notes, "- "+is.Message)
		}
	}
	notes = append(notes, "Processed by "+core.ServiceName)
	return strings.Join(notes, "\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
