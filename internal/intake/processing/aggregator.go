// Package processing turns an extracted email into a reviewed Order.
package processing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smart-order-intake/server/internal/intake/model"
	"github.com/smart-order-intake/server/internal/intake/validation"
)

// summaryText holds the order-level wording for each item issue kind.
var summaryText = map[model.IssueKind]struct{ message, solution string }{
	model.IssueSKUNotFound:       {"%d product(s) not found in catalog", "Review product codes and consider suggested alternatives"},
	model.IssueOutOfStock:        {"%d product(s) are out of stock", "Remove out-of-stock items or wait for restock"},
	model.IssueInsufficientStock: {"%d product(s) have insufficient stock", "Adjust quantities to available stock levels"},
	model.IssueMOQNotMet:         {"%d product(s) don't meet minimum order quantities", "Increase quantities to meet MOQ requirements"},
}

// Aggregator validates, optimises and scores every item of an extracted order.
type Aggregator struct {
	validator *validation.Validator
	now       func() time.Time
	newID     func() string
}

func NewAggregator(v *validation.Validator) *Aggregator {
	return &Aggregator{
		validator: v,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Aggregate builds the final Order. It never fails: problems are issues.
func (a *Aggregator) Aggregate(extracted *model.ExtractedOrder) *model.Order {
	if extracted == nil {
		extracted = model.DegradedExtraction("")
	}

	items := validation.Optimize(a.validator.ValidateAll(extracted.Items))

	total := 0.0
	for _, it := range items {
		total += it.TotalPrice
	}

	issues := summarizeIssues(extracted, items)

	return &model.Order{
		ID:            a.newID(),
		OriginalEmail: extracted.OriginalEmail,
		CustomerInfo:  extracted.CustomerInfo,
		Items:         items,
		TotalValue:    total,
		OverallIssues: issues,
		Confidence:    finalConfidence(extracted.Confidence, items),
		Status:        deriveStatus(issues),
		CreatedAt:     a.now().UTC(),
		Degraded:      extracted.Degraded,
		CostUSD:       extracted.CostUSD,
	}
}

// summarizeIssues carries extraction issues first, then one entry per item
// issue kind in fixed order. An empty order always carries an EXTRACTION_FAILED.
func summarizeIssues(extracted *model.ExtractedOrder, items []model.ValidatedItem) []model.Issue {
	issues := make([]model.Issue, 0, len(extracted.Issues)+len(model.ItemIssueKinds))
	issues = append(issues, extracted.Issues...)

	if len(items) == 0 && !model.HasIssue(issues, model.IssueExtractionFailed) {
		issues = append(issues, model.Issue{
			Kind:              model.IssueExtractionFailed,
			Message:           "No order items could be extracted from the email",
			SuggestedSolution: "Manual review required",
			Count:             1,
		})
	}

	counts := make(map[model.IssueKind]int, len(model.ItemIssueKinds))
	for _, it := range items {
		for _, is := range it.Issues {
			counts[is.Kind]++
		}
	}
	for _, kind := range model.ItemIssueKinds {
		n := counts[kind]
		if n == 0 {
			continue
		}
		text := summaryText[kind]
		issues = append(issues, model.Issue{
			Kind:              kind,
			Message:           fmt.Sprintf(text.message, n),
			SuggestedSolution: text.solution,
			Count:             n,
		})
	}
	return issues
}

func deriveStatus(issues []model.Issue) model.OrderStatus {
	if len(issues) == 0 {
		return model.StatusValid
	}
	for _, is := range issues {
		if is.Kind.Critical() {
			return model.StatusInvalid
		}
	}
	return model.StatusNeedsReview
}

// finalConfidence blends extraction confidence with the mean item confidence.
func finalConfidence(extraction float64, items []model.ValidatedItem) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, it := range items {
		sum += it.Confidence
	}
	return model.ClampUnit((model.ClampUnit(extraction) + sum/float64(len(items))) / 2)
}
