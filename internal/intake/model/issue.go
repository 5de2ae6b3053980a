package model

// IssueKind is the closed set of problems validation can attach to an item or order.
type IssueKind string

const (
	IssueSKUNotFound       IssueKind = "SKU_NOT_FOUND"
	IssueOutOfStock        IssueKind = "OUT_OF_STOCK"
	IssueInsufficientStock IssueKind = "INSUFFICIENT_STOCK"
	IssueMOQNotMet         IssueKind = "MOQ_NOT_MET"
	// IssueExtractionFailed is order-level only: the email yielded no usable items.
	IssueExtractionFailed IssueKind = "EXTRACTION_FAILED"
)

// ItemIssueKinds lists item-level kinds in the order used for order summaries.
var ItemIssueKinds = []IssueKind{
	IssueSKUNotFound,
	IssueOutOfStock,
	IssueInsufficientStock,
	IssueMOQNotMet,
}

// Critical reports whether an issue of this kind makes the whole order INVALID.
func (k IssueKind) Critical() bool {
	switch k {
	case IssueSKUNotFound, IssueOutOfStock, IssueExtractionFailed:
		return true
	case IssueInsufficientStock, IssueMOQNotMet:
		return false
	default:
		return false
	}
}

func (k IssueKind) String() string {
	return string(k)
}

// Issue describes a single validation problem. Count is only set on
// order-level summaries.
type Issue struct {
	Kind              IssueKind `json:"type"`
	Message           string    `json:"message"`
	SuggestedSolution string    `json:"suggested_solution,omitempty"`
	SuggestedProducts []Product `json:"suggested_products,omitempty"`
	Count             int       `json:"count,omitempty"`
}

// HasIssue reports whether issues contains one of the given kind.
func HasIssue(issues []Issue, kind IssueKind) bool {
	for _, is := range issues {
		if is.Kind == kind {
			return true
		}
	}
	return false
}

// CountIssues returns how many issues of the given kind are present.
func CountIssues(issues []Issue, kind IssueKind) int {
	n := 0
	for _, is := range issues {
		if is.Kind == kind {
			n++
		}
	}
	return n
}
