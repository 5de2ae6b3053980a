package model

// Product is one catalog row. Rows are immutable once the catalog is loaded.
type Product struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	MinOrderQty int     `json:"min_order_quantity"`
	Description string  `json:"description,omitempty"`
}

// SearchResult groups catalog matches for a free-text product reference.
type SearchResult struct {
	ExactMatches []Product `json:"exact_matches"`
	FuzzyMatches []Product `json:"fuzzy_matches"`
	Suggestions  []Product `json:"suggestions"`
}

// Empty reports whether the search produced no candidates at all.
func (r SearchResult) Empty() bool {
	return len(r.ExactMatches) == 0 && len(r.FuzzyMatches) == 0 && len(r.Suggestions) == 0
}
