package model

import "context"

type OrderRepository interface {
	// Save stores a processed order and folds it into the running stats.
	Save(ctx context.Context, order *Order) error

	// Get loads a previously processed order. Unknown or expired IDs return a not-found AppError.
	Get(ctx context.Context, id string) (*Order, error)

	// Stats returns aggregate counters over every saved order.
	Stats(ctx context.Context) (*OrderStats, error)
}

// OrderStats summarises the orders processed so far.
type OrderStats struct {
	TotalProcessed    int64   `json:"total_processed"`
	Valid             int64   `json:"valid"`
	NeedsReview       int64   `json:"needs_review"`
	Invalid           int64   `json:"invalid"`
	AverageConfidence float64 `json:"average_confidence"`
}
