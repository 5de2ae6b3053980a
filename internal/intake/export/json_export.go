package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smart-order-intake/server/internal/core"
	"github.com/smart-order-intake/server/internal/intake/model"
)

// Document is the downloadable JSON export of one order.
type Document struct {
	ExportedAt  time.Time    `json:"exported_at"`
	GeneratedBy string       `json:"generated_by"`
	Version     string       `json:"version"`
	Order       *model.Order `json:"order"`
	Review      Review       `json:"review"`
}

// MarshalOrder renders an indented JSON export.
func MarshalOrder(order *model.Order, exportedAt time.Time) ([]byte, error) {
	doc := Document{
		ExportedAt:  exportedAt.UTC(),
		GeneratedBy: core.ServiceName,
		Version:     core.Version,
		Order:       order,
		Review:      BuildReview(order),
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return b, nil
}

// Filename is the attachment name for an order export.
func Filename(orderID string) string {
	return fmt.Sprintf("order-%s.json", orderID)
}
