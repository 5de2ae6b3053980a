package repo

import (
	"context"
	"sync"
	"time"

	errx "github.com/smart-order-intake/server/internal/core/error"
	"github.com/smart-order-intake/server/internal/intake/model"
)

type memoryEntry struct {
	order     model.Order
	expiresAt time.Time
}

// MemoryOrderRepository keeps orders in process memory. Used when Redis is not configured.
type MemoryOrderRepository struct {
	mu            sync.RWMutex
	ttl           time.Duration
	now           func() time.Time
	orders        map[string]memoryEntry
	stats         model.OrderStats
	confidenceSum float64
}

func NewMemoryOrderRepository(ttl time.Duration) *MemoryOrderRepository {
	return &MemoryOrderRepository{
		ttl:    ttl,
		now:    time.Now,
		orders: make(map[string]memoryEntry),
	}
}

func (r *MemoryOrderRepository) Save(_ context.Context, order *model.Order) error {
	if order == nil || order.ID == "" {
		return errx.BadRequest("order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictExpired()
	entry := memoryEntry{order: *order}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}
	r.orders[order.ID] = entry

	r.stats.TotalProcessed++
	switch order.Status {
	case model.StatusValid:
		r.stats.Valid++
	case model.StatusNeedsReview:
		r.stats.NeedsReview++
	default:
		r.stats.Invalid++
	}
	r.confidenceSum += order.Confidence
	return nil
}

func (r *MemoryOrderRepository) Get(_ context.Context, id string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.orders[id]
	if !ok || r.expired(entry) {
		return nil, errx.NotFound("order", id)
	}
	order := entry.order
	return &order, nil
}

func (r *MemoryOrderRepository) Stats(context.Context) (*model.OrderStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := r.stats
	if stats.TotalProcessed > 0 {
		stats.AverageConfidence = r.confidenceSum / float64(stats.TotalProcessed)
	}
	return &stats, nil
}

func (r *MemoryOrderRepository) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt)
}

// evictExpired must be called with the write lock held.
func (r *MemoryOrderRepository) evictExpired() {
	for id, e := range r.orders {
		if r.expired(e) {
			delete(r.orders, id)
		}
	}
}

var _ model.OrderRepository = (*MemoryOrderRepository)(nil)
