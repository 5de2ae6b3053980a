package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/smart-order-intake/server/internal/core/error"
	"github.com/smart-order-intake/server/internal/intake/model"
	logx "github.com/smart-order-intake/server/pkg/logger"
)

const statsKey = "orders:stats"

// Fields of the stats hash.
const (
	fieldTotal         = "total"
	fieldConfidenceSum = "confidence_sum"
	fieldValid         = "valid"
	fieldNeedsReview   = "needs_review"
	fieldInvalid       = "invalid"
)

type RedisOrderRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisOrderRepository(rdb redis.Cmdable, ttl time.Duration) *RedisOrderRepository {
	return &RedisOrderRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisOrderRepository) orderKey(id string) string {
	return fmt.Sprintf("order:%s", id)
}

func (r *RedisOrderRepository) Save(ctx context.Context, order *model.Order) error {
	if order == nil || order.ID == "" {
		return errx.BadRequest("order id is required")
	}
	b, err := json.Marshal(order)
	if err != nil {
		logx.Error().Err(err).Str("order_id", order.ID).Msg("failed to marshal order")
		return fmt.Errorf("marshal order: %w", err)
	}
	key := r.orderKey(order.ID)

	// order body and stats move together
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, b, r.ttl)
		pipe.HIncrBy(ctx, statsKey, fieldTotal, 1)
		pipe.HIncrBy(ctx, statsKey, statusField(order.Status), 1)
		pipe.HIncrByFloat(ctx, statsKey, fieldConfidenceSum, order.Confidence)
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save order to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisOrderRepository) Get(ctx context.Context, id string) (*model.Order, error) {
	key := r.orderKey(id)
	s, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.NotFound("order", id)
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load order from redis")
		return nil, errx.WrapRedis(err)
	}

	var order model.Order
	if err := json.Unmarshal([]byte(s), &order); err != nil {
		logx.Error().Err(err).Str("order_id", id).Msg("failed to unmarshal order")
		return nil, fmt.Errorf("unmarshal order %s: %w", id, err)
	}
	return &order, nil
}

func (r *RedisOrderRepository) Stats(ctx context.Context) (*model.OrderStats, error) {
	fields, err := r.rdb.HGetAll(ctx, statsKey).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", statsKey).Msg("failed to load order stats from redis")
		return nil, errx.WrapRedis(err)
	}

	stats := &model.OrderStats{
		TotalProcessed: parseInt(fields[fieldTotal]),
		Valid:          parseInt(fields[fieldValid]),
		NeedsReview:    parseInt(fields[fieldNeedsReview]),
		Invalid:        parseInt(fields[fieldInvalid]),
	}
	if stats.TotalProcessed > 0 {
		sum, _ := strconv.ParseFloat(fields[fieldConfidenceSum], 64)
		stats.AverageConfidence = sum / float64(stats.TotalProcessed)
	}
	return stats, nil
}

func statusField(s model.OrderStatus) string {
	switch s {
	case model.StatusValid:
		return fieldValid
	case model.StatusNeedsReview:
		return fieldNeedsReview
	default:
		return fieldInvalid
	}
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

var _ model.OrderRepository = (*RedisOrderRepository)(nil)
