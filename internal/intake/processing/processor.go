package processing

import (
	"context"
	"fmt"
	"strings"
	"time"

	errx "github.com/smart-order-intake/server/internal/core/error"
	"github.com/smart-order-intake/server/internal/intake/model"
	logx "github.com/smart-order-intake/server/pkg/logger"
)

// Extractor turns raw email text into a best-effort ExtractedOrder. It must not
// fail: extraction problems come back as a degraded order.
type Extractor interface {
	Extract(ctx context.Context, email string) *model.ExtractedOrder
}

// Recorder receives every processed order (metrics).
type Recorder interface {
	ObserveOrder(order *model.Order, elapsed time.Duration)
}

// Config wires the processor's collaborators. Repo and Recorder are optional.
type Config struct {
	Extractor     Extractor
	Aggregator    *Aggregator
	Repo          model.OrderRepository
	Recorder      Recorder
	MaxEmailBytes int64
}

// Processor runs the full intake pipeline for one email.
type Processor struct {
	extractor     Extractor
	aggregator    *Aggregator
	repo          model.OrderRepository
	recorder      Recorder
	maxEmailBytes int64
}

func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is nil")
	}
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is nil")
	}
	return &Processor{
		extractor:     cfg.Extractor,
		aggregator:    cfg.Aggregator,
		repo:          cfg.Repo,
		recorder:      cfg.Recorder,
		maxEmailBytes: cfg.MaxEmailBytes,
	}, nil
}

// ProcessEmail extracts, validates and stores an order. Only invalid input is
// reported as an error; extraction and storage problems never fail the call.
func (p *Processor) ProcessEmail(ctx context.Context, email string) (*model.Order, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errx.BadRequest("email content is required")
	}
	if p.maxEmailBytes > 0 && int64(len(email)) > p.maxEmailBytes {
		return nil, errx.BadRequest(fmt.Sprintf("email content exceeds %d bytes", p.maxEmailBytes))
	}

	start := time.Now()
	extracted := p.extractor.Extract(ctx, email)
	order := p.aggregator.Aggregate(extracted)
	elapsed := time.Since(start)

	logx.Info().
		Str("order_id", order.ID).
		Str("status", string(order.Status)).
		Int("items", len(order.Items)).
		Float64("total_value", order.TotalValue).
		Float64("confidence", order.Confidence).
		Bool("degraded", order.Degraded).
		Dur("elapsed", elapsed).
		Msg("Order processed")

	if p.repo != nil {
		if err := p.repo.Save(ctx, order); err != nil {
			logx.Error().Err(err).Str("order_id", order.ID).Msg("Failed to store processed order")
		}
	}
	if p.recorder != nil {
		p.recorder.ObserveOrder(order, elapsed)
	}
	return order, nil
}

// Order returns a previously processed order.
func (p *Processor) Order(ctx context.Context, id string) (*model.Order, error) {
	if p.repo == nil {
		return nil, errx.NotFound("order", id)
	}
	return p.repo.Get(ctx, id)
}

// Stats returns aggregate counters, or zero stats when no store is configured.
func (p *Processor) Stats(ctx context.Context) (*model.OrderStats, error) {
	if p.repo == nil {
		return &model.OrderStats{}, nil
	}
	return p.repo.Stats(ctx)
}
