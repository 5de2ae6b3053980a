// Package extraction turns an email into an ExtractedOrder without ever failing.
package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/smart-order-intake/server/internal/intake/model"
	logx "github.com/smart-order-intake/server/pkg/logger"
)

// Runner is the extraction graph.
type Runner interface {
	Invoke(ctx context.Context, in model.EmailInput) (*model.ExtractedOrder, error)
}

// Observer is notified of each extraction outcome (metrics).
type Observer interface {
	ObserveExtraction(outcome string, elapsed time.Duration)
	ObserveBreakerState(name string, state gobreaker.State)
}

// Extraction outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeBreakerOpen = "breaker_open"
	OutcomeTimeout     = "timeout"
)

const breakerName = "llm-extraction"

type Config struct {
	Timeout time.Duration
	Breaker model.BreakerConfig
}

// Adapter runs the extraction graph behind a circuit breaker with a per-call
// timeout. Any failure yields model.DegradedExtraction.
type Adapter struct {
	runner   Runner
	cb       *gobreaker.CircuitBreaker
	timeout  time.Duration
	observer Observer
}

func NewAdapter(runner Runner, cfg Config, observer Observer) *Adapter {
	a := &Adapter{
		runner:   runner,
		timeout:  cfg.Timeout,
		observer: observer,
	}

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	a.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logx.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			if a.observer != nil {
				a.observer.ObserveBreakerState(name, to)
			}
		},
	})
	if observer != nil {
		observer.ObserveBreakerState(breakerName, gobreaker.StateClosed)
	}
	return a
}

// Extract makes a single attempt. It never returns nil.
func (a *Adapter) Extract(ctx context.Context, email string) *model.ExtractedOrder {
	requestID := uuid.NewString()
	start := time.Now()

	res, err := a.cb.Execute(func() (interface{}, error) {
		callCtx := ctx
		if a.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}
		return a.runner.Invoke(callCtx, model.EmailInput{RequestID: requestID, Email: email})
	})
	elapsed := time.Since(start)

	if err != nil {
		outcome := classify(err)
		logx.Error().
			Err(err).
			Str("request_id", requestID).
			Str("outcome", outcome).
			Dur("elapsed", elapsed).
			Msg("Email extraction failed; returning degraded order")
		a.observe(outcome, elapsed)
		return model.DegradedExtraction(email)
	}

	out, ok := res.(*model.ExtractedOrder)
	if !ok || out == nil {
		logx.Error().Str("request_id", requestID).Msg("Email extraction returned no result; returning degraded order")
		a.observe(OutcomeFailure, elapsed)
		return model.DegradedExtraction(email)
	}

	if out.OriginalEmail == "" {
		out.OriginalEmail = email
	}
	logx.Info().
		Str("request_id", requestID).
		Int("items", len(out.Items)).
		Float64("confidence", out.Confidence).
		Float64("cost_usd", out.CostUSD).
		Dur("elapsed", elapsed).
		Msg("Email extracted")
	a.observe(OutcomeSuccess, elapsed)
	return out
}

// State reports the breaker state for health output.
func (a *Adapter) State() gobreaker.State {
	return a.cb.State()
}

func (a *Adapter) observe(outcome string, elapsed time.Duration) {
	if a.observer != nil {
		a.observer.ObserveExtraction(outcome, elapsed)
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return OutcomeBreakerOpen
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeFailure
	}
}
