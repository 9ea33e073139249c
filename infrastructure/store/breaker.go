package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the engine circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests have been seen in the current interval.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerEngine stops sending statements to an engine that keeps failing.
// While the breaker is closed, engine errors pass through unchanged; while it
// is open, statements fail fast with gobreaker.ErrOpenState.
type BreakerEngine struct {
	next Engine
	cb   *gobreaker.CircuitBreaker
}

var _ Engine = (*BreakerEngine)(nil)

// NewBreakerEngine wraps next with a circuit breaker.
func NewBreakerEngine(next Engine, config BreakerConfig, logger *zap.Logger) *BreakerEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Storage circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Caller cancellations say nothing about engine health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerEngine{next: next, cb: cb}
}

// State returns the breaker state.
func (b *BreakerEngine) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerEngine) Compile(t Template) (any, error) {
	return b.next.Compile(t)
}

func (b *BreakerEngine) Exec(ctx context.Context, s Statement) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Exec(ctx, s)
	})
	return err
}

func (b *BreakerEngine) Get(ctx context.Context, s Statement) (Row, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.Get(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	row, _ := res.(Row)
	return row, nil
}

func (b *BreakerEngine) Query(ctx context.Context, s Statement) ([]Row, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.next.Query(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	rows, _ := res.([]Row)
	return rows, nil
}
