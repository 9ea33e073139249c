package store

import (
	"context"
	"fmt"
	"time"

	apperrors "coursegraph-backend/pkg/errors"
	"coursegraph-backend/pkg/observability"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine executes prepared statements against a storage backend.
type Engine interface {
	Compiler
	// Exec runs a mutation.
	Exec(ctx context.Context, s Statement) error
	// Get reads one row; a missing row is (nil, nil).
	Get(ctx context.Context, s Statement) (Row, error)
	// Query reads a partition in sort-key order.
	Query(ctx context.Context, s Statement) ([]Row, error)
}

// Session couples an engine with its statement cache and is what the
// persistence components execute through.
type Session struct {
	engine  Engine
	cache   *Cache
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewSession creates a session. metrics may be nil.
func NewSession(engine Engine, cache *Cache, logger *zap.Logger, metrics *observability.Metrics) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		engine:  engine,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

// Prepare compiles t through the shared cache.
func (s *Session) Prepare(t Template) (*Prepared, error) {
	return s.cache.Prepare(t)
}

// PrepareAll compiles every template and returns them by name.
func (s *Session) PrepareAll(templates ...Template) (map[string]*Prepared, error) {
	out := make(map[string]*Prepared, len(templates))
	for _, t := range templates {
		p, err := s.cache.Prepare(t)
		if err != nil {
			return nil, err
		}
		out[t.Name] = p
	}
	return out, nil
}

// Engine returns the underlying engine.
func (s *Session) Engine() Engine {
	return s.engine
}

// Logger returns the session logger.
func (s *Session) Logger() *zap.Logger {
	return s.logger
}

// Metrics returns the session metrics, possibly nil.
func (s *Session) Metrics() *observability.Metrics {
	return s.metrics
}

// Exec runs one mutation.
func (s *Session) Exec(ctx context.Context, stmt Statement) error {
	if err := checkPrepared(stmt); err != nil {
		return err
	}
	if !stmt.Template.Op.Mutation() {
		return fmt.Errorf("statement %s: %s is not a mutation", stmt.Template.Name, stmt.Template.Op)
	}
	start := time.Now()
	err := s.engine.Exec(ctx, stmt)
	s.metrics.ObserveStatement(stmt.Template.Op.String(), stmt.Template.Name, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%s: %w", stmt, err)
	}
	return nil
}

// Get reads one row; absence is (nil, nil).
func (s *Session) Get(ctx context.Context, stmt Statement) (Row, error) {
	if err := checkPrepared(stmt); err != nil {
		return nil, err
	}
	start := time.Now()
	row, err := s.engine.Get(ctx, stmt)
	s.metrics.ObserveStatement(stmt.Template.Op.String(), stmt.Template.Name, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stmt, err)
	}
	return row, nil
}

// Query reads the rows of a partition.
func (s *Session) Query(ctx context.Context, stmt Statement) ([]Row, error) {
	if err := checkPrepared(stmt); err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := s.engine.Query(ctx, stmt)
	s.metrics.ObserveStatement(stmt.Template.Op.String(), stmt.Template.Name, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stmt, err)
	}
	return rows, nil
}

// ExecBatch issues every statement concurrently and waits until all of them
// have settled. Statements are not atomic with respect to each other: when
// some fail the others stay applied, and the result is a FanOutError
// carrying the first failure observed.
func (s *Session) ExecBatch(ctx context.Context, operation string, stmts []Statement) error {
	if len(stmts) == 0 {
		return nil
	}

	errs := make([]error, len(stmts))
	var g errgroup.Group
	for i, stmt := range stmts {
		g.Go(func() error {
			errs[i] = s.Exec(ctx, stmt)
			return errs[i]
		})
	}
	first := g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	s.metrics.ObserveBatch(operation, len(stmts), failed)

	if first == nil {
		s.logger.Debug("Fan-out batch applied",
			zap.String("operation", operation),
			zap.Int("statements", len(stmts)),
		)
		return nil
	}

	s.logger.Debug("Fan-out batch failed",
		zap.String("operation", operation),
		zap.Int("statements", len(stmts)),
		zap.Int("failed", failed),
		zap.Error(first),
	)
	return &apperrors.FanOutError{
		Operation: operation,
		Failed:    failed,
		Total:     len(stmts),
		Err:       first,
	}
}

func checkPrepared(stmt Statement) error {
	if !stmt.Prepared() {
		return fmt.Errorf("statement %s was not prepared", stmt.Template.Name)
	}
	return nil
}
