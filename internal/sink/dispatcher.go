// Package sink delivers sealed session logs to their destinations.
package sink

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/aospan/internal/model"
)

// Target is one destination for a sealed session log.
type Target interface {
	Name() string
	Deliver(ctx context.Context, log model.SessionLog) error
}

// Dispatcher fans a session log out to every target without blocking the
// caller. Target failures are logged and never reach the session.
type Dispatcher struct {
	ctx     context.Context
	logger  *zap.Logger
	targets []Target
	group   errgroup.Group
}

// NewDispatcher builds a dispatcher whose deliveries run under ctx.
func NewDispatcher(ctx context.Context, logger *zap.Logger, targets ...Target) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{ctx: ctx, logger: logger, targets: targets}
}

// Dispatch starts one delivery per target and returns immediately.
func (d *Dispatcher) Dispatch(log model.SessionLog) {
	for _, t := range d.targets {
		d.group.Go(func() error {
			d.deliver(t, log)
			return nil
		})
	}
}

func (d *Dispatcher) deliver(t Target, log model.SessionLog) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("sink panicked", zap.String("sink", t.Name()), zap.Any("panic", r))
		}
	}()
	start := time.Now()
	if err := t.Deliver(d.ctx, log); err != nil {
		d.logger.Warn("sink delivery failed",
			zap.String("sink", t.Name()),
			zap.String("session_id", log.SessionID),
			zap.Error(err))
		return
	}
	d.logger.Debug("sink delivered",
		zap.String("sink", t.Name()),
		zap.String("session_id", log.SessionID),
		zap.Duration("took", time.Since(start)))
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain sinks: %w", ctx.Err())
	}
}
