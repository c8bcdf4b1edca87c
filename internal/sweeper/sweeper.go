// Package sweeper runs the market's periodic background work.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/claim-market/internal/market"
)

// Sweeper is a long-running background task.
type Sweeper interface {
	// Start blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error
	// Stop asks the loop to exit and waits for it, or for ctx.
	Stop(ctx context.Context) error
	Name() string
}

// ErrAlreadyRunning is returned by Start on a running sweeper.
var ErrAlreadyRunning = errors.New("sweeper already running")

// Market is the part of the market the expiration sweeper drives.
type Market interface {
	SweepExpired(ctx context.Context) market.SweepReport
	RefreshDisplays(ctx context.Context) int
}

// Expiration settles expired auctions every interval and refreshes the
// signs of running auctions every refreshEvery ticks.
type Expiration struct {
	market       Market
	interval     time.Duration
	refreshEvery int

	logger *slog.Logger
	tracer trace.Tracer

	mu    sync.Mutex
	ticks int

	running   atomic.Bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewExpiration returns a stopped sweeper. A refreshEvery below 1 disables
// display refreshes.
func NewExpiration(m Market, interval time.Duration, refreshEvery int, logger *slog.Logger, tp trace.TracerProvider) *Expiration {
	return &Expiration{
		market:       m,
		interval:     interval,
		refreshEvery: refreshEvery,
		logger:       logger,
		tracer:       tp.Tracer("github.com/jensholdgaard/claim-market/internal/sweeper"),
	}
}

// Name returns the sweeper's name.
func (s *Expiration) Name() string { return "auction-expiration" }

// Start runs one tick at once, so auctions that expired while the process
// was down settle promptly, and then one per interval.
func (s *Expiration) Start(ctx context.Context) error {
	s.mu.Lock()
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.stopCh = make(chan struct{})
	s.stoppedCh = make(chan struct{})
	stop, stopped := s.stopCh, s.stoppedCh
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running.Store(false)
		s.mu.Unlock()
		close(stopped)
	}()

	s.logger.InfoContext(ctx, "sweeper started",
		slog.String("sweeper", s.Name()),
		slog.Duration("interval", s.interval),
		slog.Int("refresh_every", s.refreshEvery),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopping", slog.String("sweeper", s.Name()), slog.Any("reason", ctx.Err()))
			return nil
		case <-stop:
			s.logger.InfoContext(ctx, "sweeper stop requested", slog.String("sweeper", s.Name()))
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Stop signals the loop and waits for it to exit.
func (s *Expiration) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return nil
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	stopped := s.stoppedCh
	s.mu.Unlock()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "sweeper stop interrupted", slog.String("sweeper", s.Name()))
		return ctx.Err()
	}
}

// Tick performs one sweep, plus a display refresh on every refreshEvery-th
// call.
func (s *Expiration) Tick(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "Expiration.Tick")
	defer span.End()

	rep := s.market.SweepExpired(ctx)
	if rep.Processed > 0 {
		s.logger.InfoContext(ctx, "expired auctions processed",
			slog.Int("processed", rep.Processed),
			slog.Int("settled", rep.Settled),
			slog.Int("failed", rep.Failed),
		)
	}

	s.mu.Lock()
	s.ticks++
	refresh := s.refreshEvery > 0 && s.ticks%s.refreshEvery == 0
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Int("processed", rep.Processed),
		attribute.Bool("refresh", refresh),
	)
	if refresh {
		n := s.market.RefreshDisplays(ctx)
		s.logger.DebugContext(ctx, "auction signs refreshed", slog.Int("count", n))
	}
}
