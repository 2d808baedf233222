package docindex

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tempora/internal/events"
	"github.com/fyrsmithlabs/tempora/internal/vectorstore"
)

// CleanupExpired deletes every chunk whose expiry has passed and returns how
// many were removed. Deletion is permanent.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "docindex.CleanupExpired")
	defer span.End()

	now := s.now()
	n, err := s.index.Delete(ctx, expired(now.UnixMilli()))
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("deleting expired chunks: %w", err)
	}
	span.SetAttributes(attribute.Int("removed", n))
	if n == 0 {
		s.logger.Debug(ctx, "no expired chunks")
		return 0, nil
	}

	ExpiredRemovedTotal.Add(float64(n))
	s.logger.Info(ctx, "removed expired chunks", zap.Int("removed", n))
	e := events.NewEvent(events.DocumentExpired, now)
	e.Removed = n
	s.publish(ctx, e)
	return n, nil
}

// Statistics counts all chunks, chunks of latest versions and expired
// chunks not yet cleaned up.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	ctx, span := tracer.Start(ctx, "docindex.Statistics")
	defer span.End()

	total, err := s.index.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	latest, err := s.index.Count(ctx, vectorstore.Eq(vectorstore.FieldIsLatest, true))
	if err != nil {
		return nil, fmt.Errorf("counting latest chunks: %w", err)
	}
	exp, err := s.index.Count(ctx, expired(s.nowMillis()))
	if err != nil {
		return nil, fmt.Errorf("counting expired chunks: %w", err)
	}

	st := &Statistics{TotalChunks: total, LatestVersionChunks: latest, ExpiredChunks: exp}
	observeStatistics(st)
	span.SetAttributes(
		attribute.Int("total_chunks", total),
		attribute.Int("latest_version_chunks", latest),
		attribute.Int("expired_chunks", exp),
	)
	return st, nil
}

// Sweeper calls CleanupExpired on a fixed interval.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

// NewSweeper returns a Sweeper for svc. A non-positive interval disables it.
func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{svc: svc, interval: interval}
}

// Run sweeps every interval until ctx is done. Failed sweeps are logged and
// retried on the next tick.
func (w *Sweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.svc.logger.Info(ctx, "expiry sweeper disabled")
		return
	}
	w.svc.logger.Info(ctx, "expiry sweeper started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.svc.logger.Info(context.WithoutCancel(ctx), "expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.svc.CleanupExpired(ctx); err != nil && ctx.Err() == nil {
				w.svc.logger.Error(ctx, "expiry sweep failed", zap.Error(err))
			}
		}
	}
}
