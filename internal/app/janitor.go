package app

import (
	"context"
	"log/slog"
	"time"
)

// staleDeleter removes cart records last written before a cutoff.
type staleDeleter interface {
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// runStaleCartJanitor deletes carts idle for longer than ttl every interval
// until ctx is done. Redis expires keys itself; Postgres needs the sweep.
func runStaleCartJanitor(ctx context.Context, d staleDeleter, ttl, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepStaleCarts(ctx, d, time.Now().Add(-ttl), logger)
		}
	}
}

func sweepStaleCarts(ctx context.Context, d staleDeleter, before time.Time, logger *slog.Logger) {
	n, err := d.DeleteStale(ctx, before)
	if err != nil {
		logger.ErrorContext(ctx, "stale cart sweep failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		logger.InfoContext(ctx, "stale carts deleted",
			slog.Int64("count", n),
			slog.Time("before", before),
		)
	}
}
