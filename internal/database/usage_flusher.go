package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/imstrack/imstrack/internal/database/models"
	"github.com/imstrack/imstrack/internal/usage"
)

// UsageSource provides the live per-UID usage totals, normally the
// tracker's ledger.
type UsageSource interface {
	UsagePerUID() map[int]usage.Snapshot
}

// UsageFlusher persists video data usage into the call_usage table.
// The ledger only accumulates in memory, so each flush writes the
// delta since the previous one; totals survive a restart as the sum of
// the stored samples.
type UsageFlusher struct {
	repo   CallUsageRepository
	src    UsageSource
	logger *slog.Logger

	mu   sync.Mutex
	last map[int]usage.Snapshot
}

// NewUsageFlusher creates a flusher. logger may be nil.
func NewUsageFlusher(repo CallUsageRepository, src UsageSource, logger *slog.Logger) *UsageFlusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageFlusher{
		repo:   repo,
		src:    src,
		logger: logger,
		last:   make(map[int]usage.Snapshot),
	}
}

// Flush writes one sample per UID whose totals grew since the last
// flush. A failed insert leaves that UID's watermark alone so the
// delta is retried next time.
func (f *UsageFlusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for uid, snap := range f.src.UsagePerUID() {
		prev := f.last[uid]
		rx := snap.RxBytes - prev.RxBytes
		tx := snap.TxBytes - prev.TxBytes
		if rx == 0 && tx == 0 {
			continue
		}

		sample := &models.CallUsage{UID: uid, RxBytes: int64(rx), TxBytes: int64(tx)}
		if err := f.repo.Record(ctx, sample); err != nil {
			f.logger.Error("flushing usage sample", "uid", uid, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		f.last[uid] = snap
	}
	return firstErr
}

// Run flushes every interval until ctx is cancelled, then makes a
// final flush so usage from the last interval is not lost on shutdown.
func (f *UsageFlusher) Run(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			f.Flush(ctx) //nolint:errcheck
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			f.Flush(flushCtx) //nolint:errcheck
			cancel()
			return
		}
	}
}
