package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sessionlock/internal/logging"
)

// DefaultSweepInterval is used when NewSweeper is given a zero interval.
const DefaultSweepInterval = time.Minute

// Sweeper periodically removes expired records that nobody reads again.
// Fetch already treats them as absent; the sweeper only reclaims space.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSweeper creates a sweeper over store.
func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled or Stop is called.
// It blocks; run it in its own goroutine.
func (w *Sweeper) Start(ctx context.Context) {
	w.logger.Info("Sweeper started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Sweeper stopping", "reason", ctx.Err())
			return
		case <-w.stopChan:
			w.logger.Info("Sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass and returns the number of removed records.
// Failures are logged; the next tick tries again.
func (w *Sweeper) Sweep(ctx context.Context) int64 {
	n, err := w.store.SweepExpired(ctx)
	if err != nil {
		w.logger.Error("Sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		w.logger.Debug("Swept expired sessions", "count", n)
	}
	return n
}

// Stop ends the loop started by Start. It is safe to call more than once.
func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
}
