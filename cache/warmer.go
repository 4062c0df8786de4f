package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Warmer periodically runs GetImages so a long-running server refreshes the
// record in the background rather than on a user request.
type Warmer struct {
	manager  *Manager
	category string
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWarmer creates a warmer checking the record every interval.
func NewWarmer(m *Manager, category string, interval time.Duration) *Warmer {
	if interval <= 0 {
		interval = m.config.StaleAfter / 2
	}
	if category == "" {
		category = m.config.Category
	}

	return &Warmer{
		manager:  m,
		category: category,
		interval: interval,
		logger:   m.logger.With("component", "warmer"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins background checks. It returns immediately.
func (w *Warmer) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return
	}
	w.running = true

	go w.run(ctx)
}

// Stop ends background checks and waits for an in-progress check to finish.
func (w *Warmer) Stop() {
	w.mu.Lock()
	if !w.running || w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
}

func (w *Warmer) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce checks the record once, refreshing it if needed.
func (w *Warmer) RunOnce(ctx context.Context) (Result, error) {
	_, result, err := w.manager.GetImages(ctx, w.category)
	if err != nil {
		w.logger.Error("warming cache failed", "category", w.category, "error", err)
		return result, err
	}
	w.logger.Debug("cache checked", "category", w.category, "result", string(result))
	return result, nil
}
