package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/glimte/courier/messaging"
)

// Registry is the part of a messenger a Watcher observes
type Registry interface {
	Stats() messaging.Stats
	Cleanup() int
}

// Snapshot is one observation of a messenger and its metrics
type Snapshot struct {
	At       time.Time       `json:"at"`
	Registry messaging.Stats `json:"registry"`
	Metrics  MetricsSummary  `json:"metrics"`
	// Pruned is the number of dead entries removed before this snapshot was taken
	Pruned int `json:"pruned"`
}

// Watcher periodically samples registry statistics and delivery metrics
type Watcher struct {
	registry  Registry
	collector *SimpleMetricsCollector
	interval  time.Duration
	prune     bool
	logger    *slog.Logger
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithInterval sets the sampling interval
func WithInterval(interval time.Duration) WatcherOption {
	return func(w *Watcher) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithPruning makes the watcher remove dead entries before every sample
func WithPruning() WatcherOption {
	return func(w *Watcher) {
		w.prune = true
	}
}

// WithWatcherLogger sets the logger
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a watcher. collector may be nil when no metrics are collected.
func NewWatcher(registry Registry, collector *SimpleMetricsCollector, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		registry:  registry,
		collector: collector,
		interval:  time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Sample takes a single snapshot
func (w *Watcher) Sample() Snapshot {
	s := Snapshot{At: time.Now()}
	if w.prune {
		s.Pruned = w.registry.Cleanup()
	}
	s.Registry = w.registry.Stats()
	if w.collector != nil {
		s.Metrics = w.collector.GetMetricsSummary()
	}
	return s
}

// Watch calls fn with a snapshot immediately and then once per interval until ctx is done
func (w *Watcher) Watch(ctx context.Context, fn func(Snapshot)) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Debug("watching messenger", "interval", w.interval, "prune", w.prune)
	fn(w.Sample())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(w.Sample())
		}
	}
}
