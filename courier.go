// Copyright 2025 Courier Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package courier

import (
	"log/slog"
	"sync"
	"time"

	"github.com/glimte/courier/interceptors"
	"github.com/glimte/courier/messaging"
	"github.com/glimte/courier/monitor"
)

// Client bundles a messenger with the optional metrics collector wired into it
type Client struct {
	messenger *messaging.Messenger
	metrics   *monitor.SimpleMetricsCollector
	logger    *slog.Logger
}

// New creates a messenger with the interceptors selected by options.
//
// Interceptors are applied outermost first: dispatch logging, metrics, custom interceptors,
// then retries closest to the handler.
func New(options ...Option) *Client {
	cfg := &config{
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(cfg)
	}

	c := &Client{logger: cfg.logger}

	builder := interceptors.NewDefaultInterceptorChainBuilder(cfg.logger)
	if cfg.dispatchLogging {
		builder.WithLogging()
	}
	if cfg.metrics {
		c.metrics = monitor.NewSimpleMetricsCollector()
		builder.WithMetrics(c.metrics)
	}
	for _, i := range cfg.interceptors {
		builder.WithCustom(i)
	}
	if cfg.maxRetries > 0 {
		builder.WithCustom(interceptors.NewRetryInterceptor(cfg.maxRetries, cfg.retryDelay).WithLogger(cfg.logger))
	}

	messengerOpts := []messaging.Option{
		messaging.WithLogger(cfg.logger),
	}
	if chain := builder.Build(); chain.Len() > 0 {
		messengerOpts = append(messengerOpts, messaging.WithInterceptorChain(chain))
	}
	if cfg.strong {
		messengerOpts = append(messengerOpts, messaging.WithStrongReferences())
	}

	c.messenger = messaging.NewMessenger(messengerOpts...)
	return c
}

// Messenger returns the messenger
func (c *Client) Messenger() *messaging.Messenger {
	return c.messenger
}

// Metrics returns the metrics collector, or nil if the client was created without WithMetrics
func (c *Client) Metrics() *monitor.SimpleMetricsCollector {
	return c.metrics
}

// Watcher returns a watcher sampling the messenger and its metrics
func (c *Client) Watcher(options ...monitor.WatcherOption) *monitor.Watcher {
	options = append([]monitor.WatcherOption{monitor.WithWatcherLogger(c.logger)}, options...)
	return monitor.NewWatcher(c.messenger, c.metrics, options...)
}

var defaultMessenger = sync.OnceValue(func() *messaging.Messenger {
	return messaging.NewMessenger()
})

// Default returns the process-wide messenger, created on first use
func Default() *messaging.Messenger {
	return defaultMessenger()
}

// config holds client configuration
type config struct {
	logger          *slog.Logger
	dispatchLogging bool
	metrics         bool
	interceptors    []interceptors.Interceptor
	maxRetries      int
	retryDelay      time.Duration
	strong          bool
}

// Option configures the client
type Option func(*config)

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithDispatchLogging logs every handler invocation
func WithDispatchLogging() Option {
	return func(cfg *config) {
		cfg.dispatchLogging = true
	}
}

// WithMetrics collects per-message-type delivery metrics, available through Client.Metrics
func WithMetrics() Option {
	return func(cfg *config) {
		cfg.metrics = true
	}
}

// WithInterceptors adds custom interceptors
func WithInterceptors(list ...interceptors.Interceptor) Option {
	return func(cfg *config) {
		cfg.interceptors = append(cfg.interceptors, list...)
	}
}

// WithRetry invokes failing handlers up to maxRetries more times, waiting delay in between
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(cfg *config) {
		cfg.maxRetries = maxRetries
		cfg.retryDelay = delay
	}
}

// WithStrongReferences keeps recipients alive until they are unregistered
func WithStrongReferences() Option {
	return func(cfg *config) {
		cfg.strong = true
	}
}
