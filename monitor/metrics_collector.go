package monitor

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/glimte/courier/interceptors"
)

// maxSamples bounds the samples kept per message type for percentiles
const maxSamples = 256

// SimpleMetricsCollector is an in-memory interceptors.MetricsCollector
type SimpleMetricsCollector struct {
	mu sync.RWMutex

	// Deliveries by message type
	messageCounters map[string]int64

	// Errors by message type and error type
	errorCounters map[string]map[string]int64

	// Handler durations by message type
	processingTimes map[string]*timeStats
}

type timeStats struct {
	count   int64
	total   time.Duration
	min     time.Duration
	max     time.Duration
	samples []time.Duration
}

// NewSimpleMetricsCollector creates a new in-memory metrics collector
func NewSimpleMetricsCollector() *SimpleMetricsCollector {
	return &SimpleMetricsCollector{
		messageCounters: make(map[string]int64),
		errorCounters:   make(map[string]map[string]int64),
		processingTimes: make(map[string]*timeStats),
	}
}

// IncrementMessageCount implements interceptors.MetricsCollector
func (c *SimpleMetricsCollector) IncrementMessageCount(messageType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageCounters[messageType]++
}

// RecordProcessingTime implements interceptors.MetricsCollector
func (c *SimpleMetricsCollector) RecordProcessingTime(messageType string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, exists := c.processingTimes[messageType]
	if !exists {
		stats = &timeStats{
			min:     duration,
			max:     duration,
			samples: make([]time.Duration, 0, maxSamples),
		}
		c.processingTimes[messageType] = stats
	}

	stats.count++
	stats.total += duration
	stats.min = min(stats.min, duration)
	stats.max = max(stats.max, duration)

	// Ring of the most recent samples
	if len(stats.samples) == maxSamples {
		stats.samples = append(stats.samples[:0], stats.samples[1:]...)
	}
	stats.samples = append(stats.samples, duration)
}

// IncrementErrorCount implements interceptors.MetricsCollector
func (c *SimpleMetricsCollector) IncrementErrorCount(messageType string, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorCounters[messageType] == nil {
		c.errorCounters[messageType] = make(map[string]int64)
	}
	c.errorCounters[messageType][errorType]++
}

// MetricsSummary is a snapshot of all collected metrics
type MetricsSummary struct {
	MessageCounts   map[string]int64            `json:"message_counts"`
	ErrorCounts     map[string]map[string]int64 `json:"error_counts"`
	ProcessingStats map[string]ProcessingStats  `json:"processing_stats"`
}

// TotalMessages returns the number of deliveries across all message types
func (s MetricsSummary) TotalMessages() int64 {
	var total int64
	for _, n := range s.MessageCounts {
		total += n
	}
	return total
}

// TotalErrors returns the number of failed deliveries across all message types
func (s MetricsSummary) TotalErrors() int64 {
	var total int64
	for _, byType := range s.ErrorCounts {
		for _, n := range byType {
			total += n
		}
	}
	return total
}

// MessageTypes returns the observed message types, sorted
func (s MetricsSummary) MessageTypes() []string {
	return slices.Sorted(maps.Keys(s.MessageCounts))
}

// ProcessingStats summarizes handler durations for a message type
type ProcessingStats struct {
	Count int64         `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// GetMetricsSummary returns a summary of all collected metrics
func (c *SimpleMetricsCollector) GetMetricsSummary() MetricsSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := MetricsSummary{
		MessageCounts:   maps.Clone(c.messageCounters),
		ErrorCounts:     make(map[string]map[string]int64, len(c.errorCounters)),
		ProcessingStats: make(map[string]ProcessingStats, len(c.processingTimes)),
	}

	for msgType, byType := range c.errorCounters {
		summary.ErrorCounts[msgType] = maps.Clone(byType)
	}

	for msgType, stats := range c.processingTimes {
		sorted := slices.Sorted(slices.Values(stats.samples))
		summary.ProcessingStats[msgType] = ProcessingStats{
			Count: stats.count,
			Avg:   stats.total / time.Duration(stats.count),
			Min:   stats.min,
			Max:   stats.max,
			P50:   percentile(sorted, 0.50),
			P95:   percentile(sorted, 0.95),
			P99:   percentile(sorted, 0.99),
		}
	}

	return summary
}

// percentile returns the nearest-rank percentile of sorted samples
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}

// ErrorTypeStats is the share of one error type among all errors
type ErrorTypeStats struct {
	ErrorType string  `json:"error_type"`
	Count     int64   `json:"count"`
	Rate      float64 `json:"rate"`
}

// ErrorAnalysis summarizes failed deliveries
type ErrorAnalysis struct {
	TotalErrors         int64            `json:"total_errors"`
	ErrorRate           float64          `json:"error_rate"`
	TopErrorTypes       []ErrorTypeStats `json:"top_error_types"`
	ErrorsByMessageType map[string]int64 `json:"errors_by_message_type"`
}

// GetErrorAnalysis returns error totals with error types ordered by count, most frequent first
func (c *SimpleMetricsCollector) GetErrorAnalysis() ErrorAnalysis {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var totalMessages, totalErrors int64
	for _, n := range c.messageCounters {
		totalMessages += n
	}

	byErrorType := make(map[string]int64)
	byMessageType := make(map[string]int64, len(c.errorCounters))
	for msgType, byType := range c.errorCounters {
		for errorType, n := range byType {
			totalErrors += n
			byErrorType[errorType] += n
			byMessageType[msgType] += n
		}
	}

	analysis := ErrorAnalysis{
		TotalErrors:         totalErrors,
		TopErrorTypes:       make([]ErrorTypeStats, 0, len(byErrorType)),
		ErrorsByMessageType: byMessageType,
	}
	if totalMessages > 0 {
		analysis.ErrorRate = float64(totalErrors) / float64(totalMessages)
	}

	for errorType, n := range byErrorType {
		analysis.TopErrorTypes = append(analysis.TopErrorTypes, ErrorTypeStats{
			ErrorType: errorType,
			Count:     n,
			Rate:      float64(n) / float64(totalErrors),
		})
	}
	slices.SortFunc(analysis.TopErrorTypes, func(a, b ErrorTypeStats) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.ErrorType, b.ErrorType))
	})

	return analysis
}

// Reset clears all collected metrics
func (c *SimpleMetricsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messageCounters = make(map[string]int64)
	c.errorCounters = make(map[string]map[string]int64)
	c.processingTimes = make(map[string]*timeStats)
}

var _ interceptors.MetricsCollector = (*SimpleMetricsCollector)(nil)
