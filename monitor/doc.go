// Package monitor collects delivery metrics and observes messenger registries.
//
// SimpleMetricsCollector plugs into interceptors.MetricsInterceptor; Watcher samples a
// messenger's registry statistics together with those metrics at a fixed interval.
package monitor
