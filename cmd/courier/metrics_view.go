package main

import (
	"fmt"
	"strings"

	"github.com/glimte/courier/messaging"
	"github.com/glimte/courier/monitor"
)

// renderMetrics renders per-message-type delivery statistics as a table
func renderMetrics(summary monitor.MetricsSummary) string {
	types := summary.MessageTypes()
	if len(types) == 0 {
		return card("Deliveries", "No deliveries yet")
	}

	rows := []string{
		fmt.Sprintf("%-34s %9s %7s %9s %9s %9s", "Message type", "Delivered", "Errors", "Avg", "P95", "Max"),
		strings.Repeat("─", 82),
	}
	for _, t := range types {
		stats := summary.ProcessingStats[t]
		var errs int64
		for _, n := range summary.ErrorCounts[t] {
			errs += n
		}

		errCol := okStyle.Render(fmt.Sprintf("%7d", errs))
		if errs > 0 {
			errCol = errStyle.Render(fmt.Sprintf("%7d", errs))
		}

		rows = append(rows, fmt.Sprintf("%-34s %9d %s %9s %9s %9s",
			truncateString(t, 34),
			summary.MessageCounts[t],
			errCol,
			formatDuration(stats.Avg),
			formatDuration(stats.P95),
			formatDuration(stats.Max),
		))
	}

	return card("Deliveries", rows...)
}

// renderRegistry renders registry statistics
func renderRegistry(stats messaging.Stats, pruned int) string {
	dead := okStyle.Render(fmt.Sprint(stats.Dead))
	if stats.Dead > 0 {
		dead = warnStyle.Render(fmt.Sprint(stats.Dead))
	}

	return card("Registry",
		fmt.Sprintf("Channels:      %d", stats.Channels),
		fmt.Sprintf("Recipients:    %d", stats.Recipients),
		fmt.Sprintf("Registrations: %d", stats.Registrations),
		fmt.Sprintf("Dead entries:  %s", dead),
		fmt.Sprintf("Pruned:        %d", pruned),
	)
}
