package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/glimte/courier"
	"github.com/glimte/courier/messaging"
	"github.com/spf13/cobra"
)

type benchOptions struct {
	recipients int
	messages   int
	strong     bool
	metrics    bool
}

// benchResult is the outcome of one benchmark run
type benchResult struct {
	Messages   int
	Deliveries int
	Elapsed    time.Duration
}

// Throughput returns deliveries per second
func (r benchResult) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Deliveries) / r.Elapsed.Seconds()
}

func newBenchCommand(flags *globalFlags) *cobra.Command {
	opts := &benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure dispatch throughput",
		Long:  "Registers a number of recipients and broadcasts messages to all of them, then reports throughput and per-type latencies.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.recipients < 1 || opts.messages < 1 {
				return fmt.Errorf("recipients and messages must be positive")
			}

			logger, err := flags.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			clientOpts := []courier.Option{courier.WithLogger(logger)}
			if opts.metrics {
				clientOpts = append(clientOpts, courier.WithMetrics())
			}
			if opts.strong {
				clientOpts = append(clientOpts, courier.WithStrongReferences())
			}
			client := courier.New(clientOpts...)

			result, err := runBench(cmd.Context(), client.Messenger(), opts.recipients, opts.messages)
			if err != nil {
				return err
			}

			printBench(cmd.OutOrStdout(), client, result)
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.recipients, "recipients", "r", 100, "Number of registered recipients")
	cmd.Flags().IntVarP(&opts.messages, "messages", "n", 10000, "Number of messages to send")
	cmd.Flags().BoolVar(&opts.strong, "strong", false, "Hold strong references to recipients")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", true, "Collect per-delivery metrics")
	return cmd
}

// runBench registers the given number of warehouses and broadcasts stockChanged to all of them
func runBench(ctx context.Context, m *messaging.Messenger, recipients, messages int) (benchResult, error) {
	warehouses := make([]*warehouse, recipients)
	for i := range warehouses {
		warehouses[i] = newWarehouse(fmt.Sprintf("w%d", i), 0)
		if err := messaging.Register(m, warehouses[i], onStockChanged); err != nil {
			return benchResult{}, err
		}
	}

	start := time.Now()
	for i := range messages {
		if err := ctx.Err(); err != nil {
			return benchResult{}, err
		}
		msg := stockChanged{SKU: skus[i%len(skus)], Delta: 1}
		if _, err := messaging.Send(ctx, m, msg); err != nil {
			return benchResult{}, fmt.Errorf("send %d failed: %w", i, err)
		}
	}
	elapsed := time.Since(start)

	runtime.KeepAlive(warehouses)
	return benchResult{
		Messages:   messages,
		Deliveries: messages * recipients,
		Elapsed:    elapsed,
	}, nil
}

func printBench(out io.Writer, client *courier.Client, r benchResult) {
	summary := card("Benchmark",
		fmt.Sprintf("Messages:    %d", r.Messages),
		fmt.Sprintf("Deliveries:  %d", r.Deliveries),
		fmt.Sprintf("Elapsed:     %s", formatDuration(r.Elapsed)),
		okStyle.Render(fmt.Sprintf("Throughput:  %.0f deliveries/s", r.Throughput())),
	)

	blocks := []string{summary, renderRegistry(client.Messenger().Stats(), 0)}
	fmt.Fprintln(out, headerStyle.Render("courier bench"))
	fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top, blocks...))
	if metrics := client.Metrics(); metrics != nil {
		fmt.Fprintln(out, renderMetrics(metrics.GetMetricsSummary()))
	}
}
