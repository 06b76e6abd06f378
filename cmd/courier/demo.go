package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/glimte/courier"
	"github.com/glimte/courier/messaging"
	"github.com/spf13/cobra"
)

func newDemoCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run every protocol once and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := flags.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			client := courier.New(courier.WithLogger(logger), courier.WithMetrics(), courier.WithDispatchLogging())
			return runDemo(cmd.Context(), cmd.OutOrStdout(), client)
		},
	}
}

func runDemo(ctx context.Context, out io.Writer, client *courier.Client) error {
	m := client.Messenger()

	warehouses := []*warehouse{
		newWarehouse("north", 20*time.Millisecond),
		newWarehouse("south", 5*time.Millisecond),
		newWarehouse("east", 10*time.Millisecond),
	}
	for i, w := range warehouses {
		if err := registerWarehouse(m, w, i == 0); err != nil {
			return fmt.Errorf("failed to register warehouse %s: %w", w.name, err)
		}
	}

	fmt.Fprintln(out, headerStyle.Render("courier demo"))

	// Plain message
	if _, err := messaging.Send(ctx, m, stockChanged{SKU: "apple", Delta: 5}); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	levels := make([]string, 0, len(warehouses))
	for _, w := range warehouses {
		levels = append(levels, fmt.Sprintf("%-6s apple=%d", w.name, w.stock["apple"]))
	}
	send := card("Send stockChanged{apple, +5}", levels...)

	// Single reply
	level, err := messaging.SendRequest[int](ctx, m, &stockLevelRequest{SKU: "apple"})
	if err != nil {
		return fmt.Errorf("stock level request failed: %w", err)
	}
	request := card("Request stock level", fmt.Sprintf("primary apple=%d", level))

	// Single reply, resolved later
	start := time.Now()
	f, err := messaging.SendRequestAsync[string](ctx, m, &reservationRequest{SKU: "bread", Quantity: 2})
	if err != nil {
		return fmt.Errorf("reservation request failed: %w", err)
	}
	reservation, err := f.Await(ctx)
	if err != nil {
		return fmt.Errorf("reservation failed: %w", err)
	}
	requestAsync := card("RequestAsync reservation",
		fmt.Sprintf("id=%s", reservation),
		fmt.Sprintf("awaited %s", formatDuration(time.Since(start))),
	)

	// Any number of replies
	names, err := messaging.RequestAll[warehouseNamesRequest, string](ctx, m)
	if err != nil {
		return fmt.Errorf("warehouse names request failed: %w", err)
	}
	requestAll := card("RequestAll warehouse names", names.Responses()...)

	// Any number of pending replies, streamed in reply order
	availability, err := messaging.Send(ctx, m, &availabilityRequest{SKU: "cheese"})
	if err != nil {
		return fmt.Errorf("availability request failed: %w", err)
	}
	var streamed []string
	for v, err := range availability.All(ctx) {
		if err != nil {
			return fmt.Errorf("availability failed: %w", err)
		}
		streamed = append(streamed, fmt.Sprintf("cheese=%d", v))
	}
	requestAllAsync := card("RequestAllAsync availability", streamed...)

	fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top, send, request, requestAsync))
	fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top, requestAll, requestAllAsync))

	// Drop the last warehouse without unregistering it
	before := m.Stats()
	warehouses = slices.Delete(warehouses, len(warehouses)-1, len(warehouses))
	runtime.GC()
	pruned := m.Cleanup()

	names, err = messaging.RequestAll[warehouseNamesRequest, string](ctx, m)
	if err != nil {
		return fmt.Errorf("warehouse names request failed: %w", err)
	}
	fmt.Fprintln(out, card("Weak references",
		fmt.Sprintf("recipients before: %d", before.Recipients),
		fmt.Sprintf("pruned after GC:   %d", pruned),
		fmt.Sprintf("still answering:   %v", names.Responses()),
	))

	fmt.Fprintln(out, renderMetrics(client.Metrics().GetMetricsSummary()))
	runtime.KeepAlive(warehouses)
	return nil
}
