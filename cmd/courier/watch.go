package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/glimte/courier"
	"github.com/glimte/courier/messaging"
	"github.com/glimte/courier/monitor"
	"github.com/spf13/cobra"
)

type watchOptions struct {
	interval time.Duration
	rate     int
	churn    time.Duration
}

func newWatchCommand(flags *globalFlags) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of a synthetic workload",
		Long: `Runs a synthetic warehouse workload against a messenger and shows deliveries,
latencies and registry state as they change. Short-lived warehouses are dropped
without being unregistered, so reclaimed recipients and pruning are visible.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The dashboard owns the terminal; logs are discarded unless verbose.
			logger := slog.New(slog.DiscardHandler)
			if flags.verbose {
				var err error
				if logger, err = flags.logger(cmd.ErrOrStderr()); err != nil {
					return err
				}
			}

			client := courier.New(courier.WithLogger(logger), courier.WithMetrics())
			return runWatch(cmd.Context(), client, opts)
		},
	}

	cmd.Flags().DurationVarP(&opts.interval, "interval", "i", 500*time.Millisecond, "Dashboard refresh interval")
	cmd.Flags().IntVar(&opts.rate, "rate", 200, "Messages per second")
	cmd.Flags().DurationVar(&opts.churn, "churn", 2*time.Second, "How often a short-lived warehouse is replaced")
	return cmd
}

func runWatch(ctx context.Context, client *courier.Client, opts *watchOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := newWorkload(client.Messenger())
	if err != nil {
		return err
	}

	p := tea.NewProgram(newDashboard(client, w), tea.WithAltScreen(), tea.WithContext(ctx))

	go w.run(ctx, opts.rate, opts.churn, func(err error) {
		p.Send(errMsg{err})
	})

	watcher := client.Watcher(monitor.WithInterval(opts.interval), monitor.WithPruning())
	go func() {
		_ = watcher.Watch(ctx, func(s monitor.Snapshot) {
			p.Send(snapshotMsg(s))
		})
	}()

	if _, err = p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}
	return nil
}

// workload drives random traffic through a messenger
type workload struct {
	m         *messaging.Messenger
	permanent []*warehouse
	transient []*warehouse
	created   atomic.Int64
	paused    atomic.Bool
}

func newWorkload(m *messaging.Messenger) (*workload, error) {
	w := &workload{m: m}
	for i, name := range []string{"north", "south", "east", "west"} {
		wh := newWarehouse(name, time.Duration(i+1)*time.Millisecond)
		if err := registerWarehouse(m, wh, i == 0); err != nil {
			return nil, err
		}
		w.permanent = append(w.permanent, wh)
	}
	return w, nil
}

// run sends rate messages per second and replaces a transient warehouse every churn
func (w *workload) run(ctx context.Context, rate int, churn time.Duration, report func(error)) {
	send := time.NewTicker(time.Second / time.Duration(max(rate, 1)))
	defer send.Stop()
	replace := time.NewTicker(churn)
	defer replace.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-send.C:
			if w.paused.Load() {
				continue
			}
			if err := randomStep(ctx, w.m); err != nil && ctx.Err() == nil {
				report(err)
			}
		case <-replace.C:
			if w.paused.Load() {
				continue
			}
			if err := w.replaceTransient(); err != nil {
				report(err)
			}
		}
	}
}

// replaceTransient registers a new short-lived warehouse and forgets the oldest one
// without unregistering it
func (w *workload) replaceTransient() error {
	n := w.created.Add(1)
	wh := newWarehouse(fmt.Sprintf("popup-%d", n), 3*time.Millisecond)
	if err := registerWarehouse(w.m, wh, false); err != nil {
		return err
	}

	w.transient = append(w.transient, wh)
	if len(w.transient) > 3 {
		w.transient[0] = nil
		w.transient = w.transient[1:]
	}
	return nil
}

type snapshotMsg monitor.Snapshot

type errMsg struct {
	err error
}

// dashboard is the bubbletea model of the watch command
type dashboard struct {
	client   *courier.Client
	workload *workload
	width    int

	snapshot    monitor.Snapshot
	totalPruned int
	lastErr     error
	errors      int
	started     time.Time
}

func newDashboard(client *courier.Client, w *workload) dashboard {
	return dashboard{
		client:   client,
		workload: w,
		started:  time.Now(),
	}
}

func (d dashboard) Init() tea.Cmd {
	return nil
}

func (d dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		return d, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return d, tea.Quit
		case " ":
			d.workload.paused.Store(!d.workload.paused.Load())
		case "g":
			runtime.GC()
		case "r":
			d.client.Metrics().Reset()
			d.errors, d.lastErr = 0, nil
		}
		return d, nil

	case snapshotMsg:
		d.snapshot = monitor.Snapshot(msg)
		d.totalPruned += msg.Pruned
		return d, nil

	case errMsg:
		d.errors++
		d.lastErr = msg.err
		return d, nil
	}

	return d, nil
}

func (d dashboard) View() string {
	header := headerStyle.Render(fmt.Sprintf("courier watch · messenger %s", d.client.Messenger().ID()))

	state := okStyle.Render("running")
	if d.workload.paused.Load() {
		state = warnStyle.Render("paused")
	}
	status := card("Workload",
		fmt.Sprintf("State:       %s", state),
		fmt.Sprintf("Uptime:      %s", time.Since(d.started).Round(time.Second)),
		fmt.Sprintf("Delivered:   %d", d.snapshot.Metrics.TotalMessages()),
		fmt.Sprintf("Popups made: %d", d.workload.created.Load()),
		fmt.Sprintf("Send errors: %d", d.errors),
	)

	top := lipgloss.JoinHorizontal(lipgloss.Top, status, renderRegistry(d.snapshot.Registry, d.totalPruned))
	parts := []string{header, top, renderMetrics(d.snapshot.Metrics)}

	if d.lastErr != nil {
		parts = append(parts, errStyle.Render("Last error: "+d.lastErr.Error()))
	}
	parts = append(parts, helpStyle.Render("space: pause/resume • g: run GC • r: reset metrics • q: quit"))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
