package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/petrijr/fluxbuf"
	"github.com/petrijr/fluxbuf/internal/config"
	"github.com/petrijr/fluxbuf/internal/metrics"
	"github.com/petrijr/fluxbuf/internal/persistence"
)

var (
	// serveMetrics keeps the metrics endpoint up after the scenarios ran
	serveMetrics bool
)

func init() {
	demoCmd.Flags().BoolVar(&serveMetrics, "serve", false, "keep serving /metrics until interrupted (needs metrics.enabled)")
}

// demoCmd runs the buffer scenarios
var demoCmd = &cobra.Command{
	Use:   "demo [scenario...]",
	Short: "Run buffer scenarios on a local runner",
	Long: `Run one or more buffer scenarios, each in its own session, and print
what the buffers held afterwards. Without arguments every scenario runs.

Scenarios:
  keep-last     KeepLast(1) keeps only the newest value
  keep-first    KeepFirst(2) rejects values once full
  gate          closing a gate neither wakes listeners nor touches values
  closed-loop   a writer is not woken by its own update

Examples:
  # Run everything and log every flush
  FLUXBUF_LOG_LEVEL=debug fluxbuf demo

  # Record the history in SQLite; the first line printed is the run id
  FLUXBUF_EVENTS_BACKEND=sqlite FLUXBUF_EVENTS_SQLITE_DSN=file:fluxbuf.db fluxbuf demo gate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		reg := prometheus.NewRegistry()
		snap, err := runDemo(ctx, cfg, args, reg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		printf(cmd, "\nupdates=%d woken=%d suppressed=%d gate_transitions=%d sessions_cleared=%d values_released=%d keys_released=%d\n",
			snap.BufferUpdates, snap.ListenersWoken, snap.ListenersSuppressed, snap.GateTransitions,
			snap.SessionsCleared, snap.ValuesReleased, snap.KeysReleased)

		if serveMetrics && cfg.Metrics.Enabled {
			return serve(ctx, cfg.Metrics.Addr, reg)
		}
		return nil
	},
}

// runDemo runs the named scenarios, or all of them, and returns the flush
// counters. Prometheus collectors are registered on reg when metrics are
// enabled.
func runDemo(ctx context.Context, c *config.Config, names []string, reg prometheus.Registerer, out io.Writer) (fluxbuf.BasicMetricsSnapshot, error) {
	selected := scenarios
	if len(names) > 0 {
		selected = nil
		for _, name := range names {
			s, ok := findScenario(name)
			if !ok {
				return fluxbuf.BasicMetricsSnapshot{}, fmt.Errorf("unknown scenario %q", name)
			}
			selected = append(selected, s)
		}
	}

	store, closeStore, err := persistence.Open(ctx, c.PersistenceOptions())
	if err != nil {
		return fluxbuf.BasicMetricsSnapshot{}, err
	}
	defer func() {
		if err := closeStore(); err != nil {
			slog.Warn("close event store", slog.Any("error", err))
		}
	}()

	counters := &fluxbuf.BasicMetrics{}
	observers := []fluxbuf.Observer{fluxbuf.NewLoggingObserver(slog.Default()), counters}
	if c.Metrics.Enabled {
		observers = append(observers, metrics.NewObserver(reg))
	}

	runner := fluxbuf.NewLocalRunner(
		fluxbuf.WithObserver(fluxbuf.NewCompositeObserver(observers...)),
		fluxbuf.WithEventStore(store),
		fluxbuf.WithQueueCapacity(c.Runner.QueueCapacity),
		fluxbuf.WithMaxTicks(c.Runner.MaxTicks),
		fluxbuf.WithLogger(slog.Default()),
		fluxbuf.WithRunID(c.Runner.RunID),
	)
	fmt.Fprintf(out, "run %s\n", runner.RunID())

	for _, s := range selected {
		session := runner.NewSession()
		fmt.Fprintf(out, "== %s (session %s): %s\n", s.name, session, s.about)
		if err := s.run(ctx, runner, session, out); err != nil {
			return counters.Snapshot(), fmt.Errorf("scenario %s: %w", s.name, err)
		}
		// Report the keys the scenario released.
		if _, err := runner.RunUntilIdle(ctx); err != nil {
			return counters.Snapshot(), fmt.Errorf("scenario %s: %w", s.name, err)
		}
		if _, err := runner.ConcludeSession(ctx, session); err != nil {
			return counters.Snapshot(), fmt.Errorf("conclude %s: %w", s.name, err)
		}
	}
	return counters.Snapshot(), nil
}

func serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving metrics", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
