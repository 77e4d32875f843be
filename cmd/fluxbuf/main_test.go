package main

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/fluxbuf/internal/config"
	"github.com/petrijr/fluxbuf/internal/persistence"
	"github.com/petrijr/fluxbuf/pkg/api"
)

func TestRunDemo_AllScenarios(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	snap, err := runDemo(ctx, config.Default(), nil, prometheus.NewRegistry(), &out)
	require.NoError(t, err)

	text := out.String()
	require.Contains(t, text, "pushed [1 2 3], buffer holds [3]")
	require.Contains(t, text, "pushed [1 2 3], buffer holds [1 2], rejected [3]")
	require.Contains(t, text, "gate closed, values 1, wakes from closing 0")
	require.Contains(t, text, "writer woken 0, other listener woken 1")

	require.EqualValues(t, len(scenarios), snap.SessionsCleared)
	require.EqualValues(t, len(scenarios), snap.KeysReleased)
	require.EqualValues(t, 1, snap.ListenersSuppressed)
	require.EqualValues(t, 1, snap.GateTransitions)
}

func TestRunDemo_UnknownScenario(t *testing.T) {
	_, err := runDemo(context.Background(), config.Default(), []string{"nope"}, prometheus.NewRegistry(), &bytes.Buffer{})
	require.ErrorContains(t, err, `unknown scenario "nope"`)
}

func TestRunDemo_PrometheusObserver(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = true
	reg := prometheus.NewRegistry()

	_, err := runDemo(context.Background(), cfg, []string{"closed-loop"}, reg, &bytes.Buffer{})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "fluxbuf_buffer_listener_deliveries_total")
	require.NoError(t, err)
	require.Equal(t, 2, n, "one series per delivery result")
}

func TestListEvents_SQLiteHistory(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Events.Backend = persistence.BackendSQLite
	cfg.Events.SQLiteDSN = "file:" + filepath.Join(t.TempDir(), "history.db")

	var out bytes.Buffer
	_, err := runDemo(ctx, cfg, []string{"gate"}, prometheus.NewRegistry(), &out)
	require.NoError(t, err)

	// The run id comes first; the first spawned entity is the demo session.
	match := regexp.MustCompile(`^run (\S+)\n`).FindStringSubmatch(out.String())
	require.Len(t, match, 2, "demo output: %s", out.String())
	run := match[1]
	session := api.Entity{Index: 0, Generation: 1}
	require.Contains(t, out.String(), "session "+session.String())

	var listing bytes.Buffer
	require.NoError(t, listEvents(ctx, cfg, run, session, &listing))
	text := listing.String()
	require.Contains(t, text, string(api.EventGateClosed))
	require.Contains(t, text, string(api.EventSessionCleared))
	require.Contains(t, text, "released=1")
}

func TestListEvents_RunsShareOneDatabase(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "history.db")

	first := config.Default()
	first.Events.Backend = persistence.BackendSQLite
	first.Events.SQLiteDSN = dsn
	first.Runner.RunID = "first"
	second := *first
	second.Runner.RunID = "second"

	var out bytes.Buffer
	_, err := runDemo(ctx, first, []string{"gate"}, prometheus.NewRegistry(), &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "run first\n")
	_, err = runDemo(ctx, &second, []string{"keep-last"}, prometheus.NewRegistry(), &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "run second\n")

	// Both runs used session 0v1.
	session := api.Entity{Index: 0, Generation: 1}

	var listing bytes.Buffer
	require.NoError(t, listEvents(ctx, first, "first", session, &listing))
	require.Contains(t, listing.String(), string(api.EventGateClosed))
	require.Equal(t, 1, strings.Count(listing.String(), string(api.EventSessionCleared)))

	listing.Reset()
	require.NoError(t, listEvents(ctx, &second, "second", session, &listing))
	require.NotContains(t, listing.String(), string(api.EventGateClosed))
	require.Equal(t, 1, strings.Count(listing.String(), string(api.EventSessionCleared)))
}

func TestListEvents_Empty(t *testing.T) {
	var out bytes.Buffer
	cfg := config.Default()
	cfg.Events.Backend = persistence.BackendMemory

	require.NoError(t, listEvents(context.Background(), cfg, "some-run", api.Entity{Index: 9, Generation: 1}, &out))
	require.Contains(t, out.String(), "no events for session 9v1 of run some-run")
}
