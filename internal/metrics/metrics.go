// Package metrics exports buffer flush activity as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/petrijr/fluxbuf/pkg/api"
)

const (
	namespace = "fluxbuf"
	subsystem = "buffer"
)

// Observer is an api.Observer that counts flush events. Entities are never
// used as labels.
type Observer struct {
	// Updates counts applied buffer updates.
	// Labels: closed_loop (true when no accessor was excluded)
	Updates *prometheus.CounterVec

	// Deliveries counts listener deliveries.
	// Labels: result (woken, suppressed)
	Deliveries *prometheus.CounterVec

	// GateTransitions counts real gate transitions.
	// Labels: gate (open, closed)
	GateTransitions *prometheus.CounterVec

	// SessionsCleared counts session teardowns.
	SessionsCleared prometheus.Counter

	// ValuesReleased counts values dropped by session teardown.
	ValuesReleased prometheus.Counter

	// KeysReleased counts key lifecycles that reached zero references.
	KeysReleased prometheus.Counter
}

var _ api.Observer = (*Observer)(nil)

// NewObserver creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		Updates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "updates_total",
				Help:      "Total number of buffer update notifications applied",
			},
			[]string{"closed_loop"},
		),
		Deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "listener_deliveries_total",
				Help:      "Total number of listener deliveries by result",
			},
			[]string{"result"},
		),
		GateTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gate_transitions_total",
				Help:      "Total number of gate transitions by new state",
			},
			[]string{"gate"},
		),
		SessionsCleared: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_cleared_total",
				Help:      "Total number of sessions whose buffers were released",
			},
		),
		ValuesReleased: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "session_values_released_total",
				Help:      "Total number of buffered values dropped by session teardown",
			},
		),
		KeysReleased: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "keys_released_total",
				Help:      "Total number of key lifecycles released",
			},
		),
	}
}

func (o *Observer) OnBufferUpdated(ctx context.Context, u api.BufferUpdate) {
	closedLoop := "false"
	if u.ExcludedAccessor.IsZero() {
		closedLoop = "true"
	}
	o.Updates.WithLabelValues(closedLoop).Inc()
}

func (o *Observer) OnListenerWoken(ctx context.Context, u api.BufferUpdate, listener api.Entity) {
	o.Deliveries.WithLabelValues("woken").Inc()
}

func (o *Observer) OnListenerSuppressed(ctx context.Context, u api.BufferUpdate, listener api.Entity) {
	o.Deliveries.WithLabelValues("suppressed").Inc()
}

func (o *Observer) OnGateChanged(ctx context.Context, buffer, session api.Entity, gate api.Gate) {
	o.GateTransitions.WithLabelValues(gate.String()).Inc()
}

func (o *Observer) OnSessionCleared(ctx context.Context, session api.Entity, released int) {
	o.SessionsCleared.Inc()
	o.ValuesReleased.Add(float64(released))
}

func (o *Observer) OnKeyReleased(ctx context.Context, buffer, session, accessor api.Entity) {
	o.KeysReleased.Inc()
}
