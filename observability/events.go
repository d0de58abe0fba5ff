package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"moneta/core/types"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured engine events. The
// registry doubles as an event emitter so it can sit in the engine's fan-out.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "moneta",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of engine events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Emit implements the events.Emitter interface.
func (m *eventMetrics) Emit(evt *types.Event) {
	if m == nil || evt == nil || evt.Type == "" {
		return
	}
	m.emitted.WithLabelValues(evt.Type).Inc()
}
