// Package prometheus provides Prometheus implementations of the metrics
// interfaces used by the actor runtime, the worker pool and the HTTP
// server.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/salimbaigadam-droid/Piano128keys/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1,
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// AllMetrics holds Prometheus implementations for every instrumented layer.
type AllMetrics struct {
	Actor *actorMetrics
	Pool  *poolMetrics
	HTTP  *HTTPMetrics
}

// NewAllMetrics creates and registers metrics for the whole service.
func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		Actor: NewActorMetrics(reg).(*actorMetrics),
		Pool:  NewPoolMetrics(reg).(*poolMetrics),
		HTTP:  NewHTTPMetrics(reg),
	}
}
