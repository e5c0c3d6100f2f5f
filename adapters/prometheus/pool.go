package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/salimbaigadam-droid/Piano128keys/core/pool"
)

// poolMetrics implements pool.Metrics using Prometheus.
type poolMetrics struct {
	poolSize       prometheus.Gauge
	dispatchsTotal *prometheus.CounterVec
}

// NewPoolMetrics creates a new Prometheus implementation of pool.Metrics.
func NewPoolMetrics(reg prometheus.Registerer) pool.Metrics {
	m := &poolMetrics{
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "piano_pool_size",
			Help: "Number of note workers in the pool",
		}),
		dispatchsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "piano_pool_dispatches_total",
			Help: "Total dispatches per worker",
		}, []string{"worker_id"}),
	}

	reg.MustRegister(m.poolSize, m.dispatchsTotal)
	return m
}

func (m *poolMetrics) PoolSize(n int) {
	m.poolSize.Set(float64(n))
}

func (m *poolMetrics) WorkerSelected(workerID int) {
	m.dispatchsTotal.WithLabelValues(strconv.Itoa(workerID)).Inc()
}

var _ pool.Metrics = (*poolMetrics)(nil)
