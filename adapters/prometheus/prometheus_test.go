package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewActorMetrics(reg)
	require.NotNil(t, m)

	timer := m.MessageDuration("piano.ProcessNoteRequest")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.MessageProcessed("piano.ProcessNoteRequest", true)
	m.MessageProcessed("piano.ProcessNoteRequest", false)
	m.MessagePanic("piano.ProcessNoteRequest")
	m.MailboxDepth("note-worker-0", 3)
	m.SchedulerInflight("note-worker-0", 1)
	m.SchedulerTaskDuration().ObserveDuration()
	m.SchedulerTaskCompleted(true)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewPoolMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPoolMetrics(reg)

	m.PoolSize(8)
	m.WorkerSelected(0)
	m.WorkerSelected(0)
	m.WorkerSelected(1)

	pm := m.(*poolMetrics)
	assert.Equal(t, 8.0, testutil.ToFloat64(pm.poolSize))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.dispatchsTotal.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.dispatchsTotal.WithLabelValues("1")))
}

func TestNewHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("/api/process-note", 200, 0.001)
	m.Observe("/api/process-note", 400, 0.0005)
	m.RateLimited()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/process-note", "200")))
}

func TestNewAllMetrics_registers_once(t *testing.T) {
	reg := prometheus.NewRegistry()
	all := NewAllMetrics(reg)
	require.NotNil(t, all.Actor)
	require.NotNil(t, all.Pool)
	require.NotNil(t, all.HTTP)

	// Double registration must panic via MustRegister.
	assert.Panics(t, func() { NewAllMetrics(reg) })
}
