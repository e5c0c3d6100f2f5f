package pool

// Metrics is the instrumentation hook for the pool manager.
// All methods must be safe for concurrent use.
type Metrics interface {
	// PoolSize records the fixed worker count at construction.
	PoolSize(n int)
	// WorkerSelected is called once per dispatch with the chosen worker id.
	WorkerSelected(workerID int)
}

type nopMetrics struct{}

func (nopMetrics) PoolSize(int)       {}
func (nopMetrics) WorkerSelected(int) {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
