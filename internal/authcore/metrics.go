package authcore

import "sync"

// Auth events tracked by the metrics recorder.
const (
	MetricRegisterSuccess  = "register_success"
	MetricRegisterRejected = "register_rejected"
	MetricLoginSuccess     = "login_success"
	MetricLoginRejected    = "login_rejected"
	MetricRefreshSuccess   = "refresh_success"
	MetricRefreshRejected  = "refresh_rejected"
)

// MetricsRecorder counts auth events.
type MetricsRecorder interface {
	Increment(event string)
}

// CounterMetrics implements MetricsRecorder with in-memory counters.
type CounterMetrics struct {
	mutex  sync.Mutex
	counts map[string]int64
}

// NewCounterMetrics constructs an empty in-memory recorder.
func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{counts: make(map[string]int64)}
}

// Increment increases the counter for the given event.
func (recorder *CounterMetrics) Increment(event string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.counts[event]++
}

// Count returns the current value for the given event.
func (recorder *CounterMetrics) Count(event string) int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return recorder.counts[event]
}

// Snapshot returns a copy of all recorded counters.
func (recorder *CounterMetrics) Snapshot() map[string]int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	clone := make(map[string]int64, len(recorder.counts))
	for event, value := range recorder.counts {
		clone[event] = value
	}
	return clone
}

// nopMetrics drops every event; used when no recorder is wired.
type nopMetrics struct{}

func (nopMetrics) Increment(string) {}
