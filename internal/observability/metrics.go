package observability

import (
	"sync"
)

// Metrics provides basic in-memory relay counters, surfaced through the
// ops status endpoint.
type Metrics struct {
	mu         sync.Mutex
	dispatched map[string]int64
	processed  map[string]int64
	errors     map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		dispatched: make(map[string]int64),
		processed:  make(map[string]int64),
		errors:     make(map[string]int64),
	}
}

// RecordDispatched counts one outbox event delivered (or skipped) by type.
func (m *Metrics) RecordDispatched(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched[eventType]++
}

// RecordProcessed counts one inbox action outcome by action and status.
func (m *Metrics) RecordProcessed(action, status string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[action+"|"+status]++
}

// RecordError counts a component-level failure.
func (m *Metrics) RecordError(component string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[component]++
}

// Snapshot returns copies of all counters.
func (m *Metrics) Snapshot() (dispatched, processed, errors map[string]int64) {
	if m == nil {
		return nil, nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyCounters(m.dispatched), copyCounters(m.processed), copyCounters(m.errors)
}

func copyCounters(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
