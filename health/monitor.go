package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Monitor tracks the health of named artefacts. Safe for concurrent use.
type Monitor struct {
	name string

	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates a monitor whose aggregate carries the given name
func NewMonitor(name string) *Monitor {
	return &Monitor{
		name:     name,
		statuses: make(map[string]Status),
	}
}

// Set records the status of component
func (m *Monitor) Set(component string, state State, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[component] = Status{
		Component: component,
		State:     state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// SetHealthy marks component healthy
func (m *Monitor) SetHealthy(component, message string) {
	m.Set(component, StateHealthy, message)
}

// SetDegraded marks component degraded
func (m *Monitor) SetDegraded(component, message string) {
	m.Set(component, StateDegraded, message)
}

// SetUnhealthy marks component unhealthy; message is sanitized
func (m *Monitor) SetUnhealthy(component, message string) {
	m.Set(component, StateUnhealthy, Sanitize(message))
}

// Get returns the status of component
func (m *Monitor) Get(component string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[component]
	return s, ok
}

// Remove stops tracking component
func (m *Monitor) Remove(component string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, component)
}

// Aggregate returns the combined status of every tracked component
func (m *Monitor) Aggregate() Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		subs = append(subs, s)
	}
	m.mu.RUnlock()
	return Aggregate(m.name, subs)
}

// ServeHTTP writes the aggregate as JSON, with 503 when unhealthy
func (m *Monitor) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := m.Aggregate()
	w.Header().Set("Content-Type", "application/json")
	if status.State == StateUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}
