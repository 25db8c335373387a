package health

import (
	"regexp"
	"slices"
	"strings"
	"time"
)

// State is the health level of an artefact
type State string

const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|wss?)://[^\s]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(?::\d{1,5})?\b`)
	unixPathRegex   = regexp.MustCompile(`(?:^|\s)/[a-zA-Z0-9/_.-]+`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one artefact, or of a group of them
type Status struct {
	Component   string    `json:"component"`
	State       State     `json:"state"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// Healthy reports whether the state is healthy
func (s Status) Healthy() bool {
	return s.State == StateHealthy
}

// NewStatus builds a status stamped with the current time
func NewStatus(component string, state State, message string) Status {
	return Status{
		Component: component,
		State:     state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate combines sub-statuses, sorted by component, into one status
func Aggregate(component string, subs []Status) Status {
	if len(subs) == 0 {
		return NewStatus(component, StateHealthy, "no artefacts")
	}

	state := StateHealthy
	for _, s := range subs {
		switch s.State {
		case StateUnhealthy:
			state = StateUnhealthy
		case StateDegraded:
			if state == StateHealthy {
				state = StateDegraded
			}
		}
	}

	var message string
	switch state {
	case StateHealthy:
		message = "all artefacts healthy"
	case StateDegraded:
		message = "one or more artefacts degraded"
	default:
		message = "one or more artefacts unhealthy"
	}

	status := NewStatus(component, state, message)
	status.SubStatuses = slices.Clone(subs)
	slices.SortFunc(status.SubStatuses, func(a, b Status) int {
		return strings.Compare(a.Component, b.Component)
	})
	return status
}

// Sanitize strips addresses, paths and credentials from an error message
func Sanitize(msg string) string {
	if msg == "" {
		return ""
	}
	msg = urlRegex.ReplaceAllString(msg, "[URL]")
	msg = ipAddrRegex.ReplaceAllString(msg, "[IP]")
	msg = unixPathRegex.ReplaceAllStringFunc(msg, func(m string) string {
		if strings.HasPrefix(m, " ") || strings.HasPrefix(m, "\t") {
			return m[:1] + "[PATH]"
		}
		return "[PATH]"
	})
	return credentialRegex.ReplaceAllString(msg, "[REDACTED]")
}
