package sandbox

import (
	"time"
)

// Config bounds a runtime's execution.
type Config struct {
	Timeout       time.Duration // per-Execute wall clock limit
	EnableConsole bool          // capture console.log/warn/error/info
	MaxHTTPCalls  int           // cap on queued requests per execution

	// OnCapabilityCall, when set, observes every bridge invocation with
	// names like "storage.get" or "http.request".
	OnCapabilityCall func(capability string)
}

// DefaultConfig returns the limits used for page script execution.
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		EnableConsole: true,
		MaxHTTPCalls:  32,
	}
}

// Result holds one execution's outcome.
type Result struct {
	Value    any
	Console  []LogEntry
	Duration time.Duration
}

// LogEntry is one captured console line.
type LogEntry struct {
	Level   string
	Message string
	Time    time.Time
}
