package eventprocessor

import (
	"log/slog"
)

// State is the processor lifecycle state.
type State int

const (
	// StateInstalling is the initial state, before the agent reports its hooks.
	StateInstalling State = iota
	// StateRunning is entered once on the first hooks_installed notification.
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// DiagnosticKind classifies a Diagnostic.
type DiagnosticKind string

// Diagnostic kinds, also used as metric labels.
const (
	DiagnosticUnknownTimestamp DiagnosticKind = "unknown_timestamp"
	DiagnosticAlreadyComplete  DiagnosticKind = "already_complete"
	DiagnosticUndecodable      DiagnosticKind = "undecodable"
	DiagnosticUnhandledKind    DiagnosticKind = "unhandled_kind"
	DiagnosticTransport        DiagnosticKind = "transport"
	DiagnosticEvicted          DiagnosticKind = "evicted"
	DiagnosticTimedOut         DiagnosticKind = "timed_out"
	DiagnosticOutput           DiagnosticKind = "output"
)

// Diagnostic is a non-fatal problem observed while processing.
type Diagnostic struct {
	Kind      DiagnosticKind
	Timestamp int64
	Count     int
	Detail    string
	Err       error
}

// LogDiagnostics logs diagnostics at warn level.
type LogDiagnostics struct {
	Logger *slog.Logger
}

// HandleDiagnostic logs d.
func (l *LogDiagnostics) HandleDiagnostic(d Diagnostic) {
	attrs := []any{"kind", string(d.Kind)}
	if d.Timestamp != 0 {
		attrs = append(attrs, "timestamp", d.Timestamp)
	}
	if d.Count != 0 {
		attrs = append(attrs, "count", d.Count)
	}
	if d.Detail != "" {
		attrs = append(attrs, "detail", d.Detail)
	}
	l.Logger.Warn(d.Err.Error(), attrs...)
}
