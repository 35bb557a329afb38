// Package audit gives the tick executor (internal/bark/exec) and node
// catalog (internal/bark/node) a structured log of what a running tree did:
// which node was entered, what state it exited with, any marks it dropped
// along the way, and any free-form data it wants on the record. This is
// adapted from the teacher's internal/audit package (same Event/Config/
// Logger shape, same async-buffered slog backend) but re-keyed to the four
// moments a tree node's lifecycle actually has, rather than agent/tool/
// session events.
package audit

import "time"

// EventType enumerates the four lifecycle moments a tree emits.
type EventType string

const (
	// EventNodeEnter fires on every ResumeWith call of a node, including
	// the calls that resume it after a Waiting tick.
	EventNodeEnter EventType = "node.enter"
	// EventNodeExit fires when a node's ResumeWith call returns Complete,
	// Failed or WaitingForGas; a Waiting return emits no exit event.
	EventNodeExit EventType = "node.exit"
	// EventNodeMark fires when a node wants a named checkpoint on the
	// record without concluding its run (e.g. a wrapper logging each loop
	// iteration).
	EventNodeMark EventType = "node.mark"
	// EventNodeData fires when a node wants an arbitrary key/value pair
	// attached to the record, e.g. a resolved prompt length or the gas
	// remaining after a billable call.
	EventNodeData EventType = "node.data"
)

// Level mirrors the teacher's audit.Level ordering so filtering by level
// (Logger.log) compares with plain integer ordering.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// OutputFormat selects the slog handler backing a Logger.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatText OutputFormat = "text"
)

// Event is one record in the audit trail.
type Event struct {
	ID        string
	Type      EventType
	Level     Level
	Timestamp time.Time

	// NodePath identifies the node within the tree, e.g. "root/fallback/0".
	NodePath string
	// NodeKind is the node's catalog type, e.g. "Prompt" or "Agent".
	NodeKind string
	// State is set on EventNodeExit: "complete", "failed" or
	// "waiting_for_gas".
	State string
	// Label is set on EventNodeMark.
	Label string

	Details map[string]any

	TraceID string
	SpanID  string
}

// Config controls a Logger's behavior, mirroring the teacher's audit.Config
// field set (sampling, buffering, format, output target, event filtering).
type Config struct {
	Enabled bool
	Level   Level
	Format  OutputFormat
	// Output is "stdout", "stderr", or "file:<path>".
	Output string

	BufferSize    int
	FlushInterval time.Duration
	SampleRate    float64
	MaxFieldSize  int

	// EventTypes restricts logging to this set; empty means all types.
	EventTypes []EventType
}

// DefaultConfig returns a JSON-to-stdout logger configuration with no
// sampling and a modest buffer; cmd/bark runs every tree with it.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Level:         LevelInfo,
		Format:        FormatJSON,
		Output:        "stdout",
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
		SampleRate:    1.0,
		MaxFieldSize:  2048,
	}
}
