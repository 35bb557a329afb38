package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink is what a ticking node or wrapper writes lifecycle events to.
// internal/bark/exec passes one Sink through an entire tree run; node.Node
// implementations receive it as the last ResumeWith argument.
type Sink interface {
	Enter(nodePath, nodeKind string)
	Exit(nodePath, nodeKind, state string)
	Mark(nodePath, label string)
	Data(nodePath, key string, value any)
	Close() error
}

// NopSink discards every event. Used by tests.
type NopSink struct{}

func (NopSink) Enter(string, string)        {}
func (NopSink) Exit(string, string, string) {}
func (NopSink) Mark(string, string)         {}
func (NopSink) Data(string, string, any)    {}
func (NopSink) Close() error                { return nil }

// Logger is a structured, asynchronously-buffered Sink backed by log/slog.
// It mirrors the teacher's internal/audit.Logger: a buffered channel feeds
// a background writer goroutine so that emitting an event never blocks a
// tick on I/O, with sampling and event-type filtering applied before an
// event is ever queued.
type Logger struct {
	config     Config
	output     io.WriteCloser
	slogger    *slog.Logger
	buffer     chan *Event
	wg         sync.WaitGroup
	done       chan struct{}
	eventTypes map[EventType]bool

	mu      sync.RWMutex
	traceID string
	spanID  string
}

// TraceStamper is implemented by sinks that can attach a trace/span pair to
// every subsequent event. exec.Runner calls SetTrace once per tree run,
// after starting its otel span, so every node.enter/exit/mark/data record
// for that run correlates back to the same trace.
type TraceStamper interface {
	SetTrace(traceID, spanID string)
}

// SetTrace records the trace/span pair to stamp onto events written from
// this point on. Safe to call concurrently with log.
func (l *Logger) SetTrace(traceID, spanID string) {
	l.mu.Lock()
	l.traceID, l.spanID = traceID, spanID
	l.mu.Unlock()
}

var _ TraceStamper = (*Logger)(nil)

// NewLogger builds a Logger from cfg. A disabled config returns a Logger
// whose methods are all no-ops, so callers can unconditionally construct
// one from config and never branch on cfg.Enabled themselves.
func NewLogger(cfg Config) (*Logger, error) {
	if !cfg.Enabled {
		return &Logger{config: cfg}, nil
	}

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 1000
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxFieldSize == 0 {
		cfg.MaxFieldSize = 2048
	}

	var output io.WriteCloser
	switch {
	case cfg.Output == "stdout" || cfg.Output == "":
		output = os.Stdout
	case cfg.Output == "stderr":
		output = os.Stderr
	case strings.HasPrefix(cfg.Output, "file:"):
		path := strings.TrimPrefix(cfg.Output, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("audit: open output file: %w", err)
		}
		output = f
	default:
		return nil, fmt.Errorf("audit: unsupported output %q", cfg.Output)
	}

	eventTypes := make(map[EventType]bool, len(cfg.EventTypes))
	for _, et := range cfg.EventTypes {
		eventTypes[et] = true
	}

	l := &Logger{
		config:     cfg,
		output:     output,
		buffer:     make(chan *Event, cfg.BufferSize),
		done:       make(chan struct{}),
		eventTypes: eventTypes,
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level)}
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}
	l.slogger = slog.New(handler).With("component", "bark.audit")

	l.wg.Add(1)
	go l.writeLoop()

	return l, nil
}

// rebindHandler repoints the logger's slog handler at w, keeping the
// configured level and format. Exposed for tests that need to assert on
// written output instead of stdout.
func (l *Logger) rebindHandler(w io.Writer) {
	opts := &slog.HandlerOptions{Level: slogLevel(l.config.Level)}
	var handler slog.Handler
	switch l.config.Format {
	case FormatText:
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	l.slogger = slog.New(handler).With("component", "bark.audit")
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Close flushes any buffered events and releases the output handle.
func (l *Logger) Close() error {
	if !l.config.Enabled {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	if l.output != os.Stdout && l.output != os.Stderr {
		return l.output.Close()
	}
	return nil
}

func (l *Logger) Enter(nodePath, nodeKind string) {
	l.log(&Event{Type: EventNodeEnter, Level: LevelInfo, NodePath: nodePath, NodeKind: nodeKind})
}

func (l *Logger) Exit(nodePath, nodeKind, state string) {
	level := LevelInfo
	if state == "failed" {
		level = LevelWarn
	}
	l.log(&Event{Type: EventNodeExit, Level: level, NodePath: nodePath, NodeKind: nodeKind, State: state})
}

func (l *Logger) Mark(nodePath, label string) {
	l.log(&Event{Type: EventNodeMark, Level: LevelDebug, NodePath: nodePath, Label: label})
}

func (l *Logger) Data(nodePath, key string, value any) {
	l.log(&Event{Type: EventNodeData, Level: LevelDebug, NodePath: nodePath, Details: map[string]any{key: l.truncate(value)}})
}

func (l *Logger) truncate(value any) any {
	s, ok := value.(string)
	if !ok || len(s) <= l.config.MaxFieldSize {
		return value
	}
	return s[:l.config.MaxFieldSize] + "...(truncated)"
}

func (l *Logger) log(ev *Event) {
	if !l.config.Enabled {
		return
	}
	if l.config.SampleRate < 1.0 && rand.Float64() > l.config.SampleRate {
		return
	}
	if len(l.eventTypes) > 0 && !l.eventTypes[ev.Type] {
		return
	}
	if ev.Level < l.config.Level {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	l.mu.RLock()
	ev.TraceID, ev.SpanID = l.traceID, l.spanID
	l.mu.RUnlock()

	select {
	case l.buffer <- ev:
	default:
		l.write(ev)
	}
}

func (l *Logger) writeLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case ev := <-l.buffer:
			l.write(ev)
		case <-ticker.C:
			// periodic wake keeps the goroutine schedulable under low event
			// volume; nothing to flush explicitly since slog writes eagerly.
		case <-l.done:
			for {
				select {
				case ev := <-l.buffer:
					l.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(ev *Event) {
	attrs := []any{
		"id", ev.ID,
		"type", string(ev.Type),
		"node_path", ev.NodePath,
	}
	if ev.NodeKind != "" {
		attrs = append(attrs, "node_kind", ev.NodeKind)
	}
	if ev.State != "" {
		attrs = append(attrs, "state", ev.State)
	}
	if ev.Label != "" {
		attrs = append(attrs, "label", ev.Label)
	}
	for k, v := range ev.Details {
		attrs = append(attrs, k, v)
	}
	if ev.TraceID != "" {
		attrs = append(attrs, "trace_id", ev.TraceID, "span_id", ev.SpanID)
	}
	l.slogger.Log(context.Background(), slogLevel(ev.Level), string(ev.Type), attrs...)
}

var _ Sink = (*Logger)(nil)
var _ Sink = NopSink{}
