package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNopSinkIsSilent(t *testing.T) {
	var s Sink = NopSink{}
	s.Enter("root", "Agent")
	s.Exit("root", "Agent", "complete")
	s.Mark("root", "loop")
	s.Data("root", "gas", 42)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLoggerDisabledIsSilent(t *testing.T) {
	l, err := NewLogger(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Enter("root", "Agent")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLoggerWritesJSONEvents(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(Config{
		Enabled:       true,
		Level:         LevelDebug,
		Format:        FormatJSON,
		Output:        "stdout",
		BufferSize:    4,
		FlushInterval: 10 * time.Millisecond,
		SampleRate:    1.0,
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	resetHandler(t, l, &buf)

	l.Enter("root/0", "Prompt")
	l.Exit("root/0", "Prompt", "complete")
	l.Mark("root", "iteration-1")
	l.Data("root", "gas_remaining", 99)

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d log lines, want 4:\n%s", len(lines), buf.String())
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if first["node_path"] != "root/0" || first["node_kind"] != "Prompt" {
		t.Errorf("unexpected first event: %+v", first)
	}
}

func TestLoggerFiltersByEventType(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(Config{
		Enabled:       true,
		Level:         LevelDebug,
		Format:        FormatJSON,
		BufferSize:    4,
		FlushInterval: 10 * time.Millisecond,
		SampleRate:    1.0,
		EventTypes:    []EventType{EventNodeExit},
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	resetHandler(t, l, &buf)

	l.Enter("root", "Agent")
	l.Exit("root", "Agent", "complete")

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (only node.exit survives the filter): %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"node.exit"`) {
		t.Errorf("expected node.exit event, got %s", lines[0])
	}
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

// resetHandler repoints an already-constructed Logger's slog handler at buf,
// since NewLogger binds its handler to stdout/stderr/file before tests get
// a chance to inject a buffer.
func resetHandler(t *testing.T, l *Logger, buf *bytes.Buffer) {
	t.Helper()
	l.output = nopCloser{buf}
	l.rebindHandler(buf)
}
