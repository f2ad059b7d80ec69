package chatlog

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	event := Event{
		UserID:     "user-1",
		SessionID:  "sess-1",
		Channel:    "chat_ws",
		Direction:  DirectionInbound,
		EventType:  "answer",
		ContentRaw: "we need   faster\x07 approvals",
	}
	logger.Log(event)

	path := filepath.Join(dir, "user-1", "sess-1.ndjson")
	line := waitForLogLine(t, path)
	var got Event
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.ContentRaw != event.ContentRaw {
		t.Fatalf("unexpected ContentRaw: %q", got.ContentRaw)
	}
	if got.Content != "we need faster approvals" {
		t.Fatalf("unexpected cleaned content: %q", got.Content)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}
}

func TestFileLoggerCloseFlushes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 64}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		logger.Log(Event{UserID: "u", SessionID: "s", EventType: "answer", Content: "x"})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Logging after close is a no-op.
	logger.Log(Event{UserID: "u", SessionID: "s", EventType: "late"})

	data, err := os.ReadFile(filepath.Join(dir, "u", "s.ndjson"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 10 {
		t.Fatalf("expected 10 lines, got %d", n)
	}
}

func TestFileLoggerSessionEndReleasesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 16}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = logger.Close() }()
	fl := logger.(*FileLogger)

	path := filepath.Join(dir, "u", "tab-1.ndjson")
	fl.Log(Event{UserID: "u", SessionID: "tab-1", EventType: "answer", Content: "first"})
	waitForLogLine(t, path)
	if n := fl.openFiles(); n != 1 {
		t.Fatalf("expected 1 open file, got %d", n)
	}

	fl.Log(Event{UserID: "u", SessionID: "tab-1", EventType: EventSessionEnd})
	waitForOpenFiles(t, fl, 0)
	if line := waitForLogLine(t, path); !strings.Contains(line, EventSessionEnd) {
		t.Fatalf("expected session_end as last line, got %q", line)
	}

	// A session that logs again reopens its file in append mode.
	fl.Log(Event{UserID: "u", SessionID: "tab-1", EventType: "answer", Content: "again"})
	waitForOpenFiles(t, fl, 1)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(string(data)), "\n")); n != 3 {
		t.Fatalf("expected 3 lines, got %d", n)
	}
}

func TestNewDisabledReturnsNop(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := logger.(Nop); !ok {
		t.Fatalf("expected Nop logger, got %T", logger)
	}
}

func TestSafeName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"anon_abc":  "anon_abc",
		"../etc":    ".._etc",
		"..":        "fallback",
		"":          "fallback",
		"tab 1/two": "tab_1_two",
	}
	for in, want := range tests {
		if got := safeName(in, "fallback"); got != want {
			t.Errorf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m plain"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b[31m") {
		t.Fatalf("expected ANSI sequence to be stripped: %q", clean)
	}
	if !strings.Contains(clean, "error plain") {
		t.Fatalf("expected readable text to remain: %q", clean)
	}
}

func waitForOpenFiles(t *testing.T, l *FileLogger, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.openFiles() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d open files, got %d", want, l.openFiles())
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
