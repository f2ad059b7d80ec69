// Package chatlog writes an append-only activity log of chat sessions as NDJSON files,
// one file per user session.
package chatlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Directions of a logged event relative to the server.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// EventSessionEnd is the last event of a session. The session's file is closed after it is
// written and reopened if the session logs again.
const EventSessionEnd = "session_end"

// Config controls the activity log.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one line of the activity log.
type Event struct {
	Timestamp      time.Time      `json:"ts"`
	UserID         string         `json:"user_id"`
	SessionID      string         `json:"session_id"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Channel        string         `json:"channel"`
	Direction      string         `json:"direction"`
	EventType      string         `json:"event_type"`
	Content        string         `json:"content,omitempty"`
	ContentRaw     string         `json:"content_raw,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
}

// Logger records chat events. Log never blocks the caller.
type Logger interface {
	Log(event Event)
	Close() error
}

// Nop discards events.
type Nop struct{}

// Log discards event.
func (Nop) Log(Event) {}

// Close does nothing.
func (Nop) Close() error { return nil }

// FileLogger appends events to <dir>/<user>/<session>.ndjson from a single writer goroutine.
type FileLogger struct {
	dir    string
	queue  chan Event
	logger *slog.Logger

	mu     sync.Mutex
	closed bool

	filesMu sync.Mutex
	files   map[string]*os.File
	dropped int
	wg      sync.WaitGroup
}

// New returns a FileLogger, or Nop when cfg is disabled.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("chat log directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chat log directory: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	l := &FileLogger{
		dir:    cfg.Dir,
		queue:  make(chan Event, cfg.QueueSize),
		logger: logger,
		files:  make(map[string]*os.File),
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Log enqueues event. Events are dropped when the queue is full or the logger is closed.
func (l *FileLogger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Content == "" && event.ContentRaw != "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.dropped++
		if l.dropped == 1 || l.dropped%100 == 0 {
			l.logger.Warn("Chat log queue full, dropping events", "dropped", l.dropped)
		}
	}
}

// Close flushes queued events and closes every file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	l.wg.Wait()

	l.filesMu.Lock()
	defer l.filesMu.Unlock()
	var firstErr error
	for key, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close chat log %s: %w", key, err)
		}
		delete(l.files, key)
	}
	return firstErr
}

// openFiles reports how many session files are currently open.
func (l *FileLogger) openFiles() int {
	l.filesMu.Lock()
	defer l.filesMu.Unlock()
	return len(l.files)
}

func (l *FileLogger) run() {
	defer l.wg.Done()
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("Failed to write chat log event",
				"user_id", event.UserID,
				"session_id", event.SessionID,
				"error", err)
		}
	}
}

func (l *FileLogger) write(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	l.filesMu.Lock()
	defer l.filesMu.Unlock()
	key, f, err := l.file(event.UserID, event.SessionID)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	if event.EventType == EventSessionEnd {
		delete(l.files, key)
		if closeErr := f.Close(); closeErr != nil && err == nil {
			return fmt.Errorf("close chat log %s: %w", key, closeErr)
		}
	}
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// file returns the open file of a session. The caller holds filesMu.
func (l *FileLogger) file(userID, sessionID string) (string, *os.File, error) {
	user := safeName(userID, "unknown")
	session := safeName(sessionID, "default")
	key := user + "/" + session
	if f, ok := l.files[key]; ok {
		return key, f, nil
	}

	dir := filepath.Join(l.dir, user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create user log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, session+".ndjson"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("open chat log: %w", err)
	}
	l.files[key] = f
	return key, f, nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// safeName keeps ids usable as single path elements.
func safeName(id, fallback string) string {
	id = unsafeNameChars.ReplaceAllString(strings.TrimSpace(id), "_")
	if id == "" || id == "." || id == ".." {
		return fallback
	}
	return id
}

var (
	ansiPattern       = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	whitespacePattern = regexp.MustCompile(`[ \t]+`)
)

// cleanForReadability strips terminal escapes and control characters and collapses runs
// of blanks so logged text reads cleanly.
func cleanForReadability(raw string) string {
	s := ansiPattern.ReplaceAllString(raw, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
