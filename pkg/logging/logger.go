// Package logging provides leveled logging and per-iteration tracing for drtm.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An IterationLog for structured JSONL fit traces (<trace dir>/iterations.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug for per-tile and per-path detail
const LevelTrace = slog.LevelDebug - 4

// IterationLogFile is the name of the JSONL file written by IterationLog
const IterationLogFile = "iterations.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a supported level
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "info", "debug", "trace":
		return true
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// IterationLog writes one JSON object per fitting iteration.
// It is safe for concurrent use. A nil IterationLog is safe to use;
// all methods are no-ops on nil receiver.
type IterationLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewIterationLog creates an iteration log writing to dir/iterations.jsonl.
// At "info" level it returns nil and no file is created.
// At "debug" or "trace" level the file is opened for append.
func NewIterationLog(dir string, level string) (*IterationLog, error) {
	if ParseLevel(level) == slog.LevelInfo {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Join(dir, IterationLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &IterationLog{file: f}, nil
}

// Log writes an event as a single JSONL line.
// A "time" field is added automatically. The caller's map is not mutated.
func (l *IterationLog) Log(event map[string]any) error {
	if l == nil || l.file == nil {
		return nil
	}

	entry := make(map[string]any, len(event)+1)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.file.Write(data)
	return err
}

// Close closes the underlying file. Safe to call on nil receiver.
func (l *IterationLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.file.Close()
	l.file = nil
	return err
}
