package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if ValidLevel("verbose") || !ValidLevel("Trace") {
		t.Error("ValidLevel disagrees with ParseLevel")
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtTrace bool
	}{
		{"info filters debug", "info", false, false},
		{"debug passes debug", "debug", true, false},
		{"trace passes everything", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.logAtDebug)
			}

			buf.Reset()
			logger.Log(context.Background(), LevelTrace, "trace message")
			out := buf.String()
			if got := strings.Contains(out, "trace message"); got != tt.logAtTrace {
				t.Errorf("trace logged = %v, want %v", got, tt.logAtTrace)
			}
			if tt.logAtTrace && !strings.Contains(out, "level=TRACE") {
				t.Errorf("trace level not labelled: %q", out)
			}
		})
	}
}

func TestIterationLog(t *testing.T) {
	dir := t.TempDir()

	t.Run("info level creates nothing", func(t *testing.T) {
		l, err := NewIterationLog(dir, "info")
		if err != nil || l != nil {
			t.Fatalf("Expected nil log, got %v, %v", l, err)
		}
		if err := l.Log(map[string]any{"iteration": 0}); err != nil {
			t.Errorf("nil Log returned %v", err)
		}
		if err := l.Close(); err != nil {
			t.Errorf("nil Close returned %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, IterationLogFile)); !os.IsNotExist(err) {
			t.Error("No file expected at info level")
		}
	})

	t.Run("debug level appends lines", func(t *testing.T) {
		for run := 0; run < 2; run++ {
			l, err := NewIterationLog(dir, "debug")
			if err != nil {
				t.Fatal(err)
			}
			event := map[string]any{"iteration": run, "loss": 1.5}
			if err := l.Log(event); err != nil {
				t.Fatal(err)
			}
			if _, ok := event["time"]; ok {
				t.Error("Log mutated the caller's map")
			}
			l.Close()
		}

		f, err := os.Open(filepath.Join(dir, IterationLogFile))
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		var lines int
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var entry map[string]any
			if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
				t.Fatalf("Invalid JSON line %q: %v", scanner.Text(), err)
			}
			if entry["loss"] != 1.5 || entry["time"] == nil {
				t.Errorf("Unexpected entry %v", entry)
			}
			lines++
		}
		if lines != 2 {
			t.Errorf("Expected 2 lines, got %d", lines)
		}
	})
}
