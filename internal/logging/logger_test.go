package logging

import (
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
		in   string
		want slog.Level
	}{
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{" trace ", LevelTrace},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerLabelsTrace(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("trace", &buf)
	l.Log(context.Background(), LevelTrace, "edit", "field", "intercept")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE label, got %q", buf.String())
	}
}

func TestNewLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("info", &buf)
	l.Debug("hidden")
	l.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRunJournal(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenRunJournal(dir, "info")
	if err != nil || j != nil {
		t.Fatalf("info level should not open a journal, got %v, %v", j, err)
	}
	j.Record(map[string]any{"tab": 1})

	j, err = OpenRunJournal(dir, "debug")
	if err != nil {
		t.Fatal(err)
	}
	rec := map[string]any{"tab": 2, "outcome": "ok"}
	j.Record(rec)
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := rec["time"]; ok {
		t.Error("Record modified the caller's map")
	}

	data, err := os.ReadFile(filepath.Join(dir, "runs.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &got); err != nil {
		t.Fatalf("journal line is not JSON: %v", err)
	}
	if got["outcome"] != "ok" || got["time"] == nil {
		t.Errorf("unexpected entry %v", got)
	}
}
