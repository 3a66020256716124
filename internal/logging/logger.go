// Package logging builds the leveled loggers used across erpsim:
//   - a slog.Logger for operational output on stderr
//   - a RunJournal appending one JSON line per recompute to <data_dir>/runs.jsonl
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

// LevelTrace sits below Debug and includes per-edit signal traffic.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps "info", "debug" or "trace" (any case) to a level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// RunJournal appends run records as JSON lines. A nil journal is valid and
// writes nothing. Safe for concurrent use.
type RunJournal struct {
	mu   sync.Mutex
	file *os.File
}

// OpenRunJournal opens dir/runs.jsonl for append. At info level it returns nil
// and creates nothing.
func OpenRunJournal(dir, level string) (*RunJournal, error) {
	if ParseLevel(level) >= slog.LevelInfo {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "runs.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &RunJournal{file: f}, nil
}

// Record writes one entry with a "time" field added. rec is not modified.
func (j *RunJournal) Record(rec map[string]any) {
	if j == nil || j.file == nil {
		return
	}
	entry := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, _ = j.file.Write(append(data, '\n'))
}

func (j *RunJournal) Close() error {
	if j == nil || j.file == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
