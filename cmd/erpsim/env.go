package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/san-kum/erpsim/internal/config"
	"github.com/san-kum/erpsim/internal/engine"
	"github.com/san-kum/erpsim/internal/logging"
	"github.com/san-kum/erpsim/internal/metrics"
	"github.com/san-kum/erpsim/internal/session"
	"github.com/san-kum/erpsim/internal/signal"
	"github.com/san-kum/erpsim/internal/sim"
	"github.com/san-kum/erpsim/internal/storage"
)

// env is everything a command builds from the loaded configuration.
type env struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Recorder
	journal *logging.RunJournal
	presets *config.PresetBook
	server  *http.Server
}

func setup() (*env, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	e := &env{
		cfg:     cfg,
		log:     logging.NewLogger(cfg.LogLevel, os.Stderr),
		metrics: metrics.NewRecorder(),
	}

	e.presets = config.NewPresetBook(nil)
	if cfg.PresetsFile != "" {
		if e.presets, err = config.LoadPresets(cfg.PresetsFile); err != nil {
			return nil, err
		}
	}

	if e.journal, err = logging.OpenRunJournal(cfg.DataDir, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("open run journal: %w", err)
	}

	if cfg.MetricsAddr != "" {
		e.server = &http.Server{Addr: cfg.MetricsAddr, Handler: e.metrics.Handler()}
		go func() {
			if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.log.Error("metrics server stopped", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		e.log.Info("serving metrics", "addr", cfg.MetricsAddr)
	}
	return e, nil
}

func (e *env) Close() {
	if e.server != nil {
		_ = e.server.Shutdown(context.Background())
	}
	_ = e.journal.Close()
}

// newSession builds a session on the configured engine. Nil scheduling
// arguments fall back to the single-goroutine defaults.
func (e *env) newSession(sched signal.Scheduler, dispatch signal.Dispatcher, exec sim.Executor) *session.Session {
	throttle, debounce := e.cfg.Windows()
	return session.New(session.Options{
		Presets:   e.presets,
		Engine:    engine.NewBuiltin(e.cfg.SamplingRate),
		Designs:   engine.NewGrid(),
		Scheduler: sched,
		Dispatch:  dispatch,
		Exec:      exec,
		Throttle:  throttle,
		Debounce:  debounce,
		MaxTabs:   e.cfg.MaxTabs,
		Global:    e.cfg.Params(),
		Logger:    e.log,
		Metrics:   e.metrics,
		Journal:   e.journal,
	})
}

func (e *env) openStore() (*storage.Store, error) {
	return storage.Open(e.cfg.Database())
}

// restore imports a saved parameter map into a fresh headless session and
// recomputes every tab so the cumulative view is complete.
func (e *env) restore(state map[string]string) (*session.Session, error) {
	s := e.newSession(nil, nil, nil)
	if err := s.Import(state); err != nil {
		return nil, err
	}
	recomputeAll(s)
	return s, nil
}

// recomputeAll runs every tab once and leaves the originally active tab
// active.
func recomputeAll(s *session.Session) {
	active := s.Registry().ActiveID()
	for _, t := range s.Registry().Tabs() {
		s.SetActive(t.ID)
		s.RecomputeNow()
	}
	s.SetActive(active)
}

func parseSets(sets []string) (map[string]string, error) {
	out := make(map[string]string, len(sets))
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("--set %q: want key=value", kv)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}
