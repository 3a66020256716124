// Package storage persists dashboard sessions in SQLite and exports results
// as CSV.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/san-kum/erpsim/internal/sim"
)

var (
	ErrNotFound  = errors.New("storage: session not found")
	ErrAmbiguous = errors.New("storage: session id prefix is ambiguous")
)

// Store keeps one row per saved session: the flat parameter map and the
// latest result, both as JSON.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

type SessionMeta struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Samples   int
	Err       string
}

type Session struct {
	SessionMeta
	Params map[string]string
	Result *sim.Result
}

func Open(path string) (*Store, error) {
	if path == "" {
		path = "sessions.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		samples INTEGER NOT NULL,
		err TEXT NOT NULL,
		params BLOB NOT NULL,
		result BLOB
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error { return s.db.Close() }

// Save stores a session and returns its new id. result may be nil.
func (s *Store) Save(ctx context.Context, name string, params map[string]string, result *sim.Result) (string, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	var r []byte
	samples, errText := 0, ""
	if result != nil {
		if r, err = json.Marshal(result); err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		samples, errText = result.Len(), result.Err
	}

	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, created_at, samples, err, params, result) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, time.Now().UTC().UnixNano(), samples, errText, p, r)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// List returns every session, newest first.
func (s *Store) List(ctx context.Context) ([]SessionMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at, samples, err FROM sessions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SessionMeta
	for rows.Next() {
		var m SessionMeta
		var created int64
		if err := rows.Scan(&m.ID, &m.Name, &created, &m.Samples, &m.Err); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// Load returns the session whose id is ref or starts with ref.
func (s *Store) Load(ctx context.Context, ref string) (Session, error) {
	id, err := s.resolve(ctx, ref)
	if err != nil {
		return Session{}, err
	}

	var sess Session
	var created int64
	var p, r []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, samples, err, params, result FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.Name, &created, &sess.Samples, &sess.Err, &p, &r)
	if err != nil {
		return Session{}, fmt.Errorf("select session: %w", err)
	}
	sess.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal(p, &sess.Params); err != nil {
		return Session{}, fmt.Errorf("decode params: %w", err)
	}
	if len(r) > 0 {
		sess.Result = &sim.Result{}
		if err := json.Unmarshal(r, sess.Result); err != nil {
			return Session{}, fmt.Errorf("decode result: %w", err)
		}
	}
	return sess, nil
}

func (s *Store) Delete(ctx context.Context, ref string) error {
	id, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *Store) resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions WHERE id = ? OR substr(id, 1, ?) = ?`, ref, len(ref), ref)
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		if id == ref {
			return id, nil
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("%w: %s matches %d sessions", ErrAmbiguous, ref, len(ids))
}
