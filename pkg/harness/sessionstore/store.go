// Package sessionstore persists harness transcripts in SQLite. It is a
// collaborator of the harness, not a dependency: sessions run fine without
// it, and the CLI wires it in only when asked to keep history.
package sessionstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/goliatone/go-formdoc/pkg/harness"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Store keeps one transcript row per session and one row per turn. Turn
// payloads are stored as JSON; the relational part carries only what List
// and Load need to filter and order.
type Store struct {
	db *sql.DB
}

// Summary is the compact listing view of a stored session.
type Summary struct {
	SessionID string        `json:"session_id"`
	FormID    string        `json:"form_id"`
	Final     harness.State `json:"final"`
	Turns     int           `json:"turns"`
	Started   time.Time     `json:"started"`
}

// New opens (or creates) the store at the given path and runs migrations.
func New(path string) (*Store, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("sessionstore: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("sessionstore: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			form_id    TEXT NOT NULL,
			input_hash TEXT NOT NULL,
			config     TEXT NOT NULL,
			started    TEXT NOT NULL,
			finished   TEXT,
			final      TEXT,
			final_hash TEXT
		);

		CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT    NOT NULL,
			idx        INTEGER NOT NULL,
			data       TEXT    NOT NULL,
			PRIMARY KEY (session_id, idx),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_form ON sessions(form_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save upserts a transcript and all of its turns in one transaction.
func (s *Store) Save(tr *harness.Transcript) error {
	if tr == nil || tr.SessionID == "" {
		return fmt.Errorf("sessionstore: transcript has no session id")
	}
	cfg, err := json.Marshal(tr.Config)
	if err != nil {
		return fmt.Errorf("sessionstore: encode config: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sessionstore: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(
		`INSERT INTO sessions (id, form_id, input_hash, config, started, finished, final, final_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			finished = excluded.finished,
			final = excluded.final,
			final_hash = excluded.final_hash`,
		tr.SessionID, tr.FormID, tr.InputHash, string(cfg),
		tr.Started.Format(time.RFC3339Nano), nullableTime(tr.Finished),
		nullableString(string(tr.Final)), nullableString(tr.FinalHash),
	); err != nil {
		return fmt.Errorf("sessionstore: save session: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM turns WHERE session_id = ?`, tr.SessionID); err != nil {
		return fmt.Errorf("sessionstore: clear turns: %w", err)
	}
	for _, turn := range tr.Turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("sessionstore: encode turn %d: %w", turn.Index, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO turns (session_id, idx, data) VALUES (?, ?, ?)`,
			tr.SessionID, turn.Index, string(data),
		); err != nil {
			return fmt.Errorf("sessionstore: save turn %d: %w", turn.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sessionstore: commit: %w", err)
	}
	return nil
}

// Load rebuilds a transcript by session id.
func (s *Store) Load(sessionID string) (*harness.Transcript, error) {
	row := s.db.QueryRow(
		`SELECT id, form_id, input_hash, config, started, finished, final, final_hash
		 FROM sessions WHERE id = ?`, sessionID,
	)

	var (
		tr                         harness.Transcript
		cfg, started               string
		finished, final, finalHash sql.NullString
	)
	if err := row.Scan(&tr.SessionID, &tr.FormID, &tr.InputHash, &cfg, &started, &finished, &final, &finalHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sessionstore: no session %q", sessionID)
		}
		return nil, fmt.Errorf("sessionstore: load session: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg), &tr.Config); err != nil {
		return nil, fmt.Errorf("sessionstore: decode config: %w", err)
	}
	var err error
	if tr.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("sessionstore: decode started: %w", err)
	}
	if finished.Valid && finished.String != "" {
		if tr.Finished, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
			return nil, fmt.Errorf("sessionstore: decode finished: %w", err)
		}
	}
	tr.Final = harness.State(final.String)
	tr.FinalHash = finalHash.String

	rows, err := s.db.Query(
		`SELECT data FROM turns WHERE session_id = ? ORDER BY idx`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: load turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sessionstore: scan turn: %w", err)
		}
		var turn harness.Turn
		if err := json.Unmarshal([]byte(data), &turn); err != nil {
			return nil, fmt.Errorf("sessionstore: decode turn: %w", err)
		}
		tr.Turns = append(tr.Turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &tr, nil
}

// List returns stored sessions newest first, optionally filtered by form id.
func (s *Store) List(formID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT s.id, s.form_id, COALESCE(s.final, ''), s.started, COUNT(t.idx)
		FROM sessions s
		LEFT JOIN turns t ON t.session_id = s.id
	`
	args := []any{}
	if formID != "" {
		query += " WHERE s.form_id = ?"
		args = append(args, formID)
	}
	query += " GROUP BY s.id ORDER BY s.started DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: list: %w", err)
	}
	defer rows.Close()

	var results []Summary
	for rows.Next() {
		var (
			sum     Summary
			final   string
			started string
		)
		if err := rows.Scan(&sum.SessionID, &sum.FormID, &final, &started, &sum.Turns); err != nil {
			return nil, fmt.Errorf("sessionstore: scan: %w", err)
		}
		sum.Final = harness.State(final)
		if sum.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("sessionstore: decode started: %w", err)
		}
		results = append(results, sum)
	}
	return results, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
