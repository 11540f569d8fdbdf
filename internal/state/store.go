package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS state_versions (
	version_id    TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	parent_id     TEXT,
	turn          INTEGER NOT NULL,
	snapshot      TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_state_versions_session ON state_versions(session_id);

CREATE TABLE IF NOT EXISTS active_state (
	session_id    TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES state_versions(version_id)
);

CREATE TABLE IF NOT EXISTS turn_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id      TEXT NOT NULL,
	version_id      TEXT,
	turn            INTEGER NOT NULL,
	trigger_type    TEXT NOT NULL,
	message         TEXT,
	response        TEXT,
	tier            TEXT,
	analysis_json   TEXT,
	repair_json     TEXT,
	supervisor_json TEXT,
	g_factor        REAL,
	status          TEXT,
	degraded        INTEGER NOT NULL DEFAULT 0,
	decision        TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store manages versioned learner state in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region create-initial
// CreateInitialState stores an empty turn-0 state for a session and makes it
// active. An empty sessionID gets a fresh uuid.
func (s *Store) CreateInitialState(sessionID string) (LearnerState, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	rec := NewLearnerState(sessionID)
	rec.VersionID = uuid.New().String()
	rec.CreatedAt = time.Now().UTC()

	if err := s.CommitState(rec); err != nil {
		return LearnerState{}, fmt.Errorf("create initial: %w", err)
	}
	return rec, nil
}

// #endregion create-initial

// #region get-current
// GetCurrent reads the active state version of a session.
func (s *Store) GetCurrent(sessionID string) (LearnerState, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_state WHERE session_id = ?`, sessionID).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return LearnerState{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return LearnerState{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific state version by ID.
func (s *Store) GetVersion(id string) (LearnerState, error) {
	var snapshot string
	err := s.db.QueryRow(`SELECT snapshot FROM state_versions WHERE version_id = ?`, id).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return LearnerState{}, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return LearnerState{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return decodeSnapshot(snapshot)
}

// #endregion get-version

// #region commit-state
// CommitState inserts a new version and moves the session's active pointer
// to it atomically.
func (s *Store) CommitState(rec LearnerState) error {
	if rec.SessionID == "" || rec.VersionID == "" {
		return fmt.Errorf("commit state: session and version id are required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	snapshot, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}

	_, err = tx.Exec(
		`INSERT INTO state_versions (version_id, session_id, parent_id, turn, snapshot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.VersionID, rec.SessionID, parentPtr, rec.Turn, string(snapshot),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_state (session_id, version_id) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET version_id = excluded.version_id`,
		rec.SessionID, rec.VersionID,
	)
	if err != nil {
		return fmt.Errorf("update active: %w", err)
	}

	return tx.Commit()
}

// #endregion commit-state

// #region rollback
// Rollback sets a session's active pointer to one of its previous versions.
func (s *Store) Rollback(sessionID, targetVersionID string) error {
	var owner string
	err := s.db.QueryRow(
		`SELECT session_id FROM state_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("version %s: %w", targetVersionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if owner != sessionID {
		return fmt.Errorf("version %s belongs to session %s, not %s", targetVersionID, owner, sessionID)
	}

	_, err = s.db.Exec(`UPDATE active_state SET version_id = ? WHERE session_id = ?`, targetVersionID, sessionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent versions of a session, newest first.
func (s *Store) ListVersions(sessionID string, limit int) ([]LearnerState, error) {
	rows, err := s.db.Query(
		`SELECT snapshot FROM state_versions WHERE session_id = ? ORDER BY rowid DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []LearnerState
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec, err := decodeSnapshot(snapshot)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListSessions returns every session id with an active state.
func (s *Store) ListSessions() ([]string, error) {
	rows, err := s.db.Query(`SELECT session_id FROM active_state ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// #endregion list-versions

// #region snapshot-encoding
func decodeSnapshot(snapshot string) (LearnerState, error) {
	var rec LearnerState
	if err := json.Unmarshal([]byte(snapshot), &rec); err != nil {
		return LearnerState{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if rec.CurrentBands == nil {
		rec.CurrentBands = map[string]string{}
	}
	return rec, nil
}

// #endregion snapshot-encoding
