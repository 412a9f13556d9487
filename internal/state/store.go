package state

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/danielpatrickdp/pod-state/go-analyzer/internal/message"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	record_count  INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS message_log (
	session_id    TEXT NOT NULL,
	idx           INTEGER NOT NULL,
	ts            TEXT NOT NULL,
	delta_ns      INTEGER NOT NULL,
	raw           TEXT NOT NULL,
	PRIMARY KEY (session_id, idx),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS analysis_log (
	run_id        TEXT PRIMARY KEY,
	session_id    TEXT,
	source        TEXT NOT NULL,
	completed     INTEGER NOT NULL,
	incomplete    INTEGER NOT NULL,
	skipped       INTEGER NOT NULL,
	failures      INTEGER NOT NULL,
	actions_json  TEXT,
	pairs_json    TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id        TEXT NOT NULL,
	idx           INTEGER NOT NULL,
	ts            TEXT NOT NULL,
	delta_ns      INTEGER NOT NULL,
	tag           TEXT NOT NULL,
	stage         INTEGER NOT NULL,
	total_insulin REAL NOT NULL,
	last_tb       REAL NOT NULL,
	last_bolus    REAL NOT NULL,
	bolus         INTEGER NOT NULL,
	temp_basal    INTEGER NOT NULL,
	sched_basal   INTEGER NOT NULL,
	raw           TEXT NOT NULL,
	PRIMARY KEY (run_id, idx),
	FOREIGN KEY (run_id) REFERENCES analysis_log(run_id)
);
`

// #endregion schema

// #region store-struct
// Store keeps captured message logs, analysis runs and their snapshots in
// SQLite.
type Store struct {
	db *sql.DB
}

// SessionInfo describes a stored message log.
type SessionInfo struct {
	SessionID   string
	Source      string
	RecordCount int
	CreatedAt   time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
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

// #region session-ids
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newSessionID returns a ULID so sessions sort by import time.
func newSessionID(now time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return id.String(), nil
}

// #endregion session-ids

// #region save-session
// SaveSession stores a message log and returns its new session ID.
func (s *Store) SaveSession(source string, records []MessageRecord) (string, error) {
	now := time.Now().UTC()
	id, err := newSessionID(now)
	if err != nil {
		return "", err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (session_id, source, record_count, created_at) VALUES (?, ?, ?, ?)`,
		id, source, len(records), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO message_log (session_id, idx, ts, delta_ns, raw) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", fmt.Errorf("prepare log insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(id, r.Index, r.Time.UTC().Format(time.RFC3339Nano), int64(r.Delta), r.Raw); err != nil {
			return "", fmt.Errorf("insert record %d: %w", r.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// #endregion save-session

// #region load-session
// LoadSession returns the records of a stored session ordered by index.
func (s *Store) LoadSession(sessionID string) ([]MessageRecord, error) {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, sessionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}

	rows, err := s.db.Query(
		`SELECT idx, ts, delta_ns, raw FROM message_log WHERE session_id = ? ORDER BY idx ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var records []MessageRecord
	for rows.Next() {
		var r MessageRecord
		var ts string
		var delta int64
		if err := rows.Scan(&r.Index, &ts, &delta, &r.Raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Time, _ = time.Parse(time.RFC3339Nano, ts)
		r.Delta = time.Duration(delta)
		records = append(records, r)
	}
	return records, rows.Err()
}

// #endregion load-session

// #region list-sessions
// ListSessions returns the most recent sessions.
func (s *Store) ListSessions(limit int) ([]SessionInfo, error) {
	rows, err := s.db.Query(
		`SELECT session_id, source, record_count, created_at
		 FROM sessions ORDER BY session_id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var created string
		if err := rows.Scan(&info.SessionID, &info.Source, &info.RecordCount, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, info)
	}
	return out, rows.Err()
}

// #endregion list-sessions

// #region snapshots
// SaveSnapshots stores the snapshot stream of an analysis run. The run must
// already exist in analysis_log.
func (s *Store) SaveSnapshots(runID string, snaps []Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO snapshots (run_id, idx, ts, delta_ns, tag, stage, total_insulin, last_tb, last_bolus,
		 bolus, temp_basal, sched_basal, raw)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, sn := range snaps {
		_, err := stmt.Exec(
			runID, sn.Index, sn.Time.UTC().Format(time.RFC3339Nano), int64(sn.Delta), string(sn.Tag),
			sn.Stage, sn.TotalInsulin, sn.LastTempBasal, sn.LastBolus,
			sn.BolusActive, sn.TempBasalActive, sn.ScheduledBasal, sn.Raw,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %d: %w", sn.Index, err)
		}
	}
	return tx.Commit()
}

// LoadSnapshots returns the snapshots of a run ordered by index.
func (s *Store) LoadSnapshots(runID string) ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT idx, ts, delta_ns, tag, stage, total_insulin, last_tb, last_bolus,
		 bolus, temp_basal, sched_basal, raw
		 FROM snapshots WHERE run_id = ? ORDER BY idx ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load snapshots %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var sn Snapshot
		var ts, tag string
		var delta int64
		err := rows.Scan(&sn.Index, &ts, &delta, &tag, &sn.Stage, &sn.TotalInsulin, &sn.LastTempBasal,
			&sn.LastBolus, &sn.BolusActive, &sn.TempBasalActive, &sn.ScheduledBasal, &sn.Raw)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		sn.Time, _ = time.Parse(time.RFC3339Nano, ts)
		sn.Delta = time.Duration(delta)
		sn.Tag = message.Tag(tag)
		out = append(out, sn)
	}
	return out, rows.Err()
}

// #endregion snapshots
