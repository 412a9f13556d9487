package logging

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// #region log-run
// LogRun writes an analysis run to the analysis_log table and returns its
// run ID, generating one when entry.RunID is empty.
func LogRun(db *sql.DB, entry RunEntry) (string, error) {
	if entry.RunID == "" {
		entry.RunID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO analysis_log (run_id, session_id, source, completed, incomplete, skipped, failures,
		 actions_json, pairs_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		nullIfEmpty(entry.SessionID),
		entry.Source,
		entry.Completed,
		entry.Incomplete,
		entry.Skipped,
		entry.Failures,
		nullIfEmpty(entry.ActionsJSON),
		nullIfEmpty(entry.PairsJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("log run: %w", err)
	}
	return entry.RunID, nil
}
// #endregion log-run

// #region read-runs
const runColumns = `run_id, session_id, source, completed, incomplete, skipped, failures,
	actions_json, pairs_json, created_at`

// ListRuns returns the most recent runs, newest first.
func ListRuns(db *sql.DB, limit int) ([]RunEntry, error) {
	rows, err := db.Query(
		`SELECT `+runColumns+` FROM analysis_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		e, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetRun returns a single run.
func GetRun(db *sql.DB, runID string) (RunEntry, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM analysis_log WHERE run_id = ?`, runID)
	e, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunEntry{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return e, err
}

// LatestRun returns the newest run of a stored session.
func LatestRun(db *sql.DB, sessionID string) (RunEntry, error) {
	row := db.QueryRow(
		`SELECT `+runColumns+` FROM analysis_log WHERE session_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, sessionID,
	)
	e, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunEntry{}, fmt.Errorf("%w: no run for session %s", ErrRunNotFound, sessionID)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (RunEntry, error) {
	var e RunEntry
	var session, actions, pairs sql.NullString
	var created string
	err := s.Scan(&e.RunID, &session, &e.Source, &e.Completed, &e.Incomplete, &e.Skipped, &e.Failures,
		&actions, &pairs, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunEntry{}, err
		}
		return RunEntry{}, fmt.Errorf("scan run: %w", err)
	}
	e.SessionID = session.String
	e.ActionsJSON = actions.String
	e.PairsJSON = pairs.String
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return e, nil
}
// #endregion read-runs

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
