// Package recorder stores per-tick control samples in SQLite for
// after-the-fact tuning.
package recorder

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Sample is one control tick.
type Sample struct {
	Tick          int64
	Time          time.Time
	State         string
	Visible       bool
	Sample        float64
	DistanceError float64
	PositionError float64
	Speed         float64
	TurnRate      float64
	Left          float64
	Right         float64
}

// Session describes one recorded control run.
type Session struct {
	ID        string
	Mode      string
	StartedAt time.Time
	Notes     string
	Ticks     int64
}

// Recorder writes samples for a single active session.
type Recorder struct {
	db      *sql.DB
	session string
}

// Open opens (and if necessary creates) the database at path.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}
	// one writer; sqlite serialises anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init recorder schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// StartSession creates a new session and makes it the target of Record.
func (r *Recorder) StartSession(mode, notes string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(
		`INSERT INTO sessions (session_id, mode, started_at, notes) VALUES (?, ?, ?, ?)`,
		id, mode, time.Now().UnixNano(), notes,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	r.session = id
	return id, nil
}

// SessionID returns the active session, or "" before StartSession.
func (r *Recorder) SessionID() string {
	return r.session
}

// Record stores one sample in the active session.
func (r *Recorder) Record(s Sample) error {
	return r.RecordBatch([]Sample{s})
}

// RecordBatch stores samples in the active session inside one transaction,
// so a batch costs a single commit.
func (r *Recorder) RecordBatch(samples []Sample) error {
	if r.session == "" {
		return fmt.Errorf("record: no active session")
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO ticks (session_id, tick, unix_nanos, state, visible, sample,
			distance_error, position_error, speed, turn_rate, left_cmd, right_cmd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		_, err := stmt.Exec(
			r.session, s.Tick, s.Time.UnixNano(), s.State, s.Visible, s.Sample,
			s.DistanceError, s.PositionError, s.Speed, s.TurnRate, s.Left, s.Right,
		)
		if err != nil {
			return fmt.Errorf("insert tick %d: %w", s.Tick, err)
		}
	}
	return tx.Commit()
}

// Sessions lists recorded sessions, newest first.
func (r *Recorder) Sessions() ([]Session, error) {
	rows, err := r.db.Query(`
		SELECT s.session_id, s.mode, s.started_at, s.notes, COUNT(t.tick)
		FROM sessions s LEFT JOIN ticks t ON t.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var started int64
		if err := rows.Scan(&s.ID, &s.Mode, &started, &s.Notes, &s.Ticks); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(0, started)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Samples returns every sample of a session in tick order.
func (r *Recorder) Samples(sessionID string) ([]Sample, error) {
	rows, err := r.db.Query(`
		SELECT tick, unix_nanos, state, visible, sample, distance_error, position_error,
			speed, turn_rate, left_cmd, right_cmd
		FROM ticks WHERE session_id = ? ORDER BY tick`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var s Sample
		var nanos int64
		if err := rows.Scan(&s.Tick, &nanos, &s.State, &s.Visible, &s.Sample,
			&s.DistanceError, &s.PositionError, &s.Speed, &s.TurnRate, &s.Left, &s.Right); err != nil {
			return nil, err
		}
		s.Time = time.Unix(0, nanos)
		out = append(out, s)
	}
	return out, rows.Err()
}
