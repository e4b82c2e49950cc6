package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/diodescout/internal/ingest"
	"github.com/banshee-data/diodescout/internal/measurement"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("not found")

// Session is an archived acquisition run.
type Session struct {
	ID          string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	Source      string    `json:"source"`
	PortOptions string    `json:"port_options,omitempty"`
	SeriesCount int       `json:"series_count"`
}

// SeriesRecord is an archived completed series.
type SeriesRecord struct {
	ID          string             `json:"series_id"`
	SessionID   string             `json:"session_id"`
	Seq         int                `json:"seq"`
	CompletedAt time.Time          `json:"completed_at"`
	Series      measurement.Series `json:"-"`
}

// RecordSession inserts s. Recording the same session twice is a no-op.
func (db *DB) RecordSession(ctx context.Context, s Session) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, started_at, source, port_options)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO NOTHING`,
		s.ID, s.StartedAt.UnixNano(), s.Source, s.PortOptions,
	)
	if err != nil {
		return fmt.Errorf("record session %s: %w", s.ID, err)
	}
	return nil
}

// RecordSeries stores r and its points in one transaction.
func (db *DB) RecordSeries(ctx context.Context, r SeriesRecord) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO series (series_id, session_id, seq, completed_at, point_count, max_voltage, max_current)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Seq, r.CompletedAt.UnixNano(),
		r.Series.Len(), r.Series.MaxVoltage(), r.Series.MaxCurrent(),
	)
	if err != nil {
		return fmt.Errorf("record series %d: %w", r.Seq, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO points (series_id, idx, voltage, current) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare points: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < r.Series.Len(); i++ {
		p := r.Series.At(i)
		if _, err = stmt.ExecContext(ctx, r.ID, i, p.Voltage, p.Current); err != nil {
			return fmt.Errorf("record point %d of series %d: %w", i, r.Seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit series %d: %w", r.Seq, err)
	}
	return nil
}

const sessionColumns = `
	SELECT s.session_id, s.started_at, s.source, s.port_options,
	       (SELECT COUNT(*) FROM series r WHERE r.session_id = s.session_id)
	FROM sessions s`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	var started int64
	if err := row.Scan(&s.ID, &started, &s.Source, &s.PortOptions, &s.SeriesCount); err != nil {
		return Session{}, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	return s, nil
}

// Sessions lists archived sessions, newest first.
func (db *DB) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := db.QueryContext(ctx, sessionColumns+` ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// LatestSession returns the most recently started session that has at least
// one series.
func (db *DB) LatestSession(ctx context.Context) (Session, error) {
	row := db.QueryRowContext(ctx, sessionColumns+`
		WHERE EXISTS (SELECT 1 FROM series r WHERE r.session_id = s.session_id)
		ORDER BY s.started_at DESC LIMIT 1`)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("latest session: %w", err)
	}
	return s, nil
}

// GetSession returns the session with the given id.
func (db *DB) GetSession(ctx context.Context, id string) (Session, error) {
	s, err := scanSession(db.QueryRowContext(ctx, sessionColumns+` WHERE s.session_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return s, nil
}

// SeriesForSession returns the session's series in completion order with
// their points.
func (db *DB) SeriesForSession(ctx context.Context, sessionID string) ([]SeriesRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.series_id, r.seq, r.completed_at, p.voltage, p.current
		FROM series r
		JOIN points p ON p.series_id = r.series_id
		WHERE r.session_id = ?
		ORDER BY r.seq, p.idx`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query series for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var (
		out    []SeriesRecord
		points []measurement.Point
		cur    *SeriesRecord
	)
	flush := func() {
		if cur != nil {
			cur.Series = measurement.NewSeries(points...)
			out = append(out, *cur)
		}
		points = nil
	}
	for rows.Next() {
		var (
			id        string
			seq       int
			completed int64
			p         measurement.Point
		)
		if err := rows.Scan(&id, &seq, &completed, &p.Voltage, &p.Current); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		if cur == nil || cur.ID != id {
			flush()
			cur = &SeriesRecord{
				ID:          id,
				SessionID:   sessionID,
				Seq:         seq,
				CompletedAt: time.Unix(0, completed).UTC(),
			}
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}

// LoadInto appends the session's series to store and returns how many were
// added.
func (db *DB) LoadInto(ctx context.Context, sessionID string, store *measurement.Store) (int, error) {
	records, err := db.SeriesForSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range records {
		if store.Append(r.Series) {
			n++
		}
	}
	return n, nil
}

// Archiver records every completed series of an ingest session. The session
// row is written on first use.
type Archiver struct {
	db          *DB
	source      string
	portOptions string
	recorded    map[string]bool
}

// NewArchiver returns a completion handler archiving into db.
func NewArchiver(db *DB, source, portOptions string) *Archiver {
	return &Archiver{db: db, source: source, portOptions: portOptions, recorded: make(map[string]bool)}
}

// Begin records the session row up front so its start time is exact. It
// must be called before the session starts feeding.
func (a *Archiver) Begin(ctx context.Context, s *ingest.Session) error {
	sid := s.ID.String()
	err := a.db.RecordSession(ctx, Session{
		ID:          sid,
		StartedAt:   s.StartedAt,
		Source:      a.source,
		PortOptions: a.portOptions,
	})
	if err != nil {
		return err
	}
	a.recorded[sid] = true
	return nil
}

// HandleCompleted implements ingest.CompletionHandler.
func (a *Archiver) HandleCompleted(ctx context.Context, c ingest.Completed) error {
	sid := c.SessionID.String()
	if !a.recorded[sid] {
		err := a.db.RecordSession(ctx, Session{
			ID:          sid,
			StartedAt:   c.CompletedAt,
			Source:      a.source,
			PortOptions: a.portOptions,
		})
		if err != nil {
			return err
		}
		a.recorded[sid] = true
	}
	return a.db.RecordSeries(ctx, SeriesRecord{
		ID:          c.SeriesID.String(),
		SessionID:   sid,
		Seq:         c.Seq,
		CompletedAt: c.CompletedAt,
		Series:      c.Series,
	})
}
