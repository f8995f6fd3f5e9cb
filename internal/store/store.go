// Package store persists shift records in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"shiftcal/internal/model"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Store implements the importer's ShiftStore and the exporter's record
// source over database/sql.
type Store struct {
	db           *sql.DB
	driver       string
	queryTimeout time.Duration
}

// Open connects, pings and migrates. driver is DriverSQLite or DriverPostgres.
func Open(ctx context.Context, driver, dsn string, queryTimeout time.Duration) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// A single writer avoids "database is locked" under concurrent imports.
		db.SetMaxOpenConns(1)
	}

	s := New(db, driver, queryTimeout)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// New wraps an existing pool without pinging or migrating.
func New(db *sql.DB, driver string, queryTimeout time.Duration) *Store {
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &Store{db: db, driver: driver, queryTimeout: queryTimeout}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites '?' placeholders to '$n' for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) InsertShift(ctx context.Context, rec model.ShiftRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO shift_records (id, team, date, start_time, end_time, code, location, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID,
		rec.Team,
		rec.Date.String(),
		rec.StartTime.String(),
		rec.EndTime.String(),
		rec.Code,
		rec.Location,
		rec.Notes,
	)
	return err
}

func (s *Store) HasShift(ctx context.Context, team string, date model.Date, start, end model.Clock) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM shift_records
		WHERE team = ? AND date = ? AND start_time = ? AND end_time = ?`),
		team, date.String(), start.String(), end.String(),
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListShifts returns team's records with from <= date <= to, ordered by
// date and start time.
func (s *Store) ListShifts(ctx context.Context, team string, from, to model.Date) ([]model.ShiftRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, team, date, start_time, end_time, code, location, notes
		FROM shift_records
		WHERE team = ? AND date BETWEEN ? AND ?
		ORDER BY date, start_time`),
		team, from.String(), to.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ShiftRecord
	for rows.Next() {
		var (
			rec                       model.ShiftRecord
			dateStr, startStr, endStr string
		)
		if err := rows.Scan(&rec.ID, &rec.Team, &dateStr, &startStr, &endStr, &rec.Code, &rec.Location, &rec.Notes); err != nil {
			return nil, err
		}
		if rec.Date, err = model.ParseDate(dateStr); err != nil {
			return nil, err
		}
		if rec.StartTime, err = model.ParseClock(startStr); err != nil {
			return nil, err
		}
		if rec.EndTime, err = model.ParseClock(endStr); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteShifts removes team's records with from <= date <= to and returns
// the number of rows deleted.
func (s *Store) DeleteShifts(ctx context.Context, team string, from, to model.Date) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM shift_records WHERE team = ? AND date BETWEEN ? AND ?`),
		team, from.String(), to.String(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
