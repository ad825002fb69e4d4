// Package database stores the run history in SQLite.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements cdl.RunHistory using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ cdl.RunHistory = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens the database at path and migrates it to the latest
// schema. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Path returns the database location.
func (s *SQLiteDatabase) Path() string { return s.path }

func (s *SQLiteDatabase) CreateRun(operation, parameters string, startedAt time.Time) (*cdl.Run, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (operation, parameters, started_at, status) VALUES (?, ?, ?, ?)`,
		operation, parameters, startedAt.UnixNano(), cdl.RunRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	return &cdl.Run{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt,
		Status:     cdl.RunRunning,
	}, nil
}

func (s *SQLiteDatabase) FinishRun(id int64, status string, items int, finishedAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, items = ?, finished_at = ? WHERE id = ?`,
		status, items, finishedAt.UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("run %d not found", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListRuns(limit int) ([]*cdl.Run, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, started_at, finished_at, status, items
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*cdl.Run
	for rows.Next() {
		var (
			r        cdl.Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Operation, &r.Parameters, &started, &finished, &r.Status, &r.Items); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if finished.Valid {
			t := time.Unix(0, finished.Int64).UTC()
			r.FinishedAt = &t
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}
