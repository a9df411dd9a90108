package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/svcprobe/pkg/domain/types"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DatabaseFile is the run history database name inside the config directory.
const DatabaseFile = "runs.db"

// ErrRunNotFound is returned when a run ID has no stored record.
var ErrRunNotFound = errors.New("run not found")

// RunRepository stores harness run history.
type RunRepository interface {
	Save(rec *RunRecord) error
	Load(id types.RunID) (*RunRecord, error)
	List(limit int) ([]*RunRecord, error)
	Delete(id types.RunID) error
	Close() error
}

// SQLiteRunRepository implements RunRepository on top of SQLite.
type SQLiteRunRepository struct {
	db *sql.DB
}

// NewSQLiteRunRepository opens <configDir>/runs.db, creating the directory
// and schema as needed.
func NewSQLiteRunRepository(configDir string) (*SQLiteRunRepository, error) {
	return NewSQLiteRunRepositoryWithPath(filepath.Join(configDir, DatabaseFile))
}

// NewSQLiteRunRepositoryWithPath creates a repository with a custom database path.
func NewSQLiteRunRepositoryWithPath(dbPath string) (*SQLiteRunRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLiteRunRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteRunRepository) Close() error {
	return r.db.Close()
}

// Save persists a run record, replacing any existing record with the same ID.
func (r *SQLiteRunRepository) Save(rec *RunRecord) error {
	if rec == nil {
		return fmt.Errorf("cannot save nil run record")
	}
	if rec.ID.IsZero() {
		return fmt.Errorf("run ID cannot be empty")
	}

	command, err := json.Marshal(rec.Command)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}

	var phase, errMsg sql.NullString
	if rec.Phase != "" {
		phase = sql.NullString{String: rec.Phase, Valid: true}
	}
	if rec.Error != "" {
		errMsg = sql.NullString{String: rec.Error, Valid: true}
	}

	var statusCode sql.NullInt64
	if rec.StatusCode != 0 {
		statusCode = sql.NullInt64{Int64: int64(rec.StatusCode), Valid: true}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO runs (
			id, started_at, duration_ms, command, ci, status,
			phase, error, status_code, body, output
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			duration_ms = excluded.duration_ms,
			status = excluded.status,
			phase = excluded.phase,
			error = excluded.error,
			status_code = excluded.status_code,
			body = excluded.body,
			output = excluded.output
	`

	_, err = tx.Exec(query,
		rec.ID.String(),
		rec.StartedAt.UTC(),
		rec.Duration.Milliseconds(),
		string(command),
		rec.CI,
		string(rec.Status),
		phase,
		errMsg,
		statusCode,
		rec.Body,
		rec.Output,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const selectRuns = `
	SELECT id, started_at, duration_ms, command, ci, status,
	       phase, error, status_code, body, output
	FROM runs
`

// Load retrieves a run by its ID.
func (r *SQLiteRunRepository) Load(id types.RunID) (*RunRecord, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("run ID cannot be empty")
	}

	rec, err := scanRun(r.db.QueryRow(selectRuns+"WHERE id = ?", id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return rec, nil
}

// List returns the most recent runs first. A limit of zero or less returns
// every run.
func (r *SQLiteRunRepository) List(limit int) ([]*RunRecord, error) {
	query := selectRuns + "ORDER BY started_at DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Delete removes a run from history.
func (r *SQLiteRunRepository) Delete(id types.RunID) error {
	if id.IsZero() {
		return fmt.Errorf("run ID cannot be empty")
	}

	result, err := r.db.Exec("DELETE FROM runs WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		rec        RunRecord
		id         string
		durationMS int64
		command    string
		status     string
		phase      sql.NullString
		errMsg     sql.NullString
		statusCode sql.NullInt64
	)

	err := row.Scan(
		&id,
		&rec.StartedAt,
		&durationMS,
		&command,
		&rec.CI,
		&status,
		&phase,
		&errMsg,
		&statusCode,
		&rec.Body,
		&rec.Output,
	)
	if err != nil {
		return nil, err
	}

	rec.ID = types.RunID(id)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.Status = RunStatus(status)
	rec.Phase = phase.String
	rec.Error = errMsg.String
	rec.StatusCode = int(statusCode.Int64)

	if err := json.Unmarshal([]byte(command), &rec.Command); err != nil {
		return nil, fmt.Errorf("failed to decode command: %w", err)
	}

	return &rec, nil
}
