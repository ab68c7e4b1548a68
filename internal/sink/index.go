package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/trawlhq/trawl/internal/model"
)

// indexFileName is the SQLite index file within the data directory.
const indexFileName = "trawl.db"

// Index is the SQLite metadata index over delivered artifacts and
// finished operations.
//
// Design decision: One database file per data directory rather than
// per operation. Delivery dedup is by content hash across operations,
// so the UNIQUE constraint has to span them, and the history command
// wants all runs in one place.
type Index struct {
	db     *sql.DB
	dbPath string
}

// Options configures Index behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Recommended: delivery
	// writes and history reads overlap.
	EnableWAL bool
}

// DefaultOptions returns the default index options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// OpenIndex opens or creates the index in dbDir.
func OpenIndex(dbDir string, opts Options) (*Index, error) {
	dbPath := filepath.Join(dbDir, indexFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("index not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check index path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw refuses to create
	// new files, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	// SQLite supports one writer; more connections just queue on the
	// file lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	idx := &Index{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // Open failed, nothing to save
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := idx.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // Open failed, nothing to save
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return idx, nil
}

// Close closes the index.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// createTables creates the schema if it doesn't exist.
func (idx *Index) createTables() error {
	schema := `
	-- Artifacts are delivered evidence units, unique by content hash
	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL UNIQUE,
		uri TEXT NOT NULL,
		title TEXT,
		content_type TEXT,
		size INTEGER NOT NULL,
		status_code INTEGER,
		attempt_id TEXT NOT NULL,
		fetched_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_uri ON artifacts(uri);
	CREATE INDEX IF NOT EXISTS idx_artifacts_fetched ON artifacts(fetched_at);

	-- Operations persist one summary row per finished run
	CREATE TABLE IF NOT EXISTS operations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id TEXT NOT NULL UNIQUE,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		seeds INTEGER NOT NULL,
		delivered INTEGER NOT NULL,
		duplicates INTEGER NOT NULL,
		exhausted INTEGER NOT NULL,
		cancelled INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		failures_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_operations_started ON operations(started_at);
	`

	_, err := idx.db.ExecContext(context.Background(), schema)
	return err
}

// InsertArtifact records artifact metadata. Returns false when the
// hash is already indexed, in which case nothing is written.
func (idx *Index) InsertArtifact(ctx context.Context, a *model.Artifact) (bool, error) {
	result, err := idx.db.ExecContext(ctx, `
		INSERT INTO artifacts (hash, uri, title, content_type, size, status_code, attempt_id, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING`,
		a.Hash, a.Target.URI, a.Title, a.ContentType, a.Size, a.StatusCode, a.AttemptID,
		a.FetchedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert artifact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert result: %w", err)
	}
	return rows > 0, nil
}

// ArtifactRecord is one indexed artifact row.
type ArtifactRecord struct {
	ID          int64
	Hash        string
	URI         string
	Title       string
	ContentType string
	Size        int64
	StatusCode  int
	AttemptID   string
	FetchedAt   time.Time
}

// GetArtifact looks up an artifact by hash. Returns sql.ErrNoRows when
// absent.
func (idx *Index) GetArtifact(ctx context.Context, hash string) (*ArtifactRecord, error) {
	row := idx.db.QueryRowContext(ctx, `
		SELECT id, hash, uri, title, content_type, size, status_code, attempt_id, fetched_at
		FROM artifacts WHERE hash = ?`, hash)
	return scanArtifact(row)
}

// ListArtifacts returns up to limit artifacts, newest first.
func (idx *Index) ListArtifacts(ctx context.Context, limit int) ([]*ArtifactRecord, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, hash, uri, title, content_type, size, status_code, attempt_id, fetched_at
		FROM artifacts ORDER BY fetched_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var records []*ArtifactRecord
	for rows.Next() {
		rec, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanArtifact.
type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(s scanner) (*ArtifactRecord, error) {
	var rec ArtifactRecord
	var title, contentType sql.NullString
	var fetchedAt string
	if err := s.Scan(&rec.ID, &rec.Hash, &rec.URI, &title, &contentType,
		&rec.Size, &rec.StatusCode, &rec.AttemptID, &fetchedAt); err != nil {
		return nil, err
	}
	rec.Title = title.String
	rec.ContentType = contentType.String
	rec.FetchedAt = parseTimestamp(fetchedAt)
	return &rec, nil
}

// OperationRecord is one persisted run summary.
type OperationRecord struct {
	ID          int64
	OperationID string
	StartedAt   time.Time
	FinishedAt  time.Time
	Seeds       int
	Delivered   int
	Duplicates  int
	Exhausted   int
	Cancelled   int
	Attempts    int
	Failures    []model.TargetFailure
}

// InsertOperation persists a finished run's summary.
func (idx *Index) InsertOperation(ctx context.Context, s *model.Summary) error {
	failuresJSON, err := json.Marshal(s.Failures)
	if err != nil {
		return fmt.Errorf("failed to serialize failures: %w", err)
	}

	_, err = idx.db.ExecContext(ctx, `
		INSERT INTO operations
			(operation_id, started_at, finished_at, seeds, delivered, duplicates, exhausted, cancelled, attempts, failures_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.OperationID,
		s.StartedAt.UTC().Format(time.RFC3339Nano),
		s.FinishedAt.UTC().Format(time.RFC3339Nano),
		s.Seeds, s.Delivered, s.Duplicates, s.Exhausted, s.Cancelled, s.Attempts,
		string(failuresJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	return nil
}

// ListOperations returns up to limit operations, newest first.
func (idx *Index) ListOperations(ctx context.Context, limit int) ([]*OperationRecord, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, operation_id, started_at, finished_at, seeds, delivered, duplicates, exhausted, cancelled, attempts, failures_json
		FROM operations ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	var records []*OperationRecord
	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetOperation looks up one operation by its operation ID. Returns
// sql.ErrNoRows when absent.
func (idx *Index) GetOperation(ctx context.Context, operationID string) (*OperationRecord, error) {
	row := idx.db.QueryRowContext(ctx, `
		SELECT id, operation_id, started_at, finished_at, seeds, delivered, duplicates, exhausted, cancelled, attempts, failures_json
		FROM operations WHERE operation_id = ?`, operationID)
	return scanOperation(row)
}

func scanOperation(s scanner) (*OperationRecord, error) {
	var rec OperationRecord
	var startedAt, finishedAt string
	var failuresJSON sql.NullString
	if err := s.Scan(&rec.ID, &rec.OperationID, &startedAt, &finishedAt,
		&rec.Seeds, &rec.Delivered, &rec.Duplicates, &rec.Exhausted,
		&rec.Cancelled, &rec.Attempts, &failuresJSON); err != nil {
		return nil, err
	}
	rec.StartedAt = parseTimestamp(startedAt)
	rec.FinishedAt = parseTimestamp(finishedAt)
	if failuresJSON.Valid && failuresJSON.String != "" {
		if err := json.Unmarshal([]byte(failuresJSON.String), &rec.Failures); err != nil {
			return nil, fmt.Errorf("failed to parse failures: %w", err)
		}
	}
	return &rec, nil
}

// parseTimestamp handles the formats SQLite hands back depending on
// how the value was written.
func parseTimestamp(value string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, format := range formats {
		if ts, err := time.Parse(format, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
