package metadatastore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/models"
)

// ErrRunNotFound is returned by GetRun for an unknown ID
var ErrRunNotFound = errors.New("training run not found")

// SQLiteStore provides SQLite-based persistence for training runs
type SQLiteStore struct {
	db *sql.DB
}

var _ RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the run registry at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite applies each _pragma on every new connection
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized by SQLite; a single trainer needs few connections
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retryOnBusy retries a database operation if it fails due to SQLITE_BUSY.
// This is a safety net on top of the busy_timeout pragma.
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") {
			// Exponential backoff: 10ms, 20ms, 40ms, 80ms, 160ms
			backoff := time.Duration(10*(1<<uint(i))) * time.Millisecond
			time.Sleep(backoff)
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

// initSchema creates the database schema if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS training_runs (
		id TEXT PRIMARY KEY,
		model_type TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		data_path TEXT NOT NULL,
		data_hash TEXT NOT NULL,
		accuracy REAL,
		recall REAL,
		f1 REAL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_training_runs_started_at ON training_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_training_runs_data_hash ON training_runs(data_hash);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts or replaces a training run
func (s *SQLiteStore) SaveRun(run *models.TrainingRun) error {
	if run.ID == "" {
		return fmt.Errorf("training run has no id")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal training run: %w", err)
	}

	var finished sql.NullInt64
	if !run.FinishedAt.IsZero() {
		finished = sql.NullInt64{Int64: run.FinishedAt.UnixNano(), Valid: true}
	}

	query := `
		INSERT OR REPLACE INTO training_runs
			(id, model_type, status, started_at, finished_at, data_path, data_hash, accuracy, recall, f1, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			run.ID,
			string(run.ModelType),
			string(run.Status),
			run.StartedAt.UnixNano(),
			finished,
			run.DataPath,
			run.DataHash,
			run.Metrics.Accuracy,
			run.Metrics.Recall,
			run.Metrics.F1,
			string(data),
		)
		return err
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to save training run: %w", err)
	}

	return nil
}

// GetRun retrieves a training run by ID
func (s *SQLiteStore) GetRun(id string) (*models.TrainingRun, error) {
	var data string
	query := `SELECT data FROM training_runs WHERE id = ?`

	err := s.db.QueryRow(query, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}

	var run models.TrainingRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal training run: %w", err)
	}

	return &run, nil
}

// ListRuns lists all training runs, newest first
func (s *SQLiteStore) ListRuns() ([]*models.TrainingRun, error) {
	return s.queryRuns(`SELECT data FROM training_runs ORDER BY started_at DESC, rowid DESC`)
}

// ListRunsByDataHash lists the runs trained on the dataset with the given hash
func (s *SQLiteStore) ListRunsByDataHash(hash string) ([]*models.TrainingRun, error) {
	return s.queryRuns(`SELECT data FROM training_runs WHERE data_hash = ? ORDER BY started_at DESC, rowid DESC`, hash)
}

func (s *SQLiteStore) queryRuns(query string, args ...any) ([]*models.TrainingRun, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*models.TrainingRun, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan training run: %w", err)
		}

		var run models.TrainingRun
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return nil, fmt.Errorf("failed to unmarshal training run: %w", err)
		}

		runs = append(runs, &run)
	}

	return runs, rows.Err()
}
