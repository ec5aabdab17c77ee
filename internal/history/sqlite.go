package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/privacycheck/privacycheck/internal/report"
)

// SQLiteStore keeps the history in a SQLite database using modernc.org/sqlite
// (pure Go, no CGO). Each report is stored as a JSON document alongside its
// position in the list.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates a SQLite database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS report_history (
		position   INTEGER PRIMARY KEY,
		id         TEXT NOT NULL UNIQUE,
		url        TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		created_at TEXT NOT NULL,
		report     TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the stored history, newest first.
func (s *SQLiteStore) Get(ctx context.Context) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM report_history ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []report.Report{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var r report.Report
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("decode stored report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Set replaces the stored history in one transaction.
func (s *SQLiteStore) Set(ctx context.Context, reports []report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_history`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO report_history (position, id, url, risk_level, created_at, report)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range Trim(reports) {
		doc, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode report %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, r.ID, r.URL, r.OverallRiskLevel.String(),
			r.Timestamp.UTC().Format(time.RFC3339Nano), string(doc)); err != nil {
			return fmt.Errorf("insert report %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Clear deletes every stored report.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM report_history`)
	return err
}
