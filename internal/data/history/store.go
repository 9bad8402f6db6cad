package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveCycle stores a cycle and its unit rows. A cycle without an ID gets a
// fresh UUID.
func (s *Store) SaveCycle(cycle Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cycle.ID == "" {
		cycle.ID = uuid.NewString()
	}
	if cycle.Timestamp.IsZero() {
		cycle.Timestamp = time.Now().UTC()
	}

	return s.withRetry("save cycle", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
INSERT INTO cycles (
  id, ts_utc, strategy, added_count, updated_count, same_count, deleted_count,
  diagnostic_count, duration_ns, fallback
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  ts_utc=excluded.ts_utc,
  strategy=excluded.strategy,
  added_count=excluded.added_count,
  updated_count=excluded.updated_count,
  same_count=excluded.same_count,
  deleted_count=excluded.deleted_count,
  diagnostic_count=excluded.diagnostic_count,
  duration_ns=excluded.duration_ns,
  fallback=excluded.fallback
`,
			cycle.ID,
			cycle.Timestamp.UTC().Format(time.RFC3339Nano),
			cycle.Strategy,
			cycle.Added,
			cycle.Updated,
			cycle.Same,
			cycle.Deleted,
			cycle.Diagnostics,
			int64(cycle.Duration),
			boolInt(cycle.Fallback),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`DELETE FROM cycle_units WHERE cycle_id = ?`, cycle.ID); err != nil {
			_ = tx.Rollback()
			return err
		}
		for i, u := range cycle.Units {
			if _, err := tx.Exec(
				`INSERT INTO cycle_units (cycle_id, position, path, state, remote, diagnostic_count) VALUES (?, ?, ?, ?, ?, ?)`,
				cycle.ID, i, u.Path, u.State, boolInt(u.Remote), u.Diagnostics,
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// LoadCycles returns up to limit cycles, newest first. A limit of zero or
// less loads every cycle.
func (s *Store) LoadCycles(limit int) ([]Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT
  id, ts_utc, strategy, added_count, updated_count, same_count, deleted_count,
  diagnostic_count, duration_ns, fallback
FROM cycles
ORDER BY ts_utc DESC, id ASC
`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("load cycles", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}

	cycles := make([]Cycle, 0)
	for rows.Next() {
		var (
			tsRaw    string
			duration int64
			fallback int
			cycle    Cycle
		)
		if err := rows.Scan(
			&cycle.ID,
			&tsRaw,
			&cycle.Strategy,
			&cycle.Added,
			&cycle.Updated,
			&cycle.Same,
			&cycle.Deleted,
			&cycle.Diagnostics,
			&duration,
			&fallback,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cycle row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse cycle timestamp %q: %w", tsRaw, err)
		}
		cycle.Timestamp = ts.UTC()
		cycle.Duration = time.Duration(duration)
		cycle.Fallback = fallback != 0
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate cycle rows: %w", err)
	}
	rows.Close()

	for i := range cycles {
		units, err := s.loadUnits(cycles[i].ID)
		if err != nil {
			return nil, err
		}
		cycles[i].Units = units
	}
	return cycles, nil
}

func (s *Store) loadUnits(cycleID string) ([]UnitRecord, error) {
	rows, err := s.db.Query(
		`SELECT path, state, remote, diagnostic_count FROM cycle_units WHERE cycle_id = ? ORDER BY position ASC`,
		cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("load cycle units: %w", err)
	}
	defer rows.Close()

	var units []UnitRecord
	for rows.Next() {
		var (
			u      UnitRecord
			remote int
		)
		if err := rows.Scan(&u.Path, &u.State, &remote, &u.Diagnostics); err != nil {
			return nil, fmt.Errorf("scan cycle unit row: %w", err)
		}
		u.Remote = remote != 0
		units = append(units, u)
	}
	return units, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
