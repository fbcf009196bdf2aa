// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package triggers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Schedule is one recurring trigger definition with run bookkeeping.
type Schedule struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Cron        string         `json:"cron"`
	Description string         `json:"description"`
	SessionID   string         `json:"session_id"`
	Priority    int            `json:"priority"`
	Payload     map[string]any `json:"payload,omitempty"`
	Enabled     bool           `json:"enabled"`
	LastRunAt   int64          `json:"last_run_at"`
	NextRunAt   int64          `json:"next_run_at"`
	TotalRuns   int64          `json:"total_runs"`
	LastError   string         `json:"last_error,omitempty"`
	CreatedAt   int64          `json:"created_at"`
	UpdatedAt   int64          `json:"updated_at"`
}

// Store persists recurring schedules to SQLite. Uses WAL mode so the
// feed can read while the cron source writes.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewStore opens (or creates) the schedule database at dbPath, normally
// <data_dir>/schedules.db.
func NewStore(ctx context.Context, dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA foreign_keys=ON;`,
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return err
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cron_expr TEXT NOT NULL,
		description TEXT NOT NULL,
		session_id TEXT NOT NULL,
		priority INTEGER NOT NULL,
		payload_json TEXT,
		enabled INTEGER NOT NULL DEFAULT 1,
		last_run_at INTEGER DEFAULT 0,
		next_run_at INTEGER DEFAULT 0,
		total_runs INTEGER DEFAULT 0,
		last_error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_next_run ON schedules(next_run_at);
	CREATE INDEX IF NOT EXISTS idx_schedules_name ON schedules(name);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Create persists a new schedule.
func (s *Store) Create(ctx context.Context, sched *Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, err := marshalPayload(sched.Payload)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	if sched.CreatedAt == 0 {
		sched.CreatedAt = now
	}
	sched.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedules (
			id, name, cron_expr, description, session_id, priority,
			payload_json, enabled, last_run_at, next_run_at, total_runs,
			last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.Name, sched.Cron, sched.Description, sched.SessionID,
		sched.Priority, payloadJSON, boolToInt(sched.Enabled), sched.LastRunAt,
		sched.NextRunAt, sched.TotalRuns, sched.LastError, sched.CreatedAt,
		sched.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	return nil
}

// Get retrieves one schedule by id.
func (s *Store) Get(ctx context.Context, id string) (*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	sched, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	return sched, nil
}

// List returns all schedules ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var out []*Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		out = append(out, sched)
	}
	return out, rows.Err()
}

// Update rewrites an existing schedule.
func (s *Store) Update(ctx context.Context, sched *Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, err := marshalPayload(sched.Payload)
	if err != nil {
		return err
	}
	sched.UpdatedAt = time.Now().Unix()

	res, err := s.db.ExecContext(ctx, `
		UPDATE schedules SET
			name = ?, cron_expr = ?, description = ?, session_id = ?,
			priority = ?, payload_json = ?, enabled = ?, last_run_at = ?,
			next_run_at = ?, total_runs = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		sched.Name, sched.Cron, sched.Description, sched.SessionID,
		sched.Priority, payloadJSON, boolToInt(sched.Enabled), sched.LastRunAt,
		sched.NextRunAt, sched.TotalRuns, sched.LastError, sched.UpdatedAt,
		sched.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("schedule not found: %s", sched.ID)
	}
	return nil
}

// Delete removes a schedule.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

// MarkRun records one firing: bumps the run counter and the last/next
// run stamps, and stores the enqueue error if any.
func (s *Store) MarkRun(ctx context.Context, id string, ranAt, nextAt int64, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lastError := ""
	if runErr != nil {
		lastError = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE schedules SET
			last_run_at = ?, next_run_at = ?, total_runs = total_runs + 1,
			last_error = ?, updated_at = ?
		WHERE id = ?`,
		ranAt, nextAt, lastError, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `
	SELECT id, name, cron_expr, description, session_id, priority,
	       payload_json, enabled, last_run_at, next_run_at, total_runs,
	       last_error, created_at, updated_at
	FROM schedules`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*Schedule, error) {
	var (
		sched       Schedule
		payloadJSON sql.NullString
		lastError   sql.NullString
		enabled     int
	)
	err := row.Scan(
		&sched.ID, &sched.Name, &sched.Cron, &sched.Description,
		&sched.SessionID, &sched.Priority, &payloadJSON, &enabled,
		&sched.LastRunAt, &sched.NextRunAt, &sched.TotalRuns,
		&lastError, &sched.CreatedAt, &sched.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sched.Enabled = enabled != 0
	if lastError.Valid {
		sched.LastError = lastError.String
	}
	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &sched.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}
	return &sched, nil
}

func marshalPayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
