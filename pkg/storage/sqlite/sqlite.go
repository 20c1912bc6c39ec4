// Package sqlite provides a SQLite-backed storage driver for deployment
// records, suitable for a single-operator host. Writes use immediate
// transactions so the per-agent conflict check and the insert commit as
// one unit.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arcanumlabs/canary/pkg/deployment"
	"github.com/arcanumlabs/canary/pkg/storage"
)

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		// Take the write lock at BEGIN so concurrent creates for the
		// same agent serialize on the conflict check.
		dsn += "?_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent readers during writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	d := &Driver{db: db}

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}

// migrate creates the necessary tables if they don't exist.
func (d *Driver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		agent_name TEXT NOT NULL,
		state TEXT NOT NULL,
		canary_config BLOB NOT NULL,
		traffic_split_percent INTEGER NOT NULL,
		min_sample_size INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		decision_log TEXT NOT NULL DEFAULT '[]',
		last_evaluated_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_agent_name ON deployments(agent_name);
	CREATE INDEX IF NOT EXISTS idx_deployments_state ON deployments(state);

	CREATE TABLE IF NOT EXISTS baselines (
		agent_name TEXT PRIMARY KEY,
		config BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := d.db.Exec(schema)
	return err
}

// terminalStates is inlined into queries that exclude finished deployments.
const terminalStates = `('PROMOTED', 'ROLLED_BACK', 'EXPIRED')`

// Create inserts a record. The conflict check and insert run inside a
// single immediate transaction, which takes the write lock up front so
// two concurrent creates for the same agent serialize.
func (d *Driver) Create(ctx context.Context, rec *deployment.Record) error {
	if rec == nil {
		return errors.New("cannot store nil record")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM deployments WHERE agent_name = ? AND state NOT IN `+terminalStates+` LIMIT 1`,
		rec.AgentName,
	).Scan(&existingID)
	if err == nil {
		return storage.ConflictError{AgentName: rec.AgentName, ExistingID: existingID}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for live deployment: %w", err)
	}

	logJSON, err := json.Marshal(rec.DecisionLog)
	if err != nil {
		return fmt.Errorf("marshaling decision log: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deployments (
			id, agent_name, state, canary_config, traffic_split_percent,
			min_sample_size, created_at, expires_at, decision_log, last_evaluated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.AgentName,
		string(rec.State),
		rec.CanaryConfig,
		rec.TrafficSplitPercent,
		rec.MinSampleSize,
		formatTime(rec.CreatedAt),
		formatTime(rec.ExpiresAt),
		string(logJSON),
		nullTime(rec.LastEvaluatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting deployment: %w", err)
	}

	return tx.Commit()
}

// Get retrieves a record by id.
func (d *Driver) Get(ctx context.Context, id string) (*deployment.Record, error) {
	row := d.db.QueryRowContext(ctx, selectColumns+` FROM deployments WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}

	return rec, err
}

// Update applies mutate to the record inside an immediate transaction.
func (d *Driver) Update(ctx context.Context, id string, mutate func(*deployment.Record) error) (*deployment.Record, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectColumns+` FROM deployments WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	if err := mutate(rec); err != nil {
		return nil, err
	}

	logJSON, err := json.Marshal(rec.DecisionLog)
	if err != nil {
		return nil, fmt.Errorf("marshaling decision log: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE deployments SET
			state = ?, canary_config = ?, traffic_split_percent = ?,
			decision_log = ?, last_evaluated_at = ?
		WHERE id = ?`,
		string(rec.State),
		rec.CanaryConfig,
		rec.TrafficSplitPercent,
		string(logJSON),
		nullTime(rec.LastEvaluatedAt),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating deployment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}

	return rec, nil
}

// List returns matching records, newest first.
func (d *Driver) List(ctx context.Context, filter storage.Filter) ([]*deployment.Record, error) {
	query := selectColumns + ` FROM deployments`
	var clauses []string
	var args []any

	if filter.State != "" {
		clauses = append(clauses, `state = ?`)
		args = append(args, string(filter.State))
	}
	if filter.AgentName != "" {
		clauses = append(clauses, `agent_name = ?`)
		args = append(args, filter.AgentName)
	}

	for i, clause := range clauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deployments: %w", err)
	}
	defer rows.Close()

	var out []*deployment.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

// ActiveByAgent returns the agent's ACTIVE record.
func (d *Driver) ActiveByAgent(ctx context.Context, agentName string) (*deployment.Record, error) {
	row := d.db.QueryRowContext(ctx,
		selectColumns+` FROM deployments WHERE agent_name = ? AND state = ? LIMIT 1`,
		agentName, string(deployment.StateActive),
	)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{}
	}

	return rec, err
}

// SetBaseline persists the agent's baseline config.
func (d *Driver) SetBaseline(ctx context.Context, agentName string, config []byte) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO baselines (agent_name, config, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(agent_name) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		agentName, config, formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("upserting baseline: %w", err)
	}

	return nil
}

// GetBaseline returns the agent's baseline config.
func (d *Driver) GetBaseline(ctx context.Context, agentName string) ([]byte, error) {
	var config []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT config FROM baselines WHERE agent_name = ?`, agentName,
	).Scan(&config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{}
	}
	if err != nil {
		return nil, fmt.Errorf("querying baseline: %w", err)
	}

	return config, nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

const selectColumns = `
	SELECT id, agent_name, state, canary_config, traffic_split_percent,
	       min_sample_size, created_at, expires_at, decision_log, last_evaluated_at`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*deployment.Record, error) {
	var rec deployment.Record
	var state, createdAt, expiresAt, logJSON string
	var lastEvaluatedAt sql.NullString

	err := s.Scan(
		&rec.ID,
		&rec.AgentName,
		&state,
		&rec.CanaryConfig,
		&rec.TrafficSplitPercent,
		&rec.MinSampleSize,
		&createdAt,
		&expiresAt,
		&logJSON,
		&lastEvaluatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.State = deployment.State(state)

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if lastEvaluatedAt.Valid {
		if rec.LastEvaluatedAt, err = parseTime(lastEvaluatedAt.String); err != nil {
			return nil, fmt.Errorf("parsing last_evaluated_at: %w", err)
		}
	}

	if err := json.Unmarshal([]byte(logJSON), &rec.DecisionLog); err != nil {
		return nil, fmt.Errorf("unmarshaling decision log: %w", err)
	}

	return &rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}
