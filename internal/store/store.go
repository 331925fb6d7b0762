// Package store provides SQLite-backed persistence for SignalDesk.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store provides access to the SignalDesk SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Open with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time. A single connection also
	// serialises every read-modify-write transaction below.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		source_provider_id TEXT,
		signal_type TEXT NOT NULL,
		priority_tier TEXT NOT NULL,
		priority_score REAL NOT NULL,
		payload TEXT,
		affected_entities TEXT,
		recommended_providers TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS provider_notifications (
		id TEXT PRIMARY KEY,
		signal_id TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at DATETIME NOT NULL,
		delivered_at DATETIME,
		claimed_until DATETIME,
		FOREIGN KEY (signal_id) REFERENCES signals(id)
	);

	CREATE TABLE IF NOT EXISTS escalations (
		id TEXT PRIMARY KEY,
		issue TEXT NOT NULL,
		severity TEXT NOT NULL,
		affected_stakeholders TEXT,
		escalation_path TEXT NOT NULL,
		activated_teams TEXT,
		decision_authority TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS escalation_notifications (
		id TEXT PRIMARY KEY,
		escalation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		tier TEXT NOT NULL,
		recipients TEXT,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (escalation_id) REFERENCES escalations(id)
	);

	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		predicted_outcome TEXT NOT NULL,
		severity TEXT,
		timeline_days REAL,
		model_type TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS learning_outcomes (
		id TEXT PRIMARY KEY,
		prediction_id TEXT NOT NULL,
		model_type TEXT NOT NULL,
		actual_outcome TEXT NOT NULL,
		accuracy REAL NOT NULL,
		learned_patterns TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS model_metrics (
		model_type TEXT PRIMARY KEY,
		avg_accuracy REAL NOT NULL,
		prediction_count INTEGER NOT NULL,
		last_updated DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS patterns (
		type TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		confidence REAL NOT NULL,
		update_count INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS learning_shares (
		id TEXT PRIMARY KEY,
		learning_type TEXT NOT NULL,
		insights TEXT,
		providers TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pdr (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		subject_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status);
	CREATE INDEX IF NOT EXISTS idx_notifications_status ON provider_notifications(status);
	CREATE INDEX IF NOT EXISTS idx_notifications_signal_id ON provider_notifications(signal_id);
	CREATE INDEX IF NOT EXISTS idx_escalation_notifications_escalation_id ON escalation_notifications(escalation_id);
	CREATE INDEX IF NOT EXISTS idx_learning_outcomes_model_type ON learning_outcomes(model_type);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	// Databases created before notification leases existed.
	return s.ensureColumn("provider_notifications", "claimed_until", "DATETIME")
}

// ensureColumn adds a nullable column to an existing table when it is missing.
func (s *Store) ensureColumn(table, column, decl string) error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	if _, err := s.db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

// --- PDR Operations ---

// WritePDR writes a Process Decision Record.
func (s *Store) WritePDR(ctx context.Context, action, inputsHash, outcome, subjectID, details string) (*models.PDREntry, error) {
	pdr := &models.PDREntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		SubjectID:  subjectID,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pdr (id, action, inputs_hash, outcome, subject_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pdr.ID, pdr.Action, pdr.InputsHash, pdr.Outcome, pdr.SubjectID, pdr.Details, pdr.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pdr: %w", err)
	}
	return pdr, nil
}

// ListPDR returns the most recent audit entries for an action, newest first.
func (s *Store) ListPDR(ctx context.Context, action string, limit int) ([]models.PDREntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, inputs_hash, outcome, subject_id, details, timestamp FROM pdr WHERE action = ? ORDER BY timestamp DESC LIMIT ?`,
		action, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pdr: %w", err)
	}
	defer rows.Close()

	var entries []models.PDREntry
	for rows.Next() {
		var e models.PDREntry
		var subjectID, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.InputsHash, &e.Outcome, &subjectID, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pdr: %w", err)
		}
		e.SubjectID = subjectID.String
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// decodeJSON unmarshals a JSON column. NULL and empty columns leave v untouched.
func decodeJSON(column string, raw sql.NullString, v any) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), v); err != nil {
		return fmt.Errorf("decode %s: %w", column, err)
	}
	return nil
}
