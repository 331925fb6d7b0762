package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/google/uuid"
)

// --- Escalation Operations ---

// CreateEscalation persists an escalation and its notifications.
func (s *Store) CreateEscalation(ctx context.Context, esc *models.Escalation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO escalations (id, issue, severity, affected_stakeholders, escalation_path, activated_teams, decision_authority, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		esc.ID, esc.Issue, esc.Severity, encodeJSON(esc.AffectedStakeholders), encodeJSON(esc.EscalationPath),
		encodeJSON(esc.ActivatedTeams), esc.DecisionAuthority, esc.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert escalation: %w", err)
	}

	for i, n := range esc.Notifications {
		if err := insertEscalationNotification(ctx, tx, esc.ID, i, n); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AppendEscalationNotification adds a notification to an existing escalation.
// Existing notifications are never modified.
func (s *Store) AppendEscalationNotification(ctx context.Context, escalationID string, n models.EscalationNotification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM escalation_notifications WHERE escalation_id = ?`,
		escalationID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("next notification seq: %w", err)
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM escalations WHERE id = ?`, escalationID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("query escalation: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	if err := insertEscalationNotification(ctx, tx, escalationID, seq, n); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertEscalationNotification(ctx context.Context, tx *sql.Tx, escalationID string, seq int, n models.EscalationNotification) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO escalation_notifications (id, escalation_id, seq, tier, recipients, method, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), escalationID, seq, n.Tier, encodeJSON(n.Recipients), n.Method, n.Status, n.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert escalation notification: %w", err)
	}
	return nil
}

// GetEscalation retrieves an escalation with its notifications in append order.
func (s *Store) GetEscalation(ctx context.Context, id string) (*models.Escalation, error) {
	var esc models.Escalation
	var stakeholders, path, teams sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, issue, severity, affected_stakeholders, escalation_path, activated_teams, decision_authority, created_at
		 FROM escalations WHERE id = ?`,
		id,
	).Scan(&esc.ID, &esc.Issue, &esc.Severity, &stakeholders, &path, &teams, &esc.DecisionAuthority, &esc.Timestamp)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query escalation: %w", err)
	}
	if err := errors.Join(
		decodeJSON("affected_stakeholders", stakeholders, &esc.AffectedStakeholders),
		decodeJSON("escalation_path", path, &esc.EscalationPath),
		decodeJSON("activated_teams", teams, &esc.ActivatedTeams),
	); err != nil {
		return nil, fmt.Errorf("escalation %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tier, recipients, method, status, created_at FROM escalation_notifications WHERE escalation_id = ? ORDER BY seq ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query escalation notifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n models.EscalationNotification
		var recipients sql.NullString
		if err := rows.Scan(&n.Tier, &recipients, &n.Method, &n.Status, &n.Timestamp); err != nil {
			return nil, fmt.Errorf("scan escalation notification: %w", err)
		}
		if err := decodeJSON("recipients", recipients, &n.Recipients); err != nil {
			return nil, fmt.Errorf("escalation %s notification: %w", id, err)
		}
		esc.Notifications = append(esc.Notifications, n)
	}
	return &esc, rows.Err()
}
