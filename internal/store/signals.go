package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/google/uuid"
)

// --- Signal Operations ---

// CreateSignal inserts a signal and one pending notification per recommended
// provider in a single transaction. Either both land or neither does.
func (s *Store) CreateSignal(ctx context.Context, sig *models.Signal) ([]models.ProviderNotification, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if sig.Status == "" {
		sig.Status = models.SignalStatusPending
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO signals (id, source_provider_id, signal_type, priority_tier, priority_score, payload, affected_entities, recommended_providers, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.SourceProviderID, sig.SignalType, sig.PriorityTier, sig.PriorityScore,
		encodeJSON(sig.Payload), encodeJSON(sig.AffectedEntities), encodeJSON(sig.RecommendedProviders),
		sig.Status, sig.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert signal: %w", err)
	}

	notes := make([]models.ProviderNotification, 0, len(sig.RecommendedProviders))
	for _, providerID := range sig.RecommendedProviders {
		n := models.ProviderNotification{
			ID:         uuid.New().String(),
			SignalID:   sig.ID,
			ProviderID: providerID,
			Status:     models.NotificationPending,
			CreatedAt:  sig.Timestamp,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO provider_notifications (id, signal_id, provider_id, status, attempts, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
			n.ID, n.SignalID, n.ProviderID, n.Status, n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert notification: %w", err)
		}
		notes = append(notes, n)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return notes, nil
}

const signalColumns = `id, source_provider_id, signal_type, priority_tier, priority_score, payload, affected_entities, recommended_providers, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (*models.Signal, error) {
	var sig models.Signal
	var source, payload, entities, providers sql.NullString
	if err := row.Scan(&sig.ID, &source, &sig.SignalType, &sig.PriorityTier, &sig.PriorityScore,
		&payload, &entities, &providers, &sig.Status, &sig.Timestamp); err != nil {
		return nil, err
	}
	sig.SourceProviderID = source.String
	if err := errors.Join(
		decodeJSON("payload", payload, &sig.Payload),
		decodeJSON("affected_entities", entities, &sig.AffectedEntities),
		decodeJSON("recommended_providers", providers, &sig.RecommendedProviders),
	); err != nil {
		return nil, fmt.Errorf("signal %s: %w", sig.ID, err)
	}
	return &sig, nil
}

// GetSignal retrieves a signal by ID.
func (s *Store) GetSignal(ctx context.Context, id string) (*models.Signal, error) {
	sig, err := scanSignal(s.db.QueryRowContext(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query signal: %w", err)
	}
	return sig, nil
}

// ListSignals returns signals, optionally filtered by queue status, newest first.
func (s *Store) ListSignals(ctx context.Context, status string, limit int) ([]models.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals`
	var args []any

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var signals []models.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		signals = append(signals, *sig)
	}
	return signals, rows.Err()
}

// CountPendingSignals returns the current signal queue depth.
func (s *Store) CountPendingSignals(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals WHERE status = ?`, models.SignalStatusPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count signals: %w", err)
	}
	return n, nil
}

// AcknowledgeSignal removes a signal from the pending queue.
func (s *Store) AcknowledgeSignal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET status = ? WHERE id = ? AND status = ?`,
		models.SignalStatusAcknowledged, id, models.SignalStatusPending,
	)
	if err != nil {
		return fmt.Errorf("acknowledge signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Notification Operations ---

// ClaimNotification atomically moves the oldest claimable notification to
// delivering under a lease of the given length and returns it. Claimable means
// pending, or delivering with a lease that has run out because its previous
// holder died. Notifications for the skipped providers are ignored. It returns
// nil when nothing is claimable.
func (s *Store) ClaimNotification(ctx context.Context, skipProviders []string, lease time.Duration) (*models.ProviderNotification, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	query := `SELECT id, signal_id, provider_id, status, attempts, last_error, created_at
		 FROM provider_notifications
		 WHERE (status = ? OR (status = ? AND (claimed_until IS NULL OR claimed_until < ?)))`
	args := []any{models.NotificationPending, models.NotificationDelivering, now}
	if len(skipProviders) > 0 {
		query += ` AND provider_id NOT IN (?` + strings.Repeat(", ?", len(skipProviders)-1) + `)`
		for _, id := range skipProviders {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT 1`

	var n models.ProviderNotification
	var lastErr sql.NullString
	err = tx.QueryRowContext(ctx, query, args...).Scan(&n.ID, &n.SignalID, &n.ProviderID, &n.Status, &n.Attempts, &lastErr, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query notification: %w", err)
	}
	n.LastError = lastErr.String

	until := now.Add(lease)
	res, err := tx.ExecContext(ctx,
		`UPDATE provider_notifications SET status = ?, attempts = attempts + 1, claimed_until = ?
		 WHERE id = ? AND status = ? AND attempts = ?`,
		models.NotificationDelivering, until, n.ID, n.Status, n.Attempts,
	)
	if err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	n.Status = models.NotificationDelivering
	n.Attempts++
	n.ClaimedUntil = &until
	return &n, nil
}

// MarkNotificationDelivered records a successful delivery.
func (s *Store) MarkNotificationDelivered(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE provider_notifications SET status = ?, delivered_at = ?, last_error = NULL, claimed_until = NULL WHERE id = ?`,
		models.NotificationDelivered, time.Now().UTC(), id,
	)
	return err
}

// MarkNotificationFailed records a failed delivery. The notification returns to
// the pending queue unless it has used up maxAttempts.
func (s *Store) MarkNotificationFailed(ctx context.Context, id string, cause string, maxAttempts int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE provider_notifications
		 SET status = CASE WHEN attempts >= ? THEN ? ELSE ? END, last_error = ?, claimed_until = NULL
		 WHERE id = ?`,
		maxAttempts, models.NotificationFailed, models.NotificationPending, cause, id,
	)
	return err
}

// ListNotificationsForSignal returns all provider notifications for a signal.
func (s *Store) ListNotificationsForSignal(ctx context.Context, signalID string) ([]models.ProviderNotification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, signal_id, provider_id, status, attempts, last_error, created_at, delivered_at, claimed_until
		 FROM provider_notifications WHERE signal_id = ? ORDER BY created_at ASC, provider_id ASC`,
		signalID,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notes []models.ProviderNotification
	for rows.Next() {
		var n models.ProviderNotification
		var lastErr sql.NullString
		var deliveredAt, claimedUntil sql.NullTime
		if err := rows.Scan(&n.ID, &n.SignalID, &n.ProviderID, &n.Status, &n.Attempts, &lastErr, &n.CreatedAt, &deliveredAt, &claimedUntil); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.LastError = lastErr.String
		if deliveredAt.Valid {
			n.DeliveredAt = &deliveredAt.Time
		}
		if claimedUntil.Valid {
			n.ClaimedUntil = &claimedUntil.Time
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
