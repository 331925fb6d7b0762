package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// --- Prediction Operations ---

// CreatePrediction stores a prediction for later scoring.
func (s *Store) CreatePrediction(ctx context.Context, p *models.Prediction) error {
	var timeline sql.NullFloat64
	if p.TimelineDays != nil {
		timeline = sql.NullFloat64{Float64: *p.TimelineDays, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, predicted_outcome, severity, timeline_days, model_type, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.PredictedOutcome, p.Severity, timeline, p.ModelType, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// GetPrediction retrieves a prediction by ID.
func (s *Store) GetPrediction(ctx context.Context, id string) (*models.Prediction, error) {
	var p models.Prediction
	var severity sql.NullString
	var timeline sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, predicted_outcome, severity, timeline_days, model_type, created_at FROM predictions WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.PredictedOutcome, &severity, &timeline, &p.ModelType, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query prediction: %w", err)
	}
	p.Severity = severity.String
	if timeline.Valid {
		v := timeline.Float64
		p.TimelineDays = &v
	}
	return &p, nil
}

// --- Learning Outcome Operations ---

// CreateLearningOutcome appends an outcome to the learning history without
// touching the model metric.
func (s *Store) CreateLearningOutcome(ctx context.Context, lo *models.LearningOutcome) error {
	return insertLearningOutcome(ctx, s.db, lo)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLearningOutcome(ctx context.Context, db execer, lo *models.LearningOutcome) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO learning_outcomes (id, prediction_id, model_type, actual_outcome, accuracy, learned_patterns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lo.ID, lo.Prediction.ID, lo.Prediction.ModelType, encodeJSON(lo.ActualOutcome), lo.Accuracy,
		encodeJSON(lo.LearnedPatterns), lo.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert learning outcome: %w", err)
	}
	return nil
}

// ListLearningOutcomes returns the learning history for a model type, newest first.
// An empty model type returns outcomes for every model.
func (s *Store) ListLearningOutcomes(ctx context.Context, modelType string, limit int) ([]models.LearningOutcome, error) {
	query := `SELECT lo.id, lo.actual_outcome, lo.accuracy, lo.learned_patterns, lo.created_at,
		p.id, p.predicted_outcome, p.severity, p.timeline_days, p.model_type, p.created_at
		FROM learning_outcomes lo JOIN predictions p ON p.id = lo.prediction_id`
	var args []any
	if modelType != "" {
		query += ` WHERE lo.model_type = ?`
		args = append(args, modelType)
	}
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY lo.created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query learning outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.LearningOutcome
	for rows.Next() {
		var lo models.LearningOutcome
		var actual, patterns, severity sql.NullString
		var timeline sql.NullFloat64
		if err := rows.Scan(&lo.ID, &actual, &lo.Accuracy, &patterns, &lo.Timestamp,
			&lo.Prediction.ID, &lo.Prediction.PredictedOutcome, &severity, &timeline,
			&lo.Prediction.ModelType, &lo.Prediction.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan learning outcome: %w", err)
		}
		if err := errors.Join(
			decodeJSON("actual_outcome", actual, &lo.ActualOutcome),
			decodeJSON("learned_patterns", patterns, &lo.LearnedPatterns),
		); err != nil {
			return nil, fmt.Errorf("learning outcome %s: %w", lo.ID, err)
		}
		lo.Prediction.Severity = severity.String
		if timeline.Valid {
			v := timeline.Float64
			lo.Prediction.TimelineDays = &v
		}
		outcomes = append(outcomes, lo)
	}
	return outcomes, rows.Err()
}

// --- Model Metric Operations ---

// UpdateModelMetric folds a new accuracy into the running average for a model
// type inside one transaction.
func (s *Store) UpdateModelMetric(ctx context.Context, modelType string, accuracy float64) (*models.ModelMetric, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := foldModelMetric(ctx, tx, modelType, accuracy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return m, nil
}

// RecordLearningOutcome appends a learning outcome and folds its accuracy into
// the model metric of the prediction's model type. Either both land or neither does.
func (s *Store) RecordLearningOutcome(ctx context.Context, lo *models.LearningOutcome) (*models.ModelMetric, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertLearningOutcome(ctx, tx, lo); err != nil {
		return nil, err
	}
	m, err := foldModelMetric(ctx, tx, lo.Prediction.ModelType, lo.Accuracy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return m, nil
}

func foldModelMetric(ctx context.Context, tx *sql.Tx, modelType string, accuracy float64) (*models.ModelMetric, error) {
	m := models.ModelMetric{ModelType: modelType}
	err := tx.QueryRowContext(ctx,
		`SELECT avg_accuracy, prediction_count FROM model_metrics WHERE model_type = ?`,
		modelType,
	).Scan(&m.AvgAccuracy, &m.PredictionCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query model metric: %w", err)
	}

	n := float64(m.PredictionCount)
	m.AvgAccuracy = (m.AvgAccuracy*n + accuracy) / (n + 1)
	m.PredictionCount++
	m.LastUpdated = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO model_metrics (model_type, avg_accuracy, prediction_count, last_updated) VALUES (?, ?, ?, ?)
		 ON CONFLICT(model_type) DO UPDATE SET avg_accuracy = excluded.avg_accuracy,
		 prediction_count = excluded.prediction_count, last_updated = excluded.last_updated`,
		m.ModelType, m.AvgAccuracy, m.PredictionCount, m.LastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert model metric: %w", err)
	}
	return &m, nil
}

// GetModelMetric retrieves the running metric for a model type.
func (s *Store) GetModelMetric(ctx context.Context, modelType string) (*models.ModelMetric, error) {
	m := models.ModelMetric{ModelType: modelType}
	err := s.db.QueryRowContext(ctx,
		`SELECT avg_accuracy, prediction_count, last_updated FROM model_metrics WHERE model_type = ?`,
		modelType,
	).Scan(&m.AvgAccuracy, &m.PredictionCount, &m.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query model metric: %w", err)
	}
	return &m, nil
}

// --- Pattern Operations ---

// UpsertPattern merges data and confidence into the pattern of the given type
// inside one transaction. New keys win on conflict and confidence is averaged
// with the stored value.
func (s *Store) UpsertPattern(ctx context.Context, patternType string, data map[string]any, confidence float64) (*models.Pattern, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	p := models.Pattern{Type: patternType, Data: map[string]any{}}
	var rawData sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT data, confidence, update_count FROM patterns WHERE type = ?`,
		patternType,
	).Scan(&rawData, &p.Confidence, &p.UpdateCount)
	switch {
	case err == sql.ErrNoRows:
		p.Confidence = confidence
	case err != nil:
		return nil, fmt.Errorf("query pattern: %w", err)
	default:
		if err := decodeJSON("data", rawData, &p.Data); err != nil {
			return nil, fmt.Errorf("pattern %s: %w", patternType, err)
		}
		p.Confidence = (p.Confidence + confidence) / 2
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}
	for k, v := range data {
		p.Data[k] = v
	}
	p.UpdateCount++
	p.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO patterns (type, data, confidence, update_count, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(type) DO UPDATE SET data = excluded.data, confidence = excluded.confidence,
		 update_count = excluded.update_count, updated_at = excluded.updated_at`,
		p.Type, encodeJSON(p.Data), p.Confidence, p.UpdateCount, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert pattern: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &p, nil
}

// GetPattern retrieves a pattern by type.
func (s *Store) GetPattern(ctx context.Context, patternType string) (*models.Pattern, error) {
	p := models.Pattern{Type: patternType}
	var rawData sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT data, confidence, update_count, updated_at FROM patterns WHERE type = ?`,
		patternType,
	).Scan(&rawData, &p.Confidence, &p.UpdateCount, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query pattern: %w", err)
	}
	if err := decodeJSON("data", rawData, &p.Data); err != nil {
		return nil, fmt.Errorf("pattern %s: %w", patternType, err)
	}
	return &p, nil
}

// --- Learning Share Operations ---

// CreateLearningShare records a learning distributed to providers.
func (s *Store) CreateLearningShare(ctx context.Context, share *models.LearningShare) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO learning_shares (id, learning_type, insights, providers, created_at) VALUES (?, ?, ?, ?, ?)`,
		share.ID, share.LearningType, encodeJSON(share.Insights), encodeJSON(share.Providers), share.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert learning share: %w", err)
	}
	return nil
}

// ListLearningShares returns shares of the given learning type, newest first.
func (s *Store) ListLearningShares(ctx context.Context, learningType string) ([]models.LearningShare, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, learning_type, insights, providers, created_at FROM learning_shares WHERE learning_type = ? ORDER BY created_at DESC`,
		learningType,
	)
	if err != nil {
		return nil, fmt.Errorf("query learning shares: %w", err)
	}
	defer rows.Close()

	var shares []models.LearningShare
	for rows.Next() {
		var sh models.LearningShare
		var insights, providers sql.NullString
		if err := rows.Scan(&sh.ID, &sh.LearningType, &insights, &providers, &sh.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan learning share: %w", err)
		}
		if err := errors.Join(
			decodeJSON("insights", insights, &sh.Insights),
			decodeJSON("providers", providers, &sh.Providers),
		); err != nil {
			return nil, fmt.Errorf("learning share %s: %w", sh.ID, err)
		}
		shares = append(shares, sh)
	}
	return shares, rows.Err()
}
