package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/NivraSD/SignalDesk-sub028/internal/store"
)

const (
	defaultTargetAccuracy = 0.9
	defaultHistoryLimit   = 20
	maxHistoryLimit       = 500
)

// Performance categories for a single outcome.
const (
	PerformanceExcellent        = "excellent"
	PerformanceGood             = "good"
	PerformanceAcceptable       = "acceptable"
	PerformanceNeedsImprovement = "needs_improvement"
)

// --- Predictions ---

// PredictionRequest registers a forecast so its outcome can be scored later.
type PredictionRequest struct {
	PredictionID     string   `json:"prediction_id,omitempty"`
	PredictedOutcome string   `json:"predicted_outcome"`
	Severity         string   `json:"severity,omitempty"`
	TimelineDays     *float64 `json:"timeline_days,omitempty"`
	ModelType        string   `json:"model_type"`
}

// RegisterPrediction stores a prediction. Without a stored record there is
// nothing to return, so store failures surface as errors.
func (e *Engine) RegisterPrediction(ctx context.Context, req PredictionRequest) (*models.Prediction, error) {
	if strings.TrimSpace(req.PredictedOutcome) == "" {
		return nil, fmt.Errorf("%w: predicted_outcome is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.ModelType) == "" {
		return nil, fmt.Errorf("%w: model_type is required", ErrInvalidRequest)
	}
	if req.Severity != "" {
		if _, ok := severityRank[normalizeKey(req.Severity)]; !ok {
			return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidRequest, req.Severity)
		}
	}

	p := &models.Prediction{
		ID:               req.PredictionID,
		PredictedOutcome: req.PredictedOutcome,
		Severity:         normalizeKey(req.Severity),
		TimelineDays:     req.TimelineDays,
		ModelType:        req.ModelType,
		CreatedAt:        e.now().UTC(),
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	} else {
		sctx, cancel := e.storeCtx(ctx)
		_, err := e.store.GetPrediction(sctx, p.ID)
		cancel()
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: prediction %q already exists", ErrInvalidRequest, p.ID)
		case !errors.Is(err, store.ErrNotFound):
			return nil, e.lookupError("prediction", p.ID, err)
		}
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.store.CreatePrediction(sctx, p); err != nil {
		e.persistFailed("prediction", err, zap.String("prediction_id", p.ID))
		return nil, fmt.Errorf("%w: store prediction: %v", ErrExternalDependency, err)
	}

	e.audit(ctx, "prediction.register", req, p.ModelType, p.ID, p.PredictedOutcome)
	return p, nil
}

// --- Outcomes ---

// OutcomeRequest reports what actually happened for a prediction.
type OutcomeRequest struct {
	PredictionID        string               `json:"prediction_id"`
	ActualOutcome       models.ActualOutcome `json:"actual_outcome"`
	ContributingFactors []string             `json:"contributing_factors,omitempty"`
}

// OutcomeResult scores a prediction against reality.
type OutcomeResult struct {
	LearningID            string              `json:"learning_id"`
	PredictionID          string              `json:"prediction_id"`
	ModelType             string              `json:"model_type"`
	Accuracy              float64             `json:"accuracy"`
	PerformanceCategory   string              `json:"performance_category"`
	LearnedPatterns       []string            `json:"learned_patterns"`
	AdjustmentSuggestions []string            `json:"adjustment_suggestions"`
	ModelMetric           *models.ModelMetric `json:"model_metric,omitempty"`
	Persisted             bool                `json:"persisted"`
}

// RecordOutcome scores a stored prediction and folds the accuracy into the
// running metric for its model type. Updates for one model type are
// serialised.
func (e *Engine) RecordOutcome(ctx context.Context, req OutcomeRequest) (*OutcomeResult, error) {
	if strings.TrimSpace(req.PredictionID) == "" {
		return nil, fmt.Errorf("%w: prediction_id is required", ErrInvalidRequest)
	}

	sctx, cancel := e.storeCtx(ctx)
	pred, err := e.store.GetPrediction(sctx, req.PredictionID)
	cancel()
	if err != nil {
		return nil, e.lookupError("prediction", req.PredictionID, err)
	}

	accuracy := outcomeAccuracy(*pred, req.ActualOutcome)
	patterns := learnedPatterns(*pred, req.ActualOutcome, req.ContributingFactors)

	lo := &models.LearningOutcome{
		ID:              uuid.New().String(),
		Prediction:      *pred,
		ActualOutcome:   req.ActualOutcome,
		Accuracy:        accuracy,
		LearnedPatterns: patterns,
		Timestamp:       e.now().UTC(),
	}
	result := &OutcomeResult{
		LearningID:            lo.ID,
		PredictionID:          pred.ID,
		ModelType:             pred.ModelType,
		Accuracy:              accuracy,
		PerformanceCategory:   performanceCategory(accuracy),
		LearnedPatterns:       patterns,
		AdjustmentSuggestions: adjustmentSuggestions(patterns),
	}

	unlock := e.locks.Lock("model:" + pred.ModelType)
	defer unlock()

	sctx, cancel = e.storeCtx(ctx)
	metric, err := e.store.RecordLearningOutcome(sctx, lo)
	cancel()
	if err != nil {
		e.persistFailed("learning_outcome", err, zap.String("prediction_id", pred.ID), zap.String("model_type", pred.ModelType))
	} else {
		result.ModelMetric = metric
		result.Persisted = true
	}

	e.logger.Info("outcome recorded",
		zap.String("prediction_id", pred.ID),
		zap.String("model_type", pred.ModelType),
		zap.Float64("accuracy", accuracy),
	)
	e.audit(ctx, "outcome.record", req, result.PerformanceCategory, pred.ID, fmt.Sprintf("accuracy=%.3f", accuracy))
	return result, nil
}

// outcomeAccuracy is 1 on an outcome match, otherwise the mean partial credit
// over the fields both sides carry.
func outcomeAccuracy(p models.Prediction, actual models.ActualOutcome) float64 {
	if outcomesMatch(p.PredictedOutcome, actual.Outcome) {
		return 1.0
	}

	var scores []float64
	if p.Severity != "" && actual.Severity != "" {
		scores = append(scores, severityCredit(p.Severity, actual.Severity))
	}
	if p.TimelineDays != nil && actual.TimelineDays != nil {
		scores = append(scores, timelineCredit(*p.TimelineDays, *actual.TimelineDays))
	}
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func outcomesMatch(predicted, actual string) bool {
	predicted, actual = strings.TrimSpace(predicted), strings.TrimSpace(actual)
	return predicted != "" && strings.EqualFold(predicted, actual)
}

func severityCredit(predicted, actual string) float64 {
	predicted, actual = normalizeKey(predicted), normalizeKey(actual)
	if predicted == actual {
		return 1.0
	}
	pr, ok1 := severityRank[predicted]
	ar, ok2 := severityRank[actual]
	if ok1 && ok2 && (pr-ar == 1 || ar-pr == 1) {
		return 0.5
	}
	return 0
}

func timelineCredit(predicted, actual float64) float64 {
	switch d := math.Abs(predicted - actual); {
	case d <= 2:
		return 1.0
	case d <= 7:
		return 0.5
	default:
		return 0
	}
}

func learnedPatterns(p models.Prediction, actual models.ActualOutcome, factors []string) []string {
	patterns := []string{}
	if actual.Outcome != "" && !outcomesMatch(p.PredictedOutcome, actual.Outcome) {
		patterns = append(patterns, fmt.Sprintf("Outcome mismatch: predicted %q, actual %q", p.PredictedOutcome, actual.Outcome))
	}
	if p.Severity != "" && actual.Severity != "" && normalizeKey(p.Severity) != normalizeKey(actual.Severity) {
		patterns = append(patterns, fmt.Sprintf("Severity mismatch: predicted %s, actual %s", p.Severity, actual.Severity))
	}
	if p.TimelineDays != nil && actual.TimelineDays != nil && math.Abs(*p.TimelineDays-*actual.TimelineDays) > 2 {
		patterns = append(patterns, fmt.Sprintf("Timeline deviation: predicted %.1f days, actual %.1f days", *p.TimelineDays, *actual.TimelineDays))
	}
	for _, f := range factors {
		if f = strings.TrimSpace(f); f != "" {
			patterns = append(patterns, "Contributing factor: "+f)
		}
	}
	return patterns
}

func performanceCategory(accuracy float64) string {
	switch {
	case accuracy >= 0.9:
		return PerformanceExcellent
	case accuracy >= 0.7:
		return PerformanceGood
	case accuracy >= 0.5:
		return PerformanceAcceptable
	default:
		return PerformanceNeedsImprovement
	}
}

var suggestionsByKeyword = []struct {
	keyword    string
	suggestion string
}{
	{"Severity", "Recalibrate severity thresholds against recent outcomes"},
	{"Timeline", "Adjust timeline estimates using observed resolution times"},
	{"Outcome", "Review outcome classification features"},
	{"Contributing", "Add reported contributing factors as model features"},
}

func adjustmentSuggestions(patterns []string) []string {
	out := []string{}
	for _, s := range suggestionsByKeyword {
		for _, p := range patterns {
			if strings.Contains(p, s.keyword) {
				out = append(out, s.suggestion)
				break
			}
		}
	}
	return out
}

// --- Patterns ---

// PatternRequest merges new observations into a pattern type.
type PatternRequest struct {
	PatternType string         `json:"pattern_type"`
	Data        map[string]any `json:"data,omitempty"`
	Confidence  float64        `json:"confidence"`
}

// PatternResult is the merged pattern and who it concerns.
type PatternResult struct {
	PatternType       string         `json:"pattern_type"`
	Data              map[string]any `json:"data"`
	Confidence        float64        `json:"confidence"`
	UpdateCount       int            `json:"update_count"`
	AffectedProviders []string       `json:"affected_providers"`
	Strength          string         `json:"strength"`
}

// UpdatePatterns merges data into the stored pattern of the same type. Merges
// for one type are serialised. The result is read back from the store, so a
// store failure is returned as an error.
func (e *Engine) UpdatePatterns(ctx context.Context, req PatternRequest) (*PatternResult, error) {
	if strings.TrimSpace(req.PatternType) == "" {
		return nil, fmt.Errorf("%w: pattern_type is required", ErrInvalidRequest)
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidRequest, req.Confidence)
	}

	unlock := e.locks.Lock("pattern:" + req.PatternType)
	defer unlock()

	sctx, cancel := e.storeCtx(ctx)
	p, err := e.store.UpsertPattern(sctx, req.PatternType, req.Data, req.Confidence)
	cancel()
	if err != nil {
		e.persistFailed("pattern", err, zap.String("pattern_type", req.PatternType))
		return nil, fmt.Errorf("%w: merge pattern: %v", ErrExternalDependency, err)
	}

	result := &PatternResult{
		PatternType:       p.Type,
		Data:              p.Data,
		Confidence:        p.Confidence,
		UpdateCount:       p.UpdateCount,
		AffectedProviders: e.providersFor(patternProviders, req.PatternType),
		Strength:          patternStrength(p.Confidence, p.UpdateCount),
	}
	e.audit(ctx, "pattern.update", req, result.Strength, p.Type, fmt.Sprintf("confidence=%.3f count=%d", p.Confidence, p.UpdateCount))
	return result, nil
}

func patternStrength(confidence float64, updates int) string {
	switch {
	case confidence > 0.8 && updates > 10:
		return "strong"
	case confidence > 0.6 && updates > 5:
		return "moderate"
	default:
		return "emerging"
	}
}

// providersFor resolves a lookup table entry to registered providers, falling
// back to the default provider.
func (e *Engine) providersFor(table map[string][]string, key string) []string {
	ids := e.registry.Filter(table[normalizeKey(key)])
	if len(ids) == 0 {
		ids = []string{e.registry.DefaultID()}
	}
	return ids
}

// --- Improvement planning ---

// ImprovementRequest asks for a plan to close an accuracy gap.
type ImprovementRequest struct {
	ModelType       string   `json:"model_type"`
	CurrentAccuracy *float64 `json:"current_accuracy,omitempty"`
	TargetAccuracy  *float64 `json:"target_accuracy,omitempty"`
}

// RetrainingSchedule estimates when the model should next be retrained.
type RetrainingSchedule struct {
	IntervalDays   int       `json:"interval_days"`
	NextRetraining time.Time `json:"next_retraining"`
}

// ImprovementPlan is the chosen bundle of strategies.
type ImprovementPlan struct {
	ModelType           string             `json:"model_type"`
	CurrentAccuracy     float64            `json:"current_accuracy"`
	TargetAccuracy      float64            `json:"target_accuracy"`
	Gap                 float64            `json:"gap"`
	Strategies          []string           `json:"strategies"`
	ExpectedImprovement float64            `json:"expected_improvement"`
	ProjectedAccuracy   float64            `json:"projected_accuracy"`
	RetrainingSchedule  RetrainingSchedule `json:"retraining_schedule"`
}

// ImprovePredictions picks an improvement bundle by the size of the accuracy
// gap. Without a current accuracy the stored model metric is used.
func (e *Engine) ImprovePredictions(ctx context.Context, req ImprovementRequest) (*ImprovementPlan, error) {
	if strings.TrimSpace(req.ModelType) == "" {
		return nil, fmt.Errorf("%w: model_type is required", ErrInvalidRequest)
	}
	target := defaultTargetAccuracy
	if req.TargetAccuracy != nil {
		target = *req.TargetAccuracy
	}
	if math.IsNaN(target) || target < 0 || target > 1 {
		return nil, fmt.Errorf("%w: target_accuracy %v outside [0,1]", ErrInvalidRequest, target)
	}

	var current float64
	if req.CurrentAccuracy != nil {
		current = *req.CurrentAccuracy
	} else {
		sctx, cancel := e.storeCtx(ctx)
		m, err := e.store.GetModelMetric(sctx, req.ModelType)
		cancel()
		if err != nil {
			return nil, e.lookupError("model metric", req.ModelType, err)
		}
		current = m.AvgAccuracy
	}
	if current < 0 || current > 1 {
		return nil, fmt.Errorf("%w: current_accuracy %v outside [0,1]", ErrInvalidRequest, current)
	}

	gap := target - current
	bundle := incrementalImprovement
	switch {
	case gap > 0.2:
		bundle = majorImprovement
	case gap > 0.1:
		bundle = moderateImprovement
	}

	plan := &ImprovementPlan{
		ModelType:           req.ModelType,
		CurrentAccuracy:     current,
		TargetAccuracy:      target,
		Gap:                 gap,
		Strategies:          append([]string(nil), bundle.strategies...),
		ExpectedImprovement: bundle.expected,
		ProjectedAccuracy:   math.Min(1, current+bundle.expected),
		RetrainingSchedule: RetrainingSchedule{
			IntervalDays:   bundle.retrainInDays,
			NextRetraining: e.now().UTC().AddDate(0, 0, bundle.retrainInDays),
		},
	}

	e.logger.Info("improvement plan",
		zap.String("model_type", req.ModelType),
		zap.Float64("current", current),
		zap.Float64("target", target),
		zap.Strings("strategies", plan.Strategies),
		zap.Int("retrain_in_days", bundle.retrainInDays),
	)
	e.audit(ctx, "prediction.improve", req, strings.Join(plan.Strategies, "; "), req.ModelType, fmt.Sprintf("gap=%.3f", gap))
	return plan, nil
}

// --- Learning distribution ---

// ShareRequest distributes a learning to the providers it applies to.
type ShareRequest struct {
	LearningType   string         `json:"learning_type"`
	Insights       map[string]any `json:"insights,omitempty"`
	SourceProvider string         `json:"source_provider,omitempty"`
}

// ProviderImpact is the expected effect of a learning on one provider.
type ProviderImpact struct {
	ProviderID          string `json:"provider_id"`
	EstimatedImpact     string `json:"estimated_impact"`
	IntegrationPriority string `json:"integration_priority"`
}

// ImpactEstimate aggregates the expected value of a share.
type ImpactEstimate struct {
	ImmediateValue  string  `json:"immediate_value"`
	LongTermBenefit string  `json:"long_term_benefit"`
	NetworkEffect   float64 `json:"network_effect"`
}

// ShareResult lists recipients and the estimated impact.
type ShareResult struct {
	ShareID        string           `json:"share_id"`
	LearningType   string           `json:"learning_type"`
	Providers      []ProviderImpact `json:"providers"`
	ImpactEstimate ImpactEstimate   `json:"impact_estimate"`
	Persisted      bool             `json:"persisted"`
}

// ShareLearnings works out who a learning applies to and records the share.
func (e *Engine) ShareLearnings(ctx context.Context, req ShareRequest) (*ShareResult, error) {
	if strings.TrimSpace(req.LearningType) == "" {
		return nil, fmt.Errorf("%w: learning_type is required", ErrInvalidRequest)
	}

	var ids []string
	if generalLearningTypes[normalizeKey(req.LearningType)] {
		ids = e.registry.IDs()
	} else {
		ids = e.providersFor(learningProviders, req.LearningType)
	}

	words := keywords(req.LearningType)
	impacts := make([]ProviderImpact, 0, len(ids))
	for _, id := range ids {
		p, _ := e.registry.Get(id)
		impact := "medium"
		if capabilityMatches(p.Capabilities, words) {
			impact = "high"
		}
		impacts = append(impacts, ProviderImpact{
			ProviderID:          id,
			EstimatedImpact:     impact,
			IntegrationPriority: integrationPriority(p.PriorityWeight),
		})
	}

	share := &models.LearningShare{
		ID:           uuid.New().String(),
		LearningType: req.LearningType,
		Insights:     req.Insights,
		Providers:    ids,
		CreatedAt:    e.now().UTC(),
	}
	result := &ShareResult{
		ShareID:      share.ID,
		LearningType: req.LearningType,
		Providers:    impacts,
		ImpactEstimate: ImpactEstimate{
			ImmediateValue:  immediateValue(req.Insights),
			LongTermBenefit: fmt.Sprintf("Strengthens %s handling across %d providers", strings.ReplaceAll(req.LearningType, "_", " "), len(ids)),
			NetworkEffect:   float64(len(ids)) * 0.2,
		},
	}

	sctx, cancel := e.storeCtx(ctx)
	err := e.store.CreateLearningShare(sctx, share)
	cancel()
	if err != nil {
		e.persistFailed("learning_share", err, zap.String("learning_type", req.LearningType))
	} else {
		result.Persisted = true
	}

	e.audit(ctx, "learning.share", req, result.ImpactEstimate.ImmediateValue, share.ID, strings.Join(ids, ","))
	return result, nil
}

func integrationPriority(weight float64) string {
	switch {
	case weight >= 0.8:
		return "immediate"
	case weight >= 0.6:
		return "next_cycle"
	default:
		return "scheduled"
	}
}

func immediateValue(insights map[string]any) string {
	actionable, _ := insights["actionable"].(bool)
	validated, _ := insights["validated"].(bool)
	switch {
	case actionable && validated:
		return "high"
	case actionable || validated:
		return "medium"
	default:
		return "low"
	}
}

// --- Metrics and history ---

// ModelRequest names a model type.
type ModelRequest struct {
	ModelType string `json:"model_type"`
}

// GetModelMetrics returns the running metric for a model type.
func (e *Engine) GetModelMetrics(ctx context.Context, req ModelRequest) (*models.ModelMetric, error) {
	if strings.TrimSpace(req.ModelType) == "" {
		return nil, fmt.Errorf("%w: model_type is required", ErrInvalidRequest)
	}
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	m, err := e.store.GetModelMetric(sctx, req.ModelType)
	if err != nil {
		return nil, e.lookupError("model metric", req.ModelType, err)
	}
	return m, nil
}

// HistoryRequest pages through recorded outcomes.
type HistoryRequest struct {
	ModelType string `json:"model_type,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// HistoryResult is a page of learning outcomes, newest first.
type HistoryResult struct {
	ModelType string                   `json:"model_type,omitempty"`
	Outcomes  []models.LearningOutcome `json:"outcomes"`
}

// LearningHistory lists recorded outcomes, optionally for one model type.
func (e *Engine) LearningHistory(ctx context.Context, req HistoryRequest) (*HistoryResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	outcomes, err := e.store.ListLearningOutcomes(sctx, req.ModelType, limit)
	if err != nil {
		e.externalFailed("store", err, zap.String("lookup", "learning_history"))
		return nil, fmt.Errorf("%w: list learning outcomes: %v", ErrExternalDependency, err)
	}
	if outcomes == nil {
		outcomes = []models.LearningOutcome{}
	}
	return &HistoryResult{ModelType: req.ModelType, Outcomes: outcomes}, nil
}
