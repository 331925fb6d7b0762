package engine

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/metrics"
	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/NivraSD/SignalDesk-sub028/internal/registry"
	"github.com/NivraSD/SignalDesk-sub028/internal/store"
)

func ptr(v float64) *float64 { return &v }

func registerPrediction(t *testing.T, e *testEngine, req PredictionRequest) *models.Prediction {
	t.Helper()
	p, err := e.RegisterPrediction(context.Background(), req)
	require.NoError(t, err)
	return p
}

func TestRecordOutcome_RunningAverage(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	exact := registerPrediction(t, e, PredictionRequest{PredictedOutcome: "story fades", ModelType: "sentiment"})
	partial := registerPrediction(t, e, PredictionRequest{
		PredictedOutcome: "story escalates",
		Severity:         "high",
		TimelineDays:     ptr(3),
		ModelType:        "sentiment",
	})

	r1, err := e.RecordOutcome(ctx, OutcomeRequest{
		PredictionID:  exact.ID,
		ActualOutcome: models.ActualOutcome{Outcome: " Story Fades "},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r1.Accuracy)
	assert.Equal(t, PerformanceExcellent, r1.PerformanceCategory)
	assert.Empty(t, r1.LearnedPatterns)

	// Severity is one bucket off (0.5) and the timeline is within two days (1.0).
	r2, err := e.RecordOutcome(ctx, OutcomeRequest{
		PredictionID:        partial.ID,
		ActualOutcome:       models.ActualOutcome{Outcome: "story stalls", Severity: "critical", TimelineDays: ptr(4)},
		ContributingFactors: []string{"competitor statement"},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, r2.Accuracy, 1e-9)
	assert.Equal(t, PerformanceGood, r2.PerformanceCategory)
	assert.Equal(t, []string{
		`Outcome mismatch: predicted "story escalates", actual "story stalls"`,
		"Severity mismatch: predicted high, actual critical",
		"Contributing factor: competitor statement",
	}, r2.LearnedPatterns)
	assert.Equal(t, []string{
		"Recalibrate severity thresholds against recent outcomes",
		"Review outcome classification features",
		"Add reported contributing factors as model features",
	}, r2.AdjustmentSuggestions)

	require.NotNil(t, r2.ModelMetric)
	assert.InDelta(t, 0.875, r2.ModelMetric.AvgAccuracy, 1e-9)
	assert.Equal(t, 2, r2.ModelMetric.PredictionCount)

	m, err := e.GetModelMetrics(ctx, ModelRequest{ModelType: "sentiment"})
	require.NoError(t, err)
	assert.InDelta(t, 0.875, m.AvgAccuracy, 1e-9)

	hist, err := e.LearningHistory(ctx, HistoryRequest{ModelType: "sentiment"})
	require.NoError(t, err)
	assert.Len(t, hist.Outcomes, 2)
}

// The mean over N sequential updates equals sum/N for any sequence.
func TestRecordOutcome_AverageOverManyUpdates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Timeline deltas of 0, 5 and 30 days score 1.0, 0.5 and 0.
	deltas := []float64{0, 5, 30, 30, 0, 5, 5}
	var sum float64
	for i, d := range deltas {
		p := registerPrediction(t, e, PredictionRequest{
			PredictedOutcome: fmt.Sprintf("outcome %d", i),
			TimelineDays:     ptr(10),
			ModelType:        "timing",
		})
		r, err := e.RecordOutcome(ctx, OutcomeRequest{
			PredictionID:  p.ID,
			ActualOutcome: models.ActualOutcome{Outcome: "different", TimelineDays: ptr(10 + d)},
		})
		require.NoError(t, err)
		sum += r.Accuracy
	}

	m, err := e.GetModelMetrics(ctx, ModelRequest{ModelType: "timing"})
	require.NoError(t, err)
	assert.Equal(t, len(deltas), m.PredictionCount)
	assert.InDelta(t, sum/float64(len(deltas)), m.AvgAccuracy, 1e-9)
}

func TestRecordOutcome_ConcurrentSameModel(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	const n = 12
	ids := make([]string, n)
	for i := range ids {
		ids[i] = registerPrediction(t, e, PredictionRequest{PredictedOutcome: "calm", ModelType: "concurrent"}).ID
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := "calm"
			if i%2 == 1 {
				outcome = "storm"
			}
			_, err := e.RecordOutcome(ctx, OutcomeRequest{PredictionID: id, ActualOutcome: models.ActualOutcome{Outcome: outcome}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	m, err := e.GetModelMetrics(ctx, ModelRequest{ModelType: "concurrent"})
	require.NoError(t, err)
	assert.Equal(t, n, m.PredictionCount)
	assert.InDelta(t, 0.5, m.AvgAccuracy, 1e-9)
}

func TestRecordOutcome_NotFound(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.RecordOutcome(context.Background(), OutcomeRequest{PredictionID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "not_found", ErrorCode(err))
}

func TestRecordOutcome_PersistFailureKeepsScore(t *testing.T) {
	e := newTestEngine(t, withFailingWrites(t))
	ctx := context.Background()

	p, err := e.RegisterPrediction(ctx, PredictionRequest{PredictedOutcome: "calm", ModelType: "m"})
	require.NoError(t, err)

	res, err := e.RecordOutcome(ctx, OutcomeRequest{PredictionID: p.ID, ActualOutcome: models.ActualOutcome{Outcome: "calm"}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Accuracy)
	assert.False(t, res.Persisted)
	assert.Nil(t, res.ModelMetric)
}

func TestRecordOutcome_MetricFailureLeavesNoHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// A second handle on the same file makes the metric upsert fail inside
	// the outcome transaction.
	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TRIGGER refuse_metric BEFORE INSERT ON model_metrics
		BEGIN SELECT RAISE(ABORT, 'metric write refused'); END`)
	require.NoError(t, err)

	m := metrics.NewUnregistered()
	e, err := New(Options{
		Registry: registry.NewDefault(),
		Store:    s,
		Logger:   zap.NewNop(),
		Metrics:  m,
		Clock:    func() time.Time { return testNow },
	})
	require.NoError(t, err)
	ctx := context.Background()

	p, err := e.RegisterPrediction(ctx, PredictionRequest{PredictedOutcome: "calm", ModelType: "atomic"})
	require.NoError(t, err)

	res, err := e.RecordOutcome(ctx, OutcomeRequest{PredictionID: p.ID, ActualOutcome: models.ActualOutcome{Outcome: "calm"}})
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Nil(t, res.ModelMetric)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures.WithLabelValues("learning_outcome")))

	hist, err := e.LearningHistory(ctx, HistoryRequest{ModelType: "atomic"})
	require.NoError(t, err)
	assert.Empty(t, hist.Outcomes)
	_, err = s.GetModelMetric(ctx, "atomic")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Once the metric can be written again a retry counts exactly once.
	_, err = raw.Exec(`DROP TRIGGER refuse_metric`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	res, err = e.RecordOutcome(ctx, OutcomeRequest{PredictionID: p.ID, ActualOutcome: models.ActualOutcome{Outcome: "calm"}})
	require.NoError(t, err)
	require.True(t, res.Persisted)
	assert.Equal(t, 1, res.ModelMetric.PredictionCount)

	hist, err = e.LearningHistory(ctx, HistoryRequest{ModelType: "atomic"})
	require.NoError(t, err)
	assert.Len(t, hist.Outcomes, 1)
}

func TestOutcomeAccuracy(t *testing.T) {
	tests := []struct {
		name   string
		pred   models.Prediction
		actual models.ActualOutcome
		want   float64
	}{
		{"nothing comparable", models.Prediction{PredictedOutcome: "a"}, models.ActualOutcome{Outcome: "b"}, 0},
		{"severity exact", models.Prediction{PredictedOutcome: "a", Severity: "low"}, models.ActualOutcome{Outcome: "b", Severity: "LOW"}, 1},
		{"severity two apart", models.Prediction{PredictedOutcome: "a", Severity: "low"}, models.ActualOutcome{Outcome: "b", Severity: "high"}, 0},
		{"timeline within a week", models.Prediction{PredictedOutcome: "a", TimelineDays: ptr(1)}, models.ActualOutcome{Outcome: "b", TimelineDays: ptr(8)}, 0.5},
		{"one side missing timeline", models.Prediction{PredictedOutcome: "a", Severity: "medium", TimelineDays: ptr(1)}, models.ActualOutcome{Outcome: "b", Severity: "high"}, 0.5},
		{"empty outcomes never match", models.Prediction{}, models.ActualOutcome{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, outcomeAccuracy(tt.pred, tt.actual), 1e-9)
		})
	}
}

func TestPerformanceCategory(t *testing.T) {
	assert.Equal(t, PerformanceExcellent, performanceCategory(0.9))
	assert.Equal(t, PerformanceGood, performanceCategory(0.7))
	assert.Equal(t, PerformanceAcceptable, performanceCategory(0.5))
	assert.Equal(t, PerformanceNeedsImprovement, performanceCategory(0.49))
}

func TestRegisterPrediction_Validation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.RegisterPrediction(ctx, PredictionRequest{ModelType: "m"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = e.RegisterPrediction(ctx, PredictionRequest{PredictedOutcome: "x", ModelType: "m", Severity: "extreme"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	p, err := e.RegisterPrediction(ctx, PredictionRequest{PredictionID: "p-1", PredictedOutcome: "x", ModelType: "m"})
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)

	_, err = e.RegisterPrediction(ctx, PredictionRequest{PredictionID: "p-1", PredictedOutcome: "y", ModelType: "m"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdatePatterns_Merge(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.UpdatePatterns(ctx, PatternRequest{
		PatternType: "media_sentiment",
		Data:        map[string]any{"channel": "print", "lag_hours": 6.0},
		Confidence:  0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.UpdateCount)
	assert.Equal(t, 0.9, first.Confidence)
	assert.Equal(t, []string{"media", "social", "content"}, first.AffectedProviders)
	assert.Equal(t, "emerging", first.Strength)

	second, err := e.UpdatePatterns(ctx, PatternRequest{
		PatternType: "media_sentiment",
		Data:        map[string]any{"channel": "social"},
		Confidence:  0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.UpdateCount)
	assert.InDelta(t, 0.7, second.Confidence, 1e-9)
	assert.Equal(t, map[string]any{"channel": "social", "lag_hours": 6.0}, second.Data)
}

func TestUpdatePatterns_Strength(t *testing.T) {
	assert.Equal(t, "strong", patternStrength(0.85, 11))
	assert.Equal(t, "moderate", patternStrength(0.85, 10))
	assert.Equal(t, "moderate", patternStrength(0.65, 6))
	assert.Equal(t, "emerging", patternStrength(0.65, 5))
}

func TestUpdatePatterns_ConcurrentSameType(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.UpdatePatterns(ctx, PatternRequest{PatternType: "market_signal", Data: map[string]any{fmt.Sprint(i): true}, Confidence: 0.8})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := e.store.GetPattern(ctx, "market_signal")
	require.NoError(t, err)
	assert.Equal(t, n, p.UpdateCount)
	assert.Len(t, p.Data, n)
	assert.InDelta(t, 0.8, p.Confidence, 1e-9)
}

func TestUpdatePatterns_Errors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.UpdatePatterns(ctx, PatternRequest{PatternType: "x", Confidence: 1.5})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	unknown, err := e.UpdatePatterns(ctx, PatternRequest{PatternType: "weather", Confidence: 0.5})
	require.NoError(t, err)
	assert.Equal(t, []string{"intelligence"}, unknown.AffectedProviders)

	failing := newTestEngine(t, withFailingWrites(t))
	_, err = failing.UpdatePatterns(ctx, PatternRequest{PatternType: "x", Confidence: 0.5})
	assert.ErrorIs(t, err, ErrExternalDependency)
}

func TestImprovePredictions(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		current  float64
		expected float64
		days     int
	}{
		{0.5, 0.15, 14},
		{0.75, 0.08, 7},
		{0.85, 0.03, 3},
	}
	for _, tt := range tests {
		plan, err := e.ImprovePredictions(ctx, ImprovementRequest{ModelType: "m", CurrentAccuracy: ptr(tt.current)})
		require.NoError(t, err)
		assert.Equal(t, 0.9, plan.TargetAccuracy)
		assert.Equal(t, tt.expected, plan.ExpectedImprovement)
		assert.Equal(t, tt.days, plan.RetrainingSchedule.IntervalDays)
		assert.Equal(t, testNow.AddDate(0, 0, tt.days), plan.RetrainingSchedule.NextRetraining)
		assert.NotEmpty(t, plan.Strategies)
	}
}

func TestImprovePredictions_UsesStoredMetric(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.ImprovePredictions(ctx, ImprovementRequest{ModelType: "fresh"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.store.UpdateModelMetric(ctx, "fresh", 0.6)
	require.NoError(t, err)

	plan, err := e.ImprovePredictions(ctx, ImprovementRequest{ModelType: "fresh", TargetAccuracy: ptr(0.95)})
	require.NoError(t, err)
	assert.Equal(t, 0.6, plan.CurrentAccuracy)
	assert.InDelta(t, 0.35, plan.Gap, 1e-9)
	assert.Equal(t, 0.15, plan.ExpectedImprovement)
}

func TestImprovePredictions_ExplicitZeroTarget(t *testing.T) {
	e := newTestEngine(t)

	plan, err := e.ImprovePredictions(context.Background(), ImprovementRequest{
		ModelType:       "m",
		CurrentAccuracy: ptr(0.4),
		TargetAccuracy:  ptr(0.0),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, plan.TargetAccuracy)
	assert.InDelta(t, -0.4, plan.Gap, 1e-9)
	assert.Equal(t, incrementalImprovement.strategies, plan.Strategies)

	_, err = e.ImprovePredictions(context.Background(), ImprovementRequest{
		ModelType:      "m",
		TargetAccuracy: ptr(1.5),
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestShareLearnings(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.ShareLearnings(ctx, ShareRequest{
		LearningType: "crisis_pattern",
		Insights:     map[string]any{"actionable": true, "validated": true},
	})
	require.NoError(t, err)
	require.Len(t, res.Providers, 3)
	assert.Equal(t, ProviderImpact{ProviderID: "crisis", EstimatedImpact: "high", IntegrationPriority: "immediate"}, res.Providers[0])
	assert.Equal(t, ProviderImpact{ProviderID: "media", EstimatedImpact: "medium", IntegrationPriority: "immediate"}, res.Providers[1])
	assert.Equal(t, ProviderImpact{ProviderID: "stakeholder", EstimatedImpact: "medium", IntegrationPriority: "next_cycle"}, res.Providers[2])
	assert.Equal(t, "high", res.ImpactEstimate.ImmediateValue)
	assert.InDelta(t, 0.6, res.ImpactEstimate.NetworkEffect, 1e-9)
	assert.True(t, res.Persisted)

	shares, err := e.store.ListLearningShares(ctx, "crisis_pattern")
	require.NoError(t, err)
	assert.Len(t, shares, 1)
}

func TestShareLearnings_GeneralAndUnknown(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	general, err := e.ShareLearnings(ctx, ShareRequest{LearningType: "audience_behavior", Insights: map[string]any{"validated": true}})
	require.NoError(t, err)
	assert.Len(t, general.Providers, 10)
	assert.Equal(t, "medium", general.ImpactEstimate.ImmediateValue)
	assert.InDelta(t, 2.0, general.ImpactEstimate.NetworkEffect, 1e-9)

	unknown, err := e.ShareLearnings(ctx, ShareRequest{LearningType: "lunch_preferences"})
	require.NoError(t, err)
	require.Len(t, unknown.Providers, 1)
	assert.Equal(t, "intelligence", unknown.Providers[0].ProviderID)
	assert.Equal(t, "low", unknown.ImpactEstimate.ImmediateValue)
}

func TestIntegrationPriority(t *testing.T) {
	assert.Equal(t, "immediate", integrationPriority(0.8))
	assert.Equal(t, "next_cycle", integrationPriority(0.6))
	assert.Equal(t, "scheduled", integrationPriority(0.59))
}
