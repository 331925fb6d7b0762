package engine

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/NivraSD/SignalDesk-sub028/internal/registry"
)

func TestPrioritizeSignal_CrisisWithAllBonuses(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.PrioritizeSignal(ctx, SignalRequest{
		SourceProviderID: "social",
		SignalType:       "crisis",
		Data: map[string]any{
			"affected_count":   500.0,
			"financial_impact": 2_000_000.0,
			"media_attention":  "high",
		},
		AffectedEntities: []string{"acme"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.TierCritical, res.PriorityTier)
	assert.Equal(t, 1.0, res.PriorityScore)
	assert.Equal(t, []string{"crisis", "media", "stakeholder", "content", "intelligence"}, res.NotifiedProviders)
	assert.Equal(t, 1, res.QueueDepth)
	assert.True(t, res.Persisted)

	sig, err := e.store.GetSignal(ctx, res.SignalID)
	require.NoError(t, err)
	assert.Equal(t, models.SignalStatusPending, sig.Status)
	assert.Equal(t, []string{"acme"}, sig.AffectedEntities)

	notes, err := e.store.ListNotificationsForSignal(ctx, res.SignalID)
	require.NoError(t, err)
	assert.Len(t, notes, 5)
}

func TestPrioritizeSignal_TierMonotonic(t *testing.T) {
	rank := map[models.Tier]int{models.TierLow: 0, models.TierMedium: 1, models.TierHigh: 2, models.TierCritical: 3}

	counts := []float64{0, 50, 100, 101, 10_000}
	impacts := []float64{0, 1_000_000, 1_000_001, 50_000_000}
	attention := []string{"", "low", "high"}

	for signalType := range signalBaseScores {
		// Raising any one input while holding the others fixed never lowers the tier.
		for _, c := range counts {
			for _, f := range impacts {
				for _, m := range attention {
					data := map[string]any{"affected_count": c, "financial_impact": f, "media_attention": m}
					score := signalScore(signalType, data)
					tier := models.TierForScore(score)
					for _, c2 := range counts {
						if c2 < c {
							continue
						}
						higher := map[string]any{"affected_count": c2, "financial_impact": f, "media_attention": m}
						assert.GreaterOrEqual(t, rank[models.TierForScore(signalScore(signalType, higher))], rank[tier])
					}
					for _, f2 := range impacts {
						if f2 < f {
							continue
						}
						higher := map[string]any{"affected_count": c, "financial_impact": f2, "media_attention": m}
						assert.GreaterOrEqual(t, rank[models.TierForScore(signalScore(signalType, higher))], rank[tier])
					}
					higher := map[string]any{"affected_count": c, "financial_impact": f, "media_attention": "high"}
					assert.GreaterOrEqual(t, rank[models.TierForScore(signalScore(signalType, higher))], rank[tier])
				}
			}
		}
	}
}

func TestSignalScore(t *testing.T) {
	assert.Equal(t, 0.5, signalScore("something_new", nil))
	assert.InDelta(t, 0.6, signalScore("stakeholder_change", map[string]any{"affected_count": 101.0}), 1e-9)
	assert.InDelta(t, 0.8, signalScore("market_shift", map[string]any{"financial_impact": "1500000"}), 1e-9)
	assert.InDelta(t, 0.85, signalScore("competitor_move", map[string]any{"media_attention": "HIGH"}), 1e-9)
	assert.Equal(t, 1.0, signalScore("regulatory_change", map[string]any{"financial_impact": 5e6, "affected_count": 1000}))
}

func TestPrioritizeSignal_UnknownTypeRoutesToDefault(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.PrioritizeSignal(context.Background(), SignalRequest{SignalType: "weather"})
	require.NoError(t, err)
	assert.Equal(t, models.TierMedium, res.PriorityTier)
	assert.Equal(t, []string{"intelligence"}, res.NotifiedProviders)
}

func TestPrioritizeSignal_DropsUnregisteredProviders(t *testing.T) {
	reg, err := registry.New([]models.CapabilityProvider{
		{ID: "intelligence", Capabilities: []string{"signal_detection"}, PriorityWeight: 0.9},
		{ID: "social", Capabilities: []string{"social_listening"}, PriorityWeight: 0.6},
	}, "intelligence")
	require.NoError(t, err)
	e := newTestEngine(t, func(o *Options) { o.Registry = reg })

	res, err := e.PrioritizeSignal(context.Background(), SignalRequest{SignalType: "media_coverage"})
	require.NoError(t, err)
	assert.Equal(t, []string{"social"}, res.NotifiedProviders)

	res, err = e.PrioritizeSignal(context.Background(), SignalRequest{SignalType: "regulatory_change"})
	require.NoError(t, err)
	assert.Equal(t, []string{"intelligence"}, res.NotifiedProviders)
}

func TestPrioritizeSignal_RequiresType(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.PrioritizeSignal(context.Background(), SignalRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPrioritizeSignal_PersistFailureStillReturns(t *testing.T) {
	e := newTestEngine(t, withFailingWrites(t))

	res, err := e.PrioritizeSignal(context.Background(), SignalRequest{SignalType: "crisis"})
	require.NoError(t, err)
	assert.False(t, res.Persisted)
	assert.Equal(t, models.TierCritical, res.PriorityTier)
	assert.Equal(t, 0, res.QueueDepth)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.PersistFailures.WithLabelValues("signal")))
}

func TestSignalQueue(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.PrioritizeSignal(ctx, SignalRequest{SignalType: "crisis"})
	require.NoError(t, err)
	second, err := e.PrioritizeSignal(ctx, SignalRequest{SignalType: "opportunity"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.QueueDepth)

	ack, err := e.AcknowledgeSignal(ctx, AckRequest{SignalID: first.SignalID})
	require.NoError(t, err)
	assert.Equal(t, models.SignalStatusAcknowledged, ack.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.SignalQueueDepth))

	_, err = e.AcknowledgeSignal(ctx, AckRequest{SignalID: first.SignalID})
	assert.ErrorIs(t, err, ErrNotFound)

	pending, err := e.ListSignals(ctx, SignalQuery{Status: models.SignalStatusPending})
	require.NoError(t, err)
	require.Len(t, pending.Signals, 1)
	assert.Equal(t, second.SignalID, pending.Signals[0].ID)

	all, err := e.ListSignals(ctx, SignalQuery{})
	require.NoError(t, err)
	assert.Len(t, all.Signals, 2)

	_, err = e.ListSignals(ctx, SignalQuery{Status: "archived"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
