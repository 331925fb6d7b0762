package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// SignalRequest is an incoming unit of intelligence to prioritize and route.
type SignalRequest struct {
	SourceProviderID string         `json:"source_provider_id"`
	SignalType       string         `json:"signal_type"`
	Data             map[string]any `json:"data,omitempty"`
	AffectedEntities []string       `json:"affected_entities,omitempty"`
}

// SignalResult reports where a signal was queued and who was told about it.
type SignalResult struct {
	SignalID          string      `json:"signal_id"`
	PriorityTier      models.Tier `json:"priority_tier"`
	PriorityScore     float64     `json:"priority_score"`
	NotifiedProviders []string    `json:"notified_providers"`
	QueueDepth        int         `json:"queue_depth"`
	Persisted         bool        `json:"persisted"`
}

// PrioritizeSignal scores a signal, picks the providers it concerns and queues
// it together with one notification per provider.
func (e *Engine) PrioritizeSignal(ctx context.Context, req SignalRequest) (*SignalResult, error) {
	if strings.TrimSpace(req.SignalType) == "" {
		return nil, fmt.Errorf("%w: signal_type is required", ErrInvalidRequest)
	}

	score := signalScore(req.SignalType, req.Data)
	sig := &models.Signal{
		ID:                   uuid.New().String(),
		SourceProviderID:     req.SourceProviderID,
		SignalType:           req.SignalType,
		PriorityTier:         models.TierForScore(score),
		PriorityScore:        score,
		Timestamp:            e.now().UTC(),
		Payload:              req.Data,
		AffectedEntities:     req.AffectedEntities,
		RecommendedProviders: e.relevantProviders(req.SignalType),
		Status:               models.SignalStatusPending,
	}

	result := &SignalResult{
		SignalID:          sig.ID,
		PriorityTier:      sig.PriorityTier,
		PriorityScore:     score,
		NotifiedProviders: sig.RecommendedProviders,
	}

	sctx, cancel := e.storeCtx(ctx)
	_, err := e.store.CreateSignal(sctx, sig)
	cancel()
	if err != nil {
		e.persistFailed("signal", err, zap.String("signal_id", sig.ID))
	} else {
		result.Persisted = true
	}

	sctx, cancel = e.storeCtx(ctx)
	depth, err := e.store.CountPendingSignals(sctx)
	cancel()
	if err != nil {
		e.externalFailed("store", err, zap.String("lookup", "queue_depth"))
	} else {
		result.QueueDepth = depth
		e.metrics.SignalQueueDepth.Set(float64(depth))
	}

	e.logger.Info("signal prioritized",
		zap.String("signal_id", sig.ID),
		zap.String("signal_type", sig.SignalType),
		zap.String("tier", string(sig.PriorityTier)),
		zap.Float64("score", score),
		zap.Strings("providers", sig.RecommendedProviders),
	)
	e.audit(ctx, "signal.prioritize", req, string(sig.PriorityTier), sig.ID,
		fmt.Sprintf("score=%.2f providers=%s", score, strings.Join(sig.RecommendedProviders, ",")))

	return result, nil
}

// signalScore is the base score for the type plus any bonuses, capped at 1.
func signalScore(signalType string, data map[string]any) float64 {
	score := lookupScore(signalBaseScores, signalType, defaultSignalBaseScore)
	if n, ok := numberField(data, "affected_count"); ok && n > affectedCountThreshold {
		score += affectedCountBonus
	}
	if n, ok := numberField(data, "financial_impact"); ok && n > financialImpactThreshold {
		score += financialImpactBonus
	}
	if s, ok := data["media_attention"].(string); ok && normalizeKey(s) == "high" {
		score += highMediaAttentionBonus
	}
	return math.Min(score, 1.0)
}

// relevantProviders maps a signal type to registered providers, falling back
// to the default provider when none of the table's providers are registered.
func (e *Engine) relevantProviders(signalType string) []string {
	candidates, ok := signalRelevance[normalizeKey(signalType)]
	if !ok {
		candidates = []string{e.registry.DefaultID()}
	}
	ids := e.registry.Filter(candidates)
	if len(ids) == 0 {
		ids = []string{e.registry.DefaultID()}
	}
	return ids
}

// numberField reads a numeric payload value. Decoded JSON numbers arrive as
// float64; numeric strings are accepted too.
func numberField(data map[string]any, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
