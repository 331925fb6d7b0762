package engine

import (
	"time"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// UrgencyRequest describes a situation to score. Every field is optional and
// an absent field scores its neutral default.
type UrgencyRequest struct {
	Type                string     `json:"type,omitempty"`
	Deadline            *time.Time `json:"deadline,omitempty"`
	AffectedPeople      int64      `json:"affected_people,omitempty"`
	FinancialImpact     float64    `json:"financial_impact,omitempty"`
	StakeholderPressure string     `json:"stakeholder_pressure,omitempty"`
	MediaAttention      string     `json:"media_attention,omitempty"`
	RegulatoryRisk      string     `json:"regulatory_risk,omitempty"`
}

// factorOrder fixes summation order so identical input yields identical bits.
var factorOrder = []string{
	FactorSignalType,
	FactorTiming,
	FactorImpact,
	FactorStakeholderPressure,
	FactorMediaAttention,
	FactorRegulatoryRisk,
}

// AssessUrgency scores a situation as the unweighted mean of six factors.
func (e *Engine) AssessUrgency(req UrgencyRequest) *models.UrgencyAssessment {
	factors := map[string]float64{
		FactorSignalType:          lookupScore(urgencyTypeScores, req.Type, defaultUrgencyTypeScore),
		FactorTiming:              timingScore(req.Deadline, e.now()),
		FactorImpact:              impactScore(req.AffectedPeople, req.FinancialImpact),
		FactorStakeholderPressure: lookupScore(stakeholderPressureScores, req.StakeholderPressure, defaultStakeholderPressureScore),
		FactorMediaAttention:      lookupScore(mediaAttentionScores, req.MediaAttention, defaultMediaAttentionScore),
		FactorRegulatoryRisk:      lookupScore(regulatoryRiskScores, req.RegulatoryRisk, defaultRegulatoryRiskScore),
	}

	var sum float64
	for _, name := range factorOrder {
		sum += factors[name]
	}
	score := sum / float64(len(factorOrder))
	tier := models.TierForScore(score)

	return &models.UrgencyAssessment{
		UrgencyTier:          tier,
		UrgencyScore:         score,
		ResponseSLA:          responseSLAs[tier],
		FactorBreakdown:      factors,
		RecommendedProviders: append([]string(nil), urgencyProviders[tier]...),
		EscalationRequired:   tier == models.TierCritical,
	}
}

func lookupScore(table map[string]float64, key string, fallback float64) float64 {
	if v, ok := table[normalizeKey(key)]; ok {
		return v
	}
	return fallback
}

// timingScore rises as the deadline approaches. Deadlines already passed count
// as the most urgent bucket.
func timingScore(deadline *time.Time, now time.Time) float64 {
	if deadline == nil {
		return 0.5
	}
	remaining := deadline.Sub(now)
	switch {
	case remaining < time.Hour:
		return 1.0
	case remaining < 24*time.Hour:
		return 0.8
	case remaining < 7*24*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

func impactScore(people int64, financial float64) float64 {
	switch {
	case people > 10_000:
		return 1.0
	case financial > 10_000_000:
		return 0.9
	case people > 1_000:
		return 0.7
	case financial > 1_000_000:
		return 0.6
	case people > 100:
		return 0.5
	default:
		return 0.4
	}
}
