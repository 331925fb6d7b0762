package providers

import (
	"context"
	"fmt"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// Static returns canned assessments keyed by provider id. It is deterministic
// and never fails, which makes it the default for local runs and tests.
type Static struct {
	canned map[string]models.Assessment
}

// NewStatic creates the canned analyzer.
func NewStatic() *Static {
	return &Static{canned: cannedAssessments()}
}

// Name implements Analyzer.
func (s *Static) Name() string {
	return BackendStatic
}

// Analyze implements Analyzer.
func (s *Static) Analyze(ctx context.Context, provider models.CapabilityProvider, query, queryContext string) (models.Assessment, error) {
	if err := ctx.Err(); err != nil {
		return models.Assessment{}, err
	}
	a, ok := s.canned[provider.ID]
	if !ok {
		a = models.Assessment{
			Summary:     fmt.Sprintf("%s has no specific view on this query", provider.ID),
			KeyFindings: []string{"No provider-specific signal detected"},
			Themes:      []string{"situational_awareness"},
			Stance:      "monitor",
			Confidence:  0.6,
		}
	}
	a.ProviderID = provider.ID
	a.KeyFindings = append([]string(nil), a.KeyFindings...)
	a.Themes = append([]string(nil), a.Themes...)
	return a, nil
}

func cannedAssessments() map[string]models.Assessment {
	return map[string]models.Assessment{
		"intelligence": {
			Summary:     "Market signals indicate rising attention on the topic",
			KeyFindings: []string{"Competitor activity increased over the last week", "Search interest trending upward"},
			Themes:      []string{"market_momentum", "competitive_pressure", "stakeholder_concern"},
			Stance:      "prepare",
			Confidence:  0.82,
		},
		"crisis": {
			Summary:     "Reputational exposure is material if left unaddressed",
			KeyFindings: []string{"Negative narrative forming in early coverage", "Response window is narrow"},
			Themes:      []string{"reputational_risk", "stakeholder_concern", "response_speed"},
			Stance:      "act_now",
			Confidence:  0.88,
		},
		"media": {
			Summary:     "Journalists are likely to pick up the story within days",
			KeyFindings: []string{"Two tier-one outlets covering adjacent stories", "Inbound media inquiries expected"},
			Themes:      []string{"media_interest", "reputational_risk", "response_speed"},
			Stance:      "prepare",
			Confidence:  0.78,
		},
		"content": {
			Summary:     "Existing messaging can be adapted with moderate effort",
			KeyFindings: []string{"Core narrative still applies", "Holding statement template available"},
			Themes:      []string{"message_readiness", "media_interest"},
			Stance:      "prepare",
			Confidence:  0.74,
		},
		"stakeholder": {
			Summary:     "Investors and employees will expect proactive communication",
			KeyFindings: []string{"Employee sentiment sensitive to the topic", "Investor relations calendar has an upcoming touchpoint"},
			Themes:      []string{"stakeholder_concern", "internal_alignment"},
			Stance:      "prepare",
			Confidence:  0.8,
		},
		"regulatory": {
			Summary:     "No immediate regulatory exposure, but disclosure obligations should be checked",
			KeyFindings: []string{"Sector regulator has published related guidance", "Disclosure review recommended"},
			Themes:      []string{"compliance_exposure", "reputational_risk"},
			Stance:      "monitor",
			Confidence:  0.7,
		},
		"opportunity": {
			Summary:     "There is room to lead the conversation with a positive angle",
			KeyFindings: []string{"Thought-leadership gap in current coverage"},
			Themes:      []string{"market_momentum", "thought_leadership"},
			Stance:      "prepare",
			Confidence:  0.65,
		},
		"social": {
			Summary:     "Social sentiment is mixed with pockets of amplification",
			KeyFindings: []string{"Sentiment skewing negative among engaged users", "Volume below viral threshold"},
			Themes:      []string{"sentiment_shift", "media_interest"},
			Stance:      "monitor",
			Confidence:  0.72,
		},
		"analytics": {
			Summary:     "Historical analogues suggest moderate impact on share of voice",
			KeyFindings: []string{"Comparable events reduced share of voice for two weeks"},
			Themes:      []string{"measurement_baseline", "market_momentum"},
			Stance:      "monitor",
			Confidence:  0.76,
		},
		"presentation": {
			Summary:     "An executive briefing deck would align leadership quickly",
			KeyFindings: []string{"Leadership lacks a single view of the situation"},
			Themes:      []string{"internal_alignment"},
			Stance:      "prepare",
			Confidence:  0.62,
		},
	}
}
