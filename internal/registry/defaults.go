package registry

import "github.com/NivraSD/SignalDesk-sub028/internal/models"

// DefaultProviders returns the built-in provider directory.
func DefaultProviders() []models.CapabilityProvider {
	return []models.CapabilityProvider{
		{ID: "intelligence", Capabilities: []string{"market_intelligence", "competitor_tracking", "signal_detection", "trend_analysis"}, PriorityWeight: 0.9},
		{ID: "crisis", Capabilities: []string{"crisis_management", "risk_assessment", "reputation_defense", "incident_response"}, PriorityWeight: 1.0},
		{ID: "media", Capabilities: []string{"media_relations", "journalist_outreach", "media_monitoring", "press_release"}, PriorityWeight: 0.8},
		{ID: "content", Capabilities: []string{"content_generation", "press_release", "messaging", "narrative_development"}, PriorityWeight: 0.7},
		{ID: "stakeholder", Capabilities: []string{"stakeholder_mapping", "investor_relations", "employee_communications"}, PriorityWeight: 0.75},
		{ID: "regulatory", Capabilities: []string{"regulatory_compliance", "legal_review", "policy_analysis"}, PriorityWeight: 0.85},
		{ID: "opportunity", Capabilities: []string{"opportunity_detection", "market_signals", "trend_analysis"}, PriorityWeight: 0.65},
		{ID: "social", Capabilities: []string{"social_monitoring", "sentiment_analysis", "social_listening"}, PriorityWeight: 0.6},
		{ID: "analytics", Capabilities: []string{"performance_analytics", "prediction_modeling", "measurement", "reporting"}, PriorityWeight: 0.7},
		{ID: "presentation", Capabilities: []string{"presentation_building", "executive_briefing", "visual_storytelling"}, PriorityWeight: 0.5},
	}
}
