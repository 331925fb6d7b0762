// Package models defines the core domain types for SignalDesk.
package models

import "time"

// Tier is a discrete urgency or priority level.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierCritical, TierHigh, TierMedium, TierLow:
		return true
	}
	return false
}

// TierForScore maps a 0-1 score onto a tier using the shared thresholds.
func TierForScore(score float64) Tier {
	switch {
	case score > 0.8:
		return TierCritical
	case score > 0.6:
		return TierHigh
	case score > 0.4:
		return TierMedium
	default:
		return TierLow
	}
}

// CapabilityProvider is a downstream actor the coordinator can route work to.
type CapabilityProvider struct {
	ID             string   `json:"id" yaml:"id" koanf:"id"`
	Capabilities   []string `json:"capabilities" yaml:"capabilities" koanf:"capabilities"`
	PriorityWeight float64  `json:"priority_weight" yaml:"priority_weight" koanf:"priority_weight"`
}

// SignalStatus is the queue state of a signal.
type SignalStatus string

const (
	SignalStatusPending      SignalStatus = "pending"
	SignalStatusAcknowledged SignalStatus = "acknowledged"
)

// Signal is a prioritized unit of incoming intelligence.
type Signal struct {
	ID                   string         `json:"id"`
	SourceProviderID     string         `json:"source_provider_id"`
	SignalType           string         `json:"signal_type"`
	PriorityTier         Tier           `json:"priority_tier"`
	PriorityScore        float64        `json:"priority_score"`
	Timestamp            time.Time      `json:"timestamp"`
	Payload              map[string]any `json:"payload,omitempty"`
	AffectedEntities     []string       `json:"affected_entities,omitempty"`
	RecommendedProviders []string       `json:"recommended_providers"`
	Status               SignalStatus   `json:"status"`
}

// NotificationStatus is the delivery state of a provider notification.
type NotificationStatus string

const (
	NotificationPending    NotificationStatus = "pending"
	NotificationDelivering NotificationStatus = "delivering"
	NotificationDelivered  NotificationStatus = "delivered"
	NotificationFailed     NotificationStatus = "failed"
)

// ProviderNotification tells one provider that a signal concerns it.
type ProviderNotification struct {
	ID           string             `json:"id"`
	SignalID     string             `json:"signal_id"`
	ProviderID   string             `json:"provider_id"`
	Status       NotificationStatus `json:"status"`
	Attempts     int                `json:"attempts"`
	LastError    string             `json:"last_error,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	DeliveredAt  *time.Time         `json:"delivered_at,omitempty"`
	ClaimedUntil *time.Time         `json:"claimed_until,omitempty"` // lease on a delivering notification
}

// UrgencyAssessment is the output of the urgency assessor.
type UrgencyAssessment struct {
	UrgencyTier          Tier               `json:"urgency_tier"`
	UrgencyScore         float64            `json:"urgency_score"`
	ResponseSLA          string             `json:"response_sla"`
	FactorBreakdown      map[string]float64 `json:"factor_breakdown"`
	RecommendedProviders []string           `json:"recommended_providers"`
	EscalationRequired   bool               `json:"escalation_required"`
}

// Assessment is one provider's independent view of a query.
type Assessment struct {
	ProviderID  string   `json:"provider_id"`
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"key_findings"`
	Themes      []string `json:"themes"`
	Stance      string   `json:"stance"`
	Confidence  float64  `json:"confidence"`
}

// Phase is one stage of a response plan.
type Phase struct {
	PhaseNumber       int      `json:"phase_number"`
	Name              string   `json:"name"`
	DurationEstimate  string   `json:"duration_estimate"`
	AssignedProviders []string `json:"assigned_providers"`
	Tasks             []string `json:"tasks"`
}

// PhaseTask binds a single phase task to a provider.
type PhaseTask struct {
	PhaseNumber int    `json:"phase_number"`
	Task        string `json:"task"`
	ProviderID  string `json:"provider_id"`
}

// ResponsePlan is a phased recommendation for handling a situation.
type ResponsePlan struct {
	Situation          string             `json:"situation"`
	UrgencyTier        Tier               `json:"urgency_tier"`
	Phases             []Phase            `json:"phases"`
	TaskAssignments    []PhaseTask        `json:"task_assignments"`
	ResourceAllocation map[string]float64 `json:"resource_allocation"`
	UpdateCadence      string             `json:"update_cadence"`
	EscalationTriggers []string           `json:"escalation_triggers"`
}

// TaskAssignment is the allocator's placement of one task.
type TaskAssignment struct {
	TaskID                   string    `json:"task_id"`
	TaskName                 string    `json:"task_name"`
	AssignedProviderID       string    `json:"assigned_provider_id"`
	EstimatedDurationMinutes int       `json:"estimated_duration_minutes"`
	Priority                 int       `json:"priority"`
	ComputedStartTime        time.Time `json:"computed_start_time"`
}

// EscalationNotification records one tier being told about an escalation.
type EscalationNotification struct {
	Tier       string    `json:"tier"`
	Recipients []string  `json:"recipients"`
	Method     string    `json:"method"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// Escalation is the audit record of a critical issue being escalated.
type Escalation struct {
	ID                   string                   `json:"id"`
	Issue                string                   `json:"issue"`
	Severity             Tier                     `json:"severity"`
	Timestamp            time.Time                `json:"timestamp"`
	AffectedStakeholders []string                 `json:"affected_stakeholders,omitempty"`
	EscalationPath       []string                 `json:"escalation_path"`
	Notifications        []EscalationNotification `json:"notifications"`
	ActivatedTeams       []string                 `json:"activated_teams"`
	DecisionAuthority    string                   `json:"decision_authority"`
}

// Prediction is a forecast made by a model that can later be scored.
type Prediction struct {
	ID               string    `json:"prediction_id"`
	PredictedOutcome string    `json:"predicted_outcome"`
	Severity         string    `json:"severity,omitempty"`
	TimelineDays     *float64  `json:"timeline_days,omitempty"`
	ModelType        string    `json:"model_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// ActualOutcome is what really happened for a prediction.
type ActualOutcome struct {
	Outcome      string   `json:"outcome"`
	Severity     string   `json:"severity,omitempty"`
	TimelineDays *float64 `json:"timeline_days,omitempty"`
}

// LearningOutcome compares a prediction with its real-world result.
type LearningOutcome struct {
	ID              string        `json:"id"`
	Prediction      Prediction    `json:"prediction"`
	ActualOutcome   ActualOutcome `json:"actual_outcome"`
	Accuracy        float64       `json:"accuracy"`
	LearnedPatterns []string      `json:"learned_patterns"`
	Timestamp       time.Time     `json:"timestamp"`
}

// ModelMetric tracks running accuracy per model type.
type ModelMetric struct {
	ModelType       string    `json:"model_type"`
	AvgAccuracy     float64   `json:"avg_accuracy"`
	PredictionCount int       `json:"prediction_count"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Pattern is a learned regularity that is merged on repeated updates.
type Pattern struct {
	Type        string         `json:"type"`
	Data        map[string]any `json:"data"`
	Confidence  float64        `json:"confidence"`
	UpdateCount int            `json:"update_count"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// LearningShare records a learning pushed out to a set of providers.
type LearningShare struct {
	ID           string         `json:"id"`
	LearningType string         `json:"learning_type"`
	Insights     map[string]any `json:"insights,omitempty"`
	Providers    []string       `json:"providers"`
	CreatedAt    time.Time      `json:"created_at"`
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	SubjectID  string    `json:"subject_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
