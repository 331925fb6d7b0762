package engine

import "github.com/NivraSD/SignalDesk-sub028/internal/models"

// Urgency factor names as they appear in UrgencyAssessment.FactorBreakdown.
const (
	FactorSignalType          = "signal_type"
	FactorTiming              = "timing"
	FactorImpact              = "impact"
	FactorStakeholderPressure = "stakeholder_pressure"
	FactorMediaAttention      = "media_attention"
	FactorRegulatoryRisk      = "regulatory_risk"
)

var urgencyTypeScores = map[string]float64{
	"crisis":                 1.0,
	"regulatory_enforcement": 0.9,
	"competitive_attack":     0.8,
	"reputation_threat":      0.8,
	"media_inquiry":          0.6,
	"stakeholder_concern":    0.6,
	"opportunity":            0.5,
	"routine":                0.2,
}

const defaultUrgencyTypeScore = 0.5

var stakeholderPressureScores = map[string]float64{
	"intense":  1.0,
	"high":     0.8,
	"moderate": 0.6,
	"low":      0.4,
}

const defaultStakeholderPressureScore = 0.4

var mediaAttentionScores = map[string]float64{
	"viral":    1.0,
	"national": 0.8,
	"regional": 0.5,
	"local":    0.3,
	"none":     0.2,
}

const defaultMediaAttentionScore = 0.2

var regulatoryRiskScores = map[string]float64{
	"enforcement":   1.0,
	"investigation": 0.8,
	"inquiry":       0.6,
	"none":          0.3,
}

const defaultRegulatoryRiskScore = 0.3

var responseSLAs = map[models.Tier]string{
	models.TierCritical: "immediate",
	models.TierHigh:     "within 1 hour",
	models.TierMedium:   "within 24 hours",
	models.TierLow:      "within 1 week",
}

var urgencyProviders = map[models.Tier][]string{
	models.TierCritical: {"crisis", "media", "stakeholder", "regulatory"},
	models.TierHigh:     {"crisis", "media", "intelligence"},
	models.TierMedium:   {"intelligence", "content", "analytics"},
	models.TierLow:      {"intelligence", "analytics"},
}

// --- Signal prioritization ---

var signalBaseScores = map[string]float64{
	"crisis":             1.0,
	"regulatory_change":  0.8,
	"competitor_move":    0.7,
	"media_coverage":     0.6,
	"opportunity":        0.6,
	"market_shift":       0.6,
	"stakeholder_change": 0.5,
}

const (
	defaultSignalBaseScore = 0.5

	affectedCountThreshold   = 100
	affectedCountBonus       = 0.1
	financialImpactThreshold = 1_000_000
	financialImpactBonus     = 0.2
	highMediaAttentionBonus  = 0.15
)

var signalRelevance = map[string][]string{
	"crisis":             {"crisis", "media", "stakeholder", "content", "intelligence"},
	"regulatory_change":  {"regulatory", "stakeholder", "intelligence"},
	"competitor_move":    {"intelligence", "opportunity", "content"},
	"media_coverage":     {"media", "social", "content"},
	"opportunity":        {"opportunity", "content", "media"},
	"market_shift":       {"intelligence", "analytics", "opportunity"},
	"stakeholder_change": {"stakeholder", "intelligence"},
}

// --- Response coordination ---

type phaseTemplate struct {
	name       string
	duration   string
	tasks      []string
	candidates []string
}

var (
	immediatePhase = phaseTemplate{
		name:       "Immediate Response",
		duration:   "0-2 hours",
		tasks:      []string{"Assess situation severity", "Activate response team", "Issue holding statement"},
		candidates: []string{"crisis", "media", "stakeholder"},
	}
	analysisPhase = phaseTemplate{
		name:       "Analysis & Strategy",
		duration:   "2-24 hours",
		tasks:      []string{"Analyze stakeholder impact", "Develop messaging strategy", "Identify key audiences"},
		candidates: []string{"intelligence", "analytics", "stakeholder", "regulatory"},
	}
	executionPhase = phaseTemplate{
		name:       "Execution",
		duration:   "1-3 days",
		tasks:      []string{"Deploy communications", "Engage media contacts", "Brief stakeholders"},
		candidates: []string{"content", "media", "social", "stakeholder"},
	}
	monitorPhase = phaseTemplate{
		name:       "Monitor & Adjust",
		duration:   "ongoing",
		tasks:      []string{"Track sentiment", "Measure message reach", "Adjust strategy"},
		candidates: []string{"social", "analytics", "intelligence"},
	}
)

// UnassignedProvider marks a task whose phase had no available provider.
const UnassignedProvider = "unassigned"

var updateCadences = map[models.Tier]string{
	models.TierCritical: "every 15 minutes",
	models.TierHigh:     "every hour",
	models.TierMedium:   "every 4 hours",
	models.TierLow:      "daily",
}

var escalationTriggers = map[models.Tier][]string{
	models.TierCritical: {
		"Coverage spreads to national or international outlets",
		"Regulator or law enforcement issues a public statement",
		"Executive or board involvement is requested",
	},
	models.TierHigh: {
		"Negative sentiment exceeds 60% of mentions",
		"A tier-one outlet requests comment",
		"Key stakeholder publicly raises concerns",
	},
	models.TierMedium: {
		"Mention volume doubles within 24 hours",
		"Issue spreads to a new stakeholder group",
	},
	models.TierLow: {
		"Issue receives media coverage",
	},
}

// --- Resource allocation ---

const (
	allocWeightFactor       = 0.7
	allocHeadroomFactor     = 0.3
	defaultTaskEffort       = 10.0
	maxTaskEffort           = 1000.0
	maxAllocationTasks      = 1000
	defaultTaskDuration     = 60
	defaultBottleneckLevel  = 80.0
	startDelayPerUtilBucket = 15 // minutes per 10% of utilization already queued
	lowUtilizationLevel     = 30.0
)

// --- Escalation ---

var escalationPaths = map[models.Tier][]string{
	models.TierCritical: {"immediate_response_team", "department_heads", "executive_team", "board_of_directors"},
	models.TierHigh:     {"immediate_response_team", "department_heads", "executive_team"},
	models.TierMedium:   {"team_leads", "department_heads"},
	models.TierLow:      {"team_leads"},
}

type tierContact struct {
	recipients []string
	method     string
}

var tierContacts = map[string]tierContact{
	"immediate_response_team": {
		recipients: []string{"crisis_lead", "communications_director", "legal_counsel"},
		method:     "phone+email+sms",
	},
	"department_heads": {
		recipients: []string{"head_of_communications", "head_of_legal", "head_of_operations", "head_of_hr"},
		method:     "email+sms",
	},
	"executive_team": {
		recipients: []string{"ceo", "cfo", "coo", "chief_communications_officer"},
		method:     "phone+email",
	},
	"board_of_directors": {
		recipients: []string{"board_chair", "audit_committee_chair"},
		method:     "phone+secure_email",
	},
	"team_leads": {
		recipients: []string{"communications_team_lead", "social_media_lead"},
		method:     "email",
	},
}

var responseProtocols = map[models.Tier]string{
	models.TierCritical: "Convene crisis team within 15 minutes; all external statements require CEO and legal sign-off",
	models.TierHigh:     "Convene response team within 1 hour; external statements require executive approval",
	models.TierMedium:   "Department heads coordinate a response plan within 24 hours",
	models.TierLow:      "Team leads monitor and report at the next scheduled review",
}

var activatedTeams = map[models.Tier][]string{
	models.TierCritical: {"crisis_response", "executive_communications", "legal", "media_relations", "stakeholder_relations"},
	models.TierHigh:     {"crisis_response", "media_relations", "stakeholder_relations"},
	models.TierMedium:   {"communications", "media_relations"},
	models.TierLow:      {"communications"},
}

var responsibleProviders = map[models.Tier][]string{
	models.TierCritical: {"crisis", "media", "stakeholder", "regulatory", "content"},
	models.TierHigh:     {"crisis", "media", "content"},
	models.TierMedium:   {"media", "content", "intelligence"},
	models.TierLow:      {"intelligence"},
}

var decisionAuthorities = map[models.Tier]string{
	models.TierCritical: "CEO",
	models.TierHigh:     "Executive Team",
	models.TierMedium:   "Department Head",
	models.TierLow:      "Team Lead",
}

var immediateActions = []string{
	"Confirm facts and establish a single source of truth",
	"Prepare a holding statement",
	"Brief spokespeople and frontline staff",
	"Set up monitoring for media and social channels",
	"Log all decisions and communications",
}

const nextUpdateInterval = 30 // minutes

// EscalationStatusSent marks a notification handed to its channel.
const EscalationStatusSent = "sent"

// --- Feedback loop ---

var severityRank = map[string]int{
	"low":      0,
	"medium":   1,
	"high":     2,
	"critical": 3,
}

var patternProviders = map[string][]string{
	"crisis_response":      {"crisis", "media", "stakeholder"},
	"media_sentiment":      {"media", "social", "content"},
	"regulatory_trend":     {"regulatory", "stakeholder"},
	"market_signal":        {"intelligence", "opportunity", "analytics"},
	"stakeholder_behavior": {"stakeholder", "content"},
}

var learningProviders = map[string][]string{
	"crisis_pattern":      {"crisis", "media", "stakeholder"},
	"media_trend":         {"media", "social", "content"},
	"regulatory_update":   {"regulatory", "stakeholder", "intelligence"},
	"competitive_insight": {"intelligence", "opportunity", "content"},
}

// Learning types that apply to every provider.
var generalLearningTypes = map[string]bool{
	"general":                     true,
	"communication_effectiveness": true,
	"audience_behavior":           true,
}

type improvementBundle struct {
	strategies    []string
	expected      float64
	retrainInDays int
}

var (
	majorImprovement = improvementBundle{
		strategies:    []string{"Expand training dataset with recent outcomes", "Introduce ensemble of complementary models"},
		expected:      0.15,
		retrainInDays: 14,
	}
	moderateImprovement = improvementBundle{
		strategies:    []string{"Tune hyperparameters against recent outcomes", "Re-weight features that drove recent misses"},
		expected:      0.08,
		retrainInDays: 7,
	}
	incrementalImprovement = improvementBundle{
		strategies:    []string{"Incremental fine-tuning on latest outcomes"},
		expected:      0.03,
		retrainInDays: 3,
	}
)
