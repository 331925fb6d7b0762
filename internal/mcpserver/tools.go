package mcpserver

import "github.com/NivraSD/SignalDesk-sub028/internal/engine"

type toolDef struct {
	name        string
	description string
	schema      string
}

const tierEnum = `{"type":"string","enum":["critical","high","medium","low"]}`

var toolDefs = []toolDef{
	{
		name:        engine.OpAssessUrgency,
		description: "Score how urgent a situation is from six factors and get the response SLA and providers to involve.",
		schema: `{"type":"object","properties":{
			"type":{"type":"string","description":"Situation type, e.g. crisis, regulatory_enforcement, media_inquiry"},
			"deadline":{"type":"string","format":"date-time"},
			"affected_people":{"type":"integer","minimum":0},
			"financial_impact":{"type":"number","minimum":0},
			"stakeholder_pressure":{"type":"string","enum":["intense","high","moderate","low"]},
			"media_attention":{"type":"string","enum":["viral","national","regional","local","none"]},
			"regulatory_risk":{"type":"string","enum":["enforcement","investigation","inquiry","none"]}
		}}`,
	},
	{
		name:        engine.OpPrioritizeSignal,
		description: "Prioritize an incoming intelligence signal, queue it and notify the relevant providers.",
		schema: `{"type":"object","required":["signal_type"],"properties":{
			"source_provider_id":{"type":"string"},
			"signal_type":{"type":"string"},
			"data":{"type":"object","description":"Signal payload; affected_count, financial_impact and media_attention add score bonuses"},
			"affected_entities":{"type":"array","items":{"type":"string"}}
		}}`,
	},
	{
		name:        engine.OpCoordinatedAnalysis,
		description: "Ask several providers for independent analyses of a query and synthesize consensus and divergence.",
		schema: `{"type":"object","required":["query"],"properties":{
			"query":{"type":"string"},
			"context":{"type":"string"},
			"providers":{"type":"array","items":{"type":"string"},"maxItems":5}
		}}`,
	},
	{
		name:        engine.OpCoordinateResponse,
		description: "Build a phased response plan for a situation at a given urgency.",
		schema: `{"type":"object","required":["situation","urgency"],"properties":{
			"situation":{"type":"string"},
			"urgency":` + tierEnum + `,
			"available_resources":{"type":"array","items":{"type":"string"}}
		}}`,
	},
	{
		name:        engine.OpAllocateResources,
		description: "Assign tasks to providers by capability match, weight and remaining capacity.",
		schema: `{"type":"object","properties":{
			"tasks":{"type":"array","items":{"type":"object","properties":{
				"id":{"type":"string"},"name":{"type":"string"},"type":{"type":"string"},
				"priority":{"type":"integer"},"effort":{"type":"number"},"duration_minutes":{"type":"integer"}
			}}},
			"constraints":{"type":"object","properties":{
				"available_providers":{"type":"array","items":{"type":"string"}},
				"bottleneck_threshold":{"type":"number"}
			}}
		}}`,
	},
	{
		name:        engine.OpEscalateIssue,
		description: "Escalate an issue along the severity path and record who was notified.",
		schema: `{"type":"object","required":["issue","severity"],"properties":{
			"issue":{"type":"string"},
			"severity":` + tierEnum + `,
			"affected_stakeholders":{"type":"array","items":{"type":"string"}}
		}}`,
	},
	{
		name:        engine.OpRegisterPrediction,
		description: "Register a prediction so its outcome can be scored later.",
		schema: `{"type":"object","required":["predicted_outcome","model_type"],"properties":{
			"prediction_id":{"type":"string"},
			"predicted_outcome":{"type":"string"},
			"severity":` + tierEnum + `,
			"timeline_days":{"type":"number"},
			"model_type":{"type":"string"}
		}}`,
	},
	{
		name:        engine.OpRecordOutcome,
		description: "Score a registered prediction against what actually happened and update model accuracy.",
		schema: `{"type":"object","required":["prediction_id","actual_outcome"],"properties":{
			"prediction_id":{"type":"string"},
			"actual_outcome":{"type":"object","required":["outcome"],"properties":{
				"outcome":{"type":"string"},"severity":{"type":"string"},"timeline_days":{"type":"number"}
			}},
			"contributing_factors":{"type":"array","items":{"type":"string"}}
		}}`,
	},
	{
		name:        engine.OpUpdatePatterns,
		description: "Merge newly observed pattern data and recompute its confidence.",
		schema: `{"type":"object","required":["pattern_type","data"],"properties":{
			"pattern_type":{"type":"string"},
			"data":{"type":"object"}
		}}`,
	},
	{
		name:        engine.OpImprovePredictions,
		description: "Plan model improvements from the gap between current and target accuracy.",
		schema: `{"type":"object","required":["model_type"],"properties":{
			"model_type":{"type":"string"},
			"current_accuracy":{"type":"number","minimum":0,"maximum":1},
			"target_accuracy":{"type":"number","minimum":0,"maximum":1}
		}}`,
	},
	{
		name:        engine.OpShareLearnings,
		description: "Share a learning with the providers it concerns and estimate its impact.",
		schema: `{"type":"object","required":["learning_type"],"properties":{
			"learning_type":{"type":"string"},
			"insights":{"type":"object"},
			"source_provider":{"type":"string"}
		}}`,
	},
	{
		name:        engine.OpListSignals,
		description: "List queued signals, newest first.",
		schema: `{"type":"object","properties":{
			"status":{"type":"string","enum":["pending","acknowledged"]},
			"limit":{"type":"integer","minimum":1,"maximum":500}
		}}`,
	},
	{
		name:        engine.OpAcknowledgeSignal,
		description: "Mark a pending signal as handled.",
		schema:      `{"type":"object","required":["signal_id"],"properties":{"signal_id":{"type":"string"}}}`,
	},
	{
		name:        engine.OpGetModelMetrics,
		description: "Get the running accuracy of a model type.",
		schema:      `{"type":"object","required":["model_type"],"properties":{"model_type":{"type":"string"}}}`,
	},
	{
		name:        engine.OpLearningHistory,
		description: "List recorded learning outcomes, newest first.",
		schema: `{"type":"object","properties":{
			"model_type":{"type":"string"},
			"limit":{"type":"integer","minimum":1,"maximum":500}
		}}`,
	},
}
