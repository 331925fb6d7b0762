package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// ResponseRequest asks for a phased plan for a situation.
type ResponseRequest struct {
	Situation          string      `json:"situation"`
	Urgency            models.Tier `json:"urgency"`
	AvailableResources []string    `json:"available_resources,omitempty"`
}

// CoordinateResponse builds a phased response plan. Each task goes to the
// phase provider with the fewest tasks so far in the plan; ties go to the
// earlier candidate.
func (e *Engine) CoordinateResponse(ctx context.Context, req ResponseRequest) (*models.ResponsePlan, error) {
	if !req.Urgency.Valid() {
		return nil, fmt.Errorf("%w: unknown urgency %q", ErrInvalidRequest, req.Urgency)
	}

	available := e.registry.IDs()
	if len(req.AvailableResources) > 0 {
		available = e.registry.Filter(req.AvailableResources)
	}

	var templates []phaseTemplate
	if req.Urgency == models.TierCritical || req.Urgency == models.TierHigh {
		templates = append(templates, immediatePhase)
	}
	templates = append(templates, analysisPhase, executionPhase, monitorPhase)

	plan := &models.ResponsePlan{
		Situation:          req.Situation,
		UrgencyTier:        req.Urgency,
		TaskAssignments:    []models.PhaseTask{},
		ResourceAllocation: map[string]float64{},
		UpdateCadence:      updateCadences[req.Urgency],
		EscalationTriggers: append([]string(nil), escalationTriggers[req.Urgency]...),
	}

	load := make(map[string]int)
	for i, tmpl := range templates {
		phase := models.Phase{
			PhaseNumber:       i + 1,
			Name:              tmpl.name,
			DurationEstimate:  tmpl.duration,
			AssignedProviders: []string{},
			Tasks:             append([]string(nil), tmpl.tasks...),
		}
		for _, c := range tmpl.candidates {
			if containsString(available, c) {
				phase.AssignedProviders = append(phase.AssignedProviders, c)
			}
		}

		for _, task := range tmpl.tasks {
			pid := leastLoaded(phase.AssignedProviders, load)
			if pid != UnassignedProvider {
				load[pid]++
			}
			plan.TaskAssignments = append(plan.TaskAssignments, models.PhaseTask{
				PhaseNumber: phase.PhaseNumber,
				Task:        task,
				ProviderID:  pid,
			})
		}

		if n := len(phase.AssignedProviders); n > 0 {
			share := 100.0 / float64(n)
			for _, pid := range phase.AssignedProviders {
				plan.ResourceAllocation[pid] += share
			}
		}
		plan.Phases = append(plan.Phases, phase)
	}

	e.logger.Info("response plan built",
		zap.String("urgency", string(req.Urgency)),
		zap.Int("phases", len(plan.Phases)),
		zap.Int("tasks", len(plan.TaskAssignments)),
	)
	e.audit(ctx, "response.plan", req, string(req.Urgency), "",
		fmt.Sprintf("phases=%d providers=%s", len(plan.Phases), strings.Join(available, ",")))

	return plan, nil
}

func leastLoaded(candidates []string, load map[string]int) string {
	if len(candidates) == 0 {
		return UnassignedProvider
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if load[c] < load[best] {
			best = c
		}
	}
	return best
}
