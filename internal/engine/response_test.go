package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

func TestCoordinateResponse_CriticalHasFourPhases(t *testing.T) {
	e := newTestEngine(t)

	plan, err := e.CoordinateResponse(context.Background(), ResponseRequest{
		Situation: "Product recall",
		Urgency:   models.TierCritical,
	})
	require.NoError(t, err)

	require.Len(t, plan.Phases, 4)
	names := make([]string, len(plan.Phases))
	for i, p := range plan.Phases {
		names[i] = p.Name
		assert.Equal(t, i+1, p.PhaseNumber)
	}
	assert.Equal(t, []string{"Immediate Response", "Analysis & Strategy", "Execution", "Monitor & Adjust"}, names)
	assert.Equal(t, []string{"crisis", "media", "stakeholder"}, plan.Phases[0].AssignedProviders)
	assert.Equal(t, "every 15 minutes", plan.UpdateCadence)
	assert.NotEmpty(t, plan.EscalationTriggers)
	assert.Len(t, plan.TaskAssignments, 12)
}

func TestCoordinateResponse_LowSkipsImmediatePhase(t *testing.T) {
	e := newTestEngine(t)

	plan, err := e.CoordinateResponse(context.Background(), ResponseRequest{Situation: "Minor blog post", Urgency: models.TierLow})
	require.NoError(t, err)

	require.Len(t, plan.Phases, 3)
	assert.Equal(t, "Analysis & Strategy", plan.Phases[0].Name)
	assert.Equal(t, 1, plan.Phases[0].PhaseNumber)
	assert.Equal(t, "daily", plan.UpdateCadence)
}

func TestCoordinateResponse_LeastLoadedAssignment(t *testing.T) {
	e := newTestEngine(t)

	plan, err := e.CoordinateResponse(context.Background(), ResponseRequest{
		Situation: "Executive misconduct allegation",
		Urgency:   models.TierHigh,
	})
	require.NoError(t, err)

	// The immediate phase spreads its three tasks over its three providers.
	var immediate []string
	for _, ta := range plan.TaskAssignments {
		if ta.PhaseNumber == 1 {
			immediate = append(immediate, ta.ProviderID)
		}
	}
	assert.Equal(t, []string{"crisis", "media", "stakeholder"}, immediate)

	// Stakeholder already holds a task, so phase two starts with the others.
	var phase2 []string
	for _, ta := range plan.TaskAssignments {
		if ta.PhaseNumber == 2 {
			phase2 = append(phase2, ta.ProviderID)
		}
	}
	assert.Equal(t, []string{"intelligence", "analytics", "regulatory"}, phase2)

	// Same request, same plan.
	again, err := e.CoordinateResponse(context.Background(), ResponseRequest{
		Situation: "Executive misconduct allegation",
		Urgency:   models.TierHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, plan.TaskAssignments, again.TaskAssignments)
}

func TestCoordinateResponse_AllocationShares(t *testing.T) {
	e := newTestEngine(t)

	plan, err := e.CoordinateResponse(context.Background(), ResponseRequest{
		Situation:          "Regulator inquiry",
		Urgency:            models.TierMedium,
		AvailableResources: []string{"intelligence", "social"},
	})
	require.NoError(t, err)

	// Analysis: intelligence alone (100). Execution: social alone (100).
	// Monitor: social and intelligence (50 each).
	assert.InDelta(t, 150.0, plan.ResourceAllocation["intelligence"], 1e-9)
	assert.InDelta(t, 150.0, plan.ResourceAllocation["social"], 1e-9)
}

func TestCoordinateResponse_UnassignedWhenPhaseHasNoProviders(t *testing.T) {
	e := newTestEngine(t)

	plan, err := e.CoordinateResponse(context.Background(), ResponseRequest{
		Situation:          "Quiet week",
		Urgency:            models.TierLow,
		AvailableResources: []string{"presentation"},
	})
	require.NoError(t, err)

	for _, p := range plan.Phases {
		assert.Empty(t, p.AssignedProviders)
	}
	for _, ta := range plan.TaskAssignments {
		assert.Equal(t, UnassignedProvider, ta.ProviderID)
	}
	assert.Empty(t, plan.ResourceAllocation)
}

func TestCoordinateResponse_RejectsUnknownUrgency(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.CoordinateResponse(context.Background(), ResponseRequest{Situation: "x", Urgency: "severe"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
