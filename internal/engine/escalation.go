package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// EscalationRequest raises an issue to the organisation.
type EscalationRequest struct {
	Issue                string      `json:"issue"`
	Severity             models.Tier `json:"severity"`
	AffectedStakeholders []string    `json:"affected_stakeholders,omitempty"`
}

// ActionPlan is the checklist handed to the activated teams.
type ActionPlan struct {
	ImmediateActions     []string `json:"immediate_actions"`
	ResponsibleProviders []string `json:"responsible_providers"`
	CommunicationCadence string   `json:"communication_cadence"`
}

// EscalationResult is the computed escalation and its audit record id.
type EscalationResult struct {
	EscalationID      string                          `json:"escalation_id"`
	Severity          models.Tier                     `json:"severity"`
	EscalationPath    []string                        `json:"escalation_path"`
	Notifications     []models.EscalationNotification `json:"notifications"`
	ActivatedTeams    []string                        `json:"activated_teams"`
	DecisionAuthority string                          `json:"decision_authority"`
	ResponseProtocol  string                          `json:"response_protocol"`
	ActionPlan        ActionPlan                      `json:"action_plan"`
	NextUpdate        time.Time                       `json:"next_update"`
	Persisted         bool                            `json:"persisted"`
}

// EscalateIssue walks the escalation path for the severity, notifies each
// tier and stores one escalation record.
func (e *Engine) EscalateIssue(ctx context.Context, req EscalationRequest) (*EscalationResult, error) {
	if strings.TrimSpace(req.Issue) == "" {
		return nil, fmt.Errorf("%w: issue is required", ErrInvalidRequest)
	}
	if !req.Severity.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidRequest, req.Severity)
	}

	now := e.now().UTC()
	path := append([]string(nil), escalationPaths[req.Severity]...)

	notifications := make([]models.EscalationNotification, 0, len(path))
	for _, tier := range path {
		contact := tierContacts[tier]
		notifications = append(notifications, models.EscalationNotification{
			Tier:       tier,
			Recipients: append([]string(nil), contact.recipients...),
			Method:     contact.method,
			Status:     EscalationStatusSent,
			Timestamp:  now,
		})
	}

	esc := &models.Escalation{
		ID:                   uuid.New().String(),
		Issue:                req.Issue,
		Severity:             req.Severity,
		Timestamp:            now,
		AffectedStakeholders: req.AffectedStakeholders,
		EscalationPath:       path,
		Notifications:        notifications,
		ActivatedTeams:       append([]string(nil), activatedTeams[req.Severity]...),
		DecisionAuthority:    decisionAuthorities[req.Severity],
	}

	result := &EscalationResult{
		EscalationID:      esc.ID,
		Severity:          req.Severity,
		EscalationPath:    path,
		Notifications:     notifications,
		ActivatedTeams:    esc.ActivatedTeams,
		DecisionAuthority: esc.DecisionAuthority,
		ResponseProtocol:  responseProtocols[req.Severity],
		ActionPlan: ActionPlan{
			ImmediateActions:     append([]string(nil), immediateActions...),
			ResponsibleProviders: e.registry.Filter(responsibleProviders[req.Severity]),
			CommunicationCadence: updateCadences[req.Severity],
		},
		NextUpdate: now.Add(nextUpdateInterval * time.Minute),
	}

	sctx, cancel := e.storeCtx(ctx)
	err := e.store.CreateEscalation(sctx, esc)
	cancel()
	if err != nil {
		e.persistFailed("escalation", err, zap.String("escalation_id", esc.ID))
	} else {
		result.Persisted = true
	}

	e.logger.Warn("issue escalated",
		zap.String("escalation_id", esc.ID),
		zap.String("severity", string(req.Severity)),
		zap.Strings("path", path),
	)
	e.audit(ctx, "escalation.raise", req, string(req.Severity), esc.ID, strings.Join(path, ","))

	return result, nil
}
