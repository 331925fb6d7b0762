package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

const (
	defaultSignalLimit = 50
	maxSignalLimit     = 500
)

// SignalQuery selects signals from the queue.
type SignalQuery struct {
	Status models.SignalStatus `json:"status,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
}

// SignalList is a page of signals, newest first.
type SignalList struct {
	Signals []models.Signal `json:"signals"`
}

// ListSignals reads the signal queue.
func (e *Engine) ListSignals(ctx context.Context, req SignalQuery) (*SignalList, error) {
	switch req.Status {
	case "", models.SignalStatusPending, models.SignalStatusAcknowledged:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, req.Status)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSignalLimit
	}
	if limit > maxSignalLimit {
		limit = maxSignalLimit
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	signals, err := e.store.ListSignals(sctx, string(req.Status), limit)
	if err != nil {
		e.externalFailed("store", err, zap.String("lookup", "signals"))
		return nil, fmt.Errorf("%w: list signals: %v", ErrExternalDependency, err)
	}
	if signals == nil {
		signals = []models.Signal{}
	}
	return &SignalList{Signals: signals}, nil
}

// AckRequest names a pending signal.
type AckRequest struct {
	SignalID string `json:"signal_id"`
}

// AckResult confirms a signal left the pending queue.
type AckResult struct {
	SignalID string              `json:"signal_id"`
	Status   models.SignalStatus `json:"status"`
}

// AcknowledgeSignal marks a pending signal consumed. Unknown or already
// acknowledged signals are NotFound.
func (e *Engine) AcknowledgeSignal(ctx context.Context, req AckRequest) (*AckResult, error) {
	if req.SignalID == "" {
		return nil, fmt.Errorf("%w: signal_id is required", ErrInvalidRequest)
	}

	sctx, cancel := e.storeCtx(ctx)
	err := e.store.AcknowledgeSignal(sctx, req.SignalID)
	cancel()
	if err != nil {
		return nil, e.lookupError("pending signal", req.SignalID, err)
	}

	sctx, cancel = e.storeCtx(ctx)
	if depth, err := e.store.CountPendingSignals(sctx); err == nil {
		e.metrics.SignalQueueDepth.Set(float64(depth))
	}
	cancel()

	e.audit(ctx, "signal.acknowledge", req, string(models.SignalStatusAcknowledged), req.SignalID, "")
	return &AckResult{SignalID: req.SignalID, Status: models.SignalStatusAcknowledged}, nil
}
