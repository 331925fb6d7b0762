// Package controlplane exposes the coordination engine over HTTP.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NivraSD/SignalDesk-sub028/internal/dispatch"
	"github.com/NivraSD/SignalDesk-sub028/internal/engine"
	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// Executor runs named engine operations.
type Executor interface {
	Execute(ctx context.Context, name string, raw json.RawMessage) (any, error)
	Operations() []string
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsSource reports dispatcher worker pool state.
type StatsSource interface {
	GetStats() dispatch.Stats
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK         bool            `json:"ok"`
	DB         string          `json:"db"`
	Version    string          `json:"version"`
	Time       string          `json:"time"`
	Operations int             `json:"operations"`
	Dispatcher *dispatch.Stats `json:"dispatcher,omitempty"`
}

// Service provides the control plane logic behind the HTTP handlers.
type Service struct {
	engine     Executor
	db         Pinger
	dispatcher StatsSource
	version    string
}

// NewService creates a new control plane service. dispatcher may be nil.
func NewService(eng Executor, db Pinger, dispatcher StatsSource, version string) *Service {
	return &Service{
		engine:     eng,
		db:         db,
		dispatcher: dispatcher,
		version:    version,
	}
}

// Execute runs one engine operation.
func (s *Service) Execute(ctx context.Context, name string, raw json.RawMessage) (any, error) {
	return s.engine.Execute(ctx, name, raw)
}

// Operations lists the accepted operation names.
func (s *Service) Operations() []string {
	return s.engine.Operations()
}

// ListSignals reads the signal queue through the engine.
func (s *Service) ListSignals(ctx context.Context, status string, limit int) (*engine.SignalList, error) {
	raw, err := json.Marshal(engine.SignalQuery{Status: models.SignalStatus(status), Limit: limit})
	if err != nil {
		return nil, err
	}
	out, err := s.engine.Execute(ctx, engine.OpListSignals, raw)
	if err != nil {
		return nil, err
	}
	list, ok := out.(*engine.SignalList)
	if !ok {
		return nil, fmt.Errorf("unexpected list_signals result %T", out)
	}
	return list, nil
}

// AcknowledgeSignal removes a signal from the pending queue.
func (s *Service) AcknowledgeSignal(ctx context.Context, id string) (any, error) {
	raw, err := json.Marshal(engine.AckRequest{SignalID: id})
	if err != nil {
		return nil, err
	}
	return s.engine.Execute(ctx, engine.OpAcknowledgeSignal, raw)
}

// Health checks the database and reports dispatcher state.
func (s *Service) Health(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		OK:         true,
		DB:         "ok",
		Version:    s.version,
		Time:       time.Now().UTC().Format(time.RFC3339),
		Operations: len(s.engine.Operations()),
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = fmt.Sprintf("error: %v", err)
	}

	if s.dispatcher != nil {
		stats := s.dispatcher.GetStats()
		resp.Dispatcher = &stats
	}
	return resp
}
