// Package engine implements the SignalDesk coordination operations: urgency
// assessment, signal routing, coordinated analysis, response planning,
// resource allocation, escalation and the outcome feedback loop.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/audit"
	"github.com/NivraSD/SignalDesk-sub028/internal/metrics"
	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/NivraSD/SignalDesk-sub028/internal/providers"
	"github.com/NivraSD/SignalDesk-sub028/internal/registry"
	"github.com/NivraSD/SignalDesk-sub028/internal/store"
)

// Operation names accepted by Execute.
const (
	OpAssessUrgency       = "assess_urgency"
	OpPrioritizeSignal    = "prioritize_signal"
	OpCoordinatedAnalysis = "coordinated_analysis"
	OpCoordinateResponse  = "coordinate_response"
	OpAllocateResources   = "allocate_resources"
	OpEscalateIssue       = "escalate_issue"
	OpRecordOutcome       = "record_outcome"
	OpUpdatePatterns      = "update_patterns"
	OpImprovePredictions  = "improve_predictions"
	OpShareLearnings      = "share_learnings"
	OpRegisterPrediction  = "register_prediction"
	OpListSignals         = "list_signals"
	OpAcknowledgeSignal   = "acknowledge_signal"
	OpGetModelMetrics     = "get_model_metrics"
	OpLearningHistory     = "learning_history"
)

const (
	defaultStoreTimeout    = 5 * time.Second
	defaultAnalysisTimeout = 30 * time.Second
	maxAnalysisProviders   = 5
)

// Store is the persistence the engine needs. *store.Store satisfies it.
type Store interface {
	audit.Sink
	CreateSignal(ctx context.Context, sig *models.Signal) ([]models.ProviderNotification, error)
	ListSignals(ctx context.Context, status string, limit int) ([]models.Signal, error)
	CountPendingSignals(ctx context.Context) (int, error)
	AcknowledgeSignal(ctx context.Context, id string) error
	CreateEscalation(ctx context.Context, esc *models.Escalation) error
	CreatePrediction(ctx context.Context, p *models.Prediction) error
	GetPrediction(ctx context.Context, id string) (*models.Prediction, error)
	RecordLearningOutcome(ctx context.Context, lo *models.LearningOutcome) (*models.ModelMetric, error)
	ListLearningOutcomes(ctx context.Context, modelType string, limit int) ([]models.LearningOutcome, error)
	GetModelMetric(ctx context.Context, modelType string) (*models.ModelMetric, error)
	UpsertPattern(ctx context.Context, patternType string, data map[string]any, confidence float64) (*models.Pattern, error)
	CreateLearningShare(ctx context.Context, share *models.LearningShare) error
}

var _ Store = (*store.Store)(nil)

// Options configures an Engine. Registry and Store are required.
type Options struct {
	Registry        *registry.Registry
	Store           Store
	Analyzer        providers.Analyzer
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	Tracer          trace.Tracer
	Clock           func() time.Time
	StoreTimeout    time.Duration
	AnalysisTimeout time.Duration
}

type operation func(ctx context.Context, raw json.RawMessage) (any, error)

// Engine executes coordination operations. It holds no package-level state,
// so several engines can run side by side.
type Engine struct {
	registry        *registry.Registry
	store           Store
	analyzer        providers.Analyzer
	pdr             *audit.PDRWriter
	logger          *zap.Logger
	metrics         *metrics.Metrics
	tracer          trace.Tracer
	now             func() time.Time
	storeTimeout    time.Duration
	analysisTimeout time.Duration
	locks           keyedMutex
	ops             map[string]operation
}

// New creates an Engine from opts, filling defaults for optional fields.
func New(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, errors.New("engine: registry is required")
	}
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}

	e := &Engine{
		registry:        opts.Registry,
		store:           opts.Store,
		analyzer:        opts.Analyzer,
		pdr:             audit.NewPDRWriter(opts.Store),
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		tracer:          opts.Tracer,
		now:             opts.Clock,
		storeTimeout:    opts.StoreTimeout,
		analysisTimeout: opts.AnalysisTimeout,
	}
	if e.analyzer == nil {
		e.analyzer = providers.NewStatic()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.metrics == nil {
		e.metrics = metrics.NewUnregistered()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("github.com/NivraSD/SignalDesk-sub028/internal/engine")
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.storeTimeout <= 0 {
		e.storeTimeout = defaultStoreTimeout
	}
	if e.analysisTimeout <= 0 {
		e.analysisTimeout = defaultAnalysisTimeout
	}

	e.ops = map[string]operation{
		OpAssessUrgency: handle(func(_ context.Context, req UrgencyRequest) (*models.UrgencyAssessment, error) {
			return e.AssessUrgency(req), nil
		}),
		OpPrioritizeSignal:    handle(e.PrioritizeSignal),
		OpCoordinatedAnalysis: handle(e.CoordinatedAnalysis),
		OpCoordinateResponse:  handle(e.CoordinateResponse),
		OpAllocateResources: handle(func(_ context.Context, req AllocationRequest) (*AllocationResult, error) {
			return e.AllocateResources(req)
		}),
		OpEscalateIssue:      handle(e.EscalateIssue),
		OpRecordOutcome:      handle(e.RecordOutcome),
		OpUpdatePatterns:     handle(e.UpdatePatterns),
		OpImprovePredictions: handle(e.ImprovePredictions),
		OpShareLearnings:     handle(e.ShareLearnings),
		OpRegisterPrediction: handle(e.RegisterPrediction),
		OpListSignals:        handle(e.ListSignals),
		OpAcknowledgeSignal:  handle(e.AcknowledgeSignal),
		OpGetModelMetrics:    handle(e.GetModelMetrics),
		OpLearningHistory:    handle(e.LearningHistory),
	}
	return e, nil
}

// handle adapts a typed operation to the JSON boundary.
func handle[Req, Resp any](fn func(context.Context, Req) (Resp, error)) operation {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req Req
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
			}
		}
		return fn(ctx, req)
	}
}

// Registry returns the provider directory the engine routes against.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Operations lists every operation name accepted by Execute, sorted.
func (e *Engine) Operations() []string {
	names := make([]string, 0, len(e.ops))
	for name := range e.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named operation against a JSON request body.
func (e *Engine) Execute(ctx context.Context, name string, raw json.RawMessage) (any, error) {
	op, ok := e.ops[name]
	if !ok {
		e.metrics.OperationsTotal.WithLabelValues("unknown", "unknown_operation").Inc()
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}

	ctx, span := e.tracer.Start(ctx, "engine."+name, trace.WithAttributes(attribute.String("signaldesk.operation", name)))
	defer span.End()

	start := time.Now()
	result, err := op(ctx, raw)
	e.metrics.OperationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		code := ErrorCode(err)
		e.metrics.OperationsTotal.WithLabelValues(name, code).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		e.logger.Debug("operation failed", zap.String("operation", name), zap.String("code", code), zap.Error(err))
		return nil, err
	}
	e.metrics.OperationsTotal.WithLabelValues(name, "ok").Inc()
	return result, nil
}

// storeCtx bounds a single store call.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storeTimeout)
}

// persistFailed records a dropped write. The caller still returns its result.
func (e *Engine) persistFailed(entity string, err error, fields ...zap.Field) {
	e.metrics.PersistFailures.WithLabelValues(entity).Inc()
	fields = append(fields, zap.String("entity", entity), zap.Error(err))
	e.logger.Error("persist failed, returning unsaved result", fields...)
}

// externalFailed records a failed read or collaborator call.
func (e *Engine) externalFailed(dependency string, err error, fields ...zap.Field) {
	e.metrics.ExternalFailures.WithLabelValues(dependency).Inc()
	fields = append(fields, zap.String("dependency", dependency), zap.Error(err))
	e.logger.Warn("external dependency failed", fields...)
}

// audit writes a decision record. Failures are counted like any other dropped write.
func (e *Engine) audit(ctx context.Context, action string, inputs any, outcome, subjectID, details string) {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if _, err := e.pdr.Record(sctx, action, inputs, outcome, subjectID, details); err != nil {
		e.persistFailed("pdr", err, zap.String("action", action))
	}
}

// lookupError turns a store read failure into an engine error.
func (e *Engine) lookupError(what, key string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %q", ErrNotFound, what, key)
	}
	e.externalFailed("store", err, zap.String("lookup", what))
	return fmt.Errorf("%w: load %s: %v", ErrExternalDependency, what, err)
}
