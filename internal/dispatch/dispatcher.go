package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/audit"
	"github.com/NivraSD/SignalDesk-sub028/internal/metrics"
	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/NivraSD/SignalDesk-sub028/internal/notify"
)

// Store is the queue the dispatcher drains.
type Store interface {
	audit.Sink
	ClaimNotification(ctx context.Context, skipProviders []string, lease time.Duration) (*models.ProviderNotification, error)
	MarkNotificationDelivered(ctx context.Context, id string) error
	MarkNotificationFailed(ctx context.Context, id string, cause string, maxAttempts int) error
	GetSignal(ctx context.Context, id string) (*models.Signal, error)
}

// bookkeepingTimeout bounds each store write around a delivery.
const bookkeepingTimeout = 5 * time.Second

// Dispatcher claims pending notifications and hands them to a Notifier.
type Dispatcher struct {
	store    Store
	pdr      *audit.PDRWriter
	notifier notify.Notifier
	config   *Config
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu             sync.Mutex
	active         int
	providerCounts map[string]int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a dispatcher. Nil config, logger and metrics get defaults.
func New(s Store, n notify.Notifier, cfg *Config, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewUnregistered()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:          s,
		pdr:            audit.NewPDRWriter(s),
		notifier:       n,
		config:         cfg,
		logger:         logger.Named("dispatch"),
		metrics:        m,
		providerCounts: make(map[string]int),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start begins the dispatch loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.loop()
	d.logger.Info("dispatcher started",
		zap.String("notifier", d.notifier.Name()),
		zap.Int("global_max", d.config.GlobalMax),
	)
}

// Stop cancels in-flight deliveries and waits for workers to exit.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			for d.dispatchOne() {
			}
		}
	}
}

// dispatchOne claims one notification and starts a worker for it. It reports
// whether anything was dispatched.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	if d.active >= d.config.GlobalMax {
		d.mu.Unlock()
		return false
	}
	skip := d.saturatedLocked()
	d.mu.Unlock()

	n, err := d.store.ClaimNotification(d.ctx, skip, d.config.Lease())
	if err != nil {
		if d.ctx.Err() == nil {
			d.logger.Error("claim notification failed", zap.Error(err))
		}
		return false
	}
	if n == nil {
		return false
	}

	d.mu.Lock()
	d.active++
	d.providerCounts[n.ProviderID]++
	d.mu.Unlock()
	d.metrics.DispatcherInFlight.Inc()

	d.wg.Add(1)
	go d.deliver(*n)
	return true
}

// saturatedLocked lists providers at their concurrency limit. Callers hold d.mu.
func (d *Dispatcher) saturatedLocked() []string {
	var skip []string
	for id, count := range d.providerCounts {
		if count >= d.config.GetProviderLimit(id) {
			skip = append(skip, id)
		}
	}
	sort.Strings(skip)
	return skip
}

func (d *Dispatcher) deliver(n models.ProviderNotification) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		d.active--
		d.providerCounts[n.ProviderID]--
		if d.providerCounts[n.ProviderID] == 0 {
			delete(d.providerCounts, n.ProviderID)
		}
		d.mu.Unlock()
		d.metrics.DispatcherInFlight.Dec()
	}()

	sig, err := d.lookupSignal(n.SignalID)
	if err != nil {
		d.logger.Warn("signal lookup failed, notifying without payload",
			zap.String("signal_id", n.SignalID), zap.Error(err))
		sig = nil
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.config.Timeout)
	err = d.notifier.Notify(ctx, n, sig)
	cancel()

	// Bookkeeping writes must land even while stopping, or the row waits for
	// its lease to run out.
	bookCtx, bookCancel := context.WithTimeout(context.WithoutCancel(d.ctx), bookkeepingTimeout)
	defer bookCancel()

	inputs := map[string]any{
		"notification_id": n.ID,
		"provider_id":     n.ProviderID,
		"attempt":         n.Attempts,
	}

	if err != nil {
		d.metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		d.logger.Warn("notification delivery failed",
			zap.String("notification_id", n.ID),
			zap.String("provider", n.ProviderID),
			zap.Int("attempt", n.Attempts),
			zap.Error(err),
		)
		if markErr := d.store.MarkNotificationFailed(bookCtx, n.ID, err.Error(), d.config.MaxAttempts); markErr != nil {
			d.logger.Error("mark notification failed", zap.String("notification_id", n.ID), zap.Error(markErr))
		}
		d.record(bookCtx, inputs, "failure", n, err.Error())
		return
	}

	d.metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
	if markErr := d.store.MarkNotificationDelivered(bookCtx, n.ID); markErr != nil {
		d.logger.Error("mark notification delivered", zap.String("notification_id", n.ID), zap.Error(markErr))
	}
	d.record(bookCtx, inputs, "success", n, fmt.Sprintf("Delivered to %s via %s", n.ProviderID, d.notifier.Name()))
}

func (d *Dispatcher) lookupSignal(id string) (*models.Signal, error) {
	ctx, cancel := context.WithTimeout(d.ctx, bookkeepingTimeout)
	defer cancel()
	return d.store.GetSignal(ctx, id)
}

func (d *Dispatcher) record(ctx context.Context, inputs map[string]any, outcome string, n models.ProviderNotification, details string) {
	if _, err := d.pdr.Record(ctx, "notification.deliver", inputs, outcome, n.SignalID, details); err != nil {
		d.logger.Error("audit write failed", zap.String("notification_id", n.ID), zap.Error(err))
	}
}

// Stats is a snapshot of the worker pool.
type Stats struct {
	Active         int            `json:"active"`
	GlobalMax      int            `json:"global_max"`
	ProviderCounts map[string]int `json:"provider_counts"`
}

// GetStats returns current dispatcher statistics.
func (d *Dispatcher) GetStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := make(map[string]int, len(d.providerCounts))
	for k, v := range d.providerCounts {
		counts[k] = v
	}
	return Stats{Active: d.active, GlobalMax: d.config.GlobalMax, ProviderCounts: counts}
}
