package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/NivraSD/SignalDesk-sub028/internal/metrics"
	"github.com/NivraSD/SignalDesk-sub028/internal/models"
	"github.com/NivraSD/SignalDesk-sub028/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingNotifier struct {
	mu      sync.Mutex
	calls   []models.ProviderNotification
	signals []*models.Signal
	fail    error
	release chan struct{}
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(ctx context.Context, n models.ProviderNotification, sig *models.Signal) error {
	r.mu.Lock()
	r.calls = append(r.calls, n)
	r.signals = append(r.signals, sig)
	r.mu.Unlock()

	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.fail
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSignal(t *testing.T, s *store.Store, id string, providers ...string) {
	t.Helper()
	_, err := s.CreateSignal(context.Background(), &models.Signal{
		ID:                   id,
		SourceProviderID:     "intelligence",
		SignalType:           "crisis",
		PriorityTier:         models.TierCritical,
		PriorityScore:        0.95,
		Timestamp:            time.Now().UTC(),
		RecommendedProviders: providers,
	})
	require.NoError(t, err)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Timeout = time.Second
	cfg.GlobalMax = 10
	return cfg
}

func TestDispatcherDeliversAll(t *testing.T) {
	s := newTestStore(t)
	seedSignal(t, s, "sig-1", "crisis", "media", "content")

	n := &recordingNotifier{}
	m := metrics.NewUnregistered()
	d := New(s, n, testConfig(), nil, m)
	d.Start()
	defer d.Stop()

	require.Eventually(t, func() bool {
		notes, err := s.ListNotificationsForSignal(context.Background(), "sig-1")
		if err != nil {
			return false
		}
		for _, note := range notes {
			if note.Status != models.NotificationDelivered {
				return false
			}
		}
		return len(notes) == 3
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 3, n.count())
	n.mu.Lock()
	signals := append([]*models.Signal(nil), n.signals...)
	n.mu.Unlock()
	for _, sig := range signals {
		require.NotNil(t, sig)
		assert.Equal(t, "sig-1", sig.ID)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("delivered")))

	entries, err := s.ListPDR(context.Background(), "notification.deliver", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestDispatcherRetriesThenFails(t *testing.T) {
	s := newTestStore(t)
	seedSignal(t, s, "sig-1", "crisis")

	n := &recordingNotifier{fail: errors.New("provider offline")}
	cfg := testConfig()
	cfg.MaxAttempts = 2
	m := metrics.NewUnregistered()
	d := New(s, n, cfg, nil, m)
	d.Start()
	defer d.Stop()

	require.Eventually(t, func() bool {
		notes, err := s.ListNotificationsForSignal(context.Background(), "sig-1")
		return err == nil && len(notes) == 1 && notes[0].Status == models.NotificationFailed
	}, 5*time.Second, 20*time.Millisecond)

	notes, err := s.ListNotificationsForSignal(context.Background(), "sig-1")
	require.NoError(t, err)
	assert.Equal(t, 2, notes[0].Attempts)
	assert.Equal(t, "provider offline", notes[0].LastError)
	assert.Equal(t, 2, n.count())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("failed")))
}

func TestDispatcherRespectsProviderLimit(t *testing.T) {
	s := newTestStore(t)
	seedSignal(t, s, "sig-1", "crisis")
	seedSignal(t, s, "sig-2", "crisis")
	seedSignal(t, s, "sig-3", "media")

	n := &recordingNotifier{release: make(chan struct{})}
	cfg := testConfig()
	cfg.ByProvider = map[string]int{"crisis": 1, "media": 1}
	d := New(s, n, cfg, nil, nil)
	d.Start()
	defer d.Stop()

	require.Eventually(t, func() bool { return d.GetStats().Active == 2 }, 5*time.Second, 10*time.Millisecond)

	// Give the loop a few more polls to prove the second crisis notification stays queued.
	time.Sleep(100 * time.Millisecond)
	stats := d.GetStats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, map[string]int{"crisis": 1, "media": 1}, stats.ProviderCounts)
	assert.Equal(t, 2, n.count())

	close(n.release)
	require.Eventually(t, func() bool { return n.count() == 3 && d.GetStats().Active == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestDispatcherRespectsGlobalMax(t *testing.T) {
	s := newTestStore(t)
	seedSignal(t, s, "sig-1", "crisis", "media", "content")

	n := &recordingNotifier{release: make(chan struct{})}
	cfg := testConfig()
	cfg.GlobalMax = 1
	cfg.ByProvider = map[string]int{"crisis": 5, "media": 5, "content": 5}
	d := New(s, n, cfg, nil, nil)
	d.Start()
	defer d.Stop()

	require.Eventually(t, func() bool { return d.GetStats().Active == 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, n.count())

	close(n.release)
	require.Eventually(t, func() bool { return n.count() == 3 }, 5*time.Second, 10*time.Millisecond)
}

func TestDispatcherStopInterruptsDelivery(t *testing.T) {
	s := newTestStore(t)
	seedSignal(t, s, "sig-1", "crisis")

	n := &recordingNotifier{release: make(chan struct{})}
	cfg := testConfig()
	cfg.MaxAttempts = 5
	d := New(s, n, cfg, nil, nil)
	d.Start()

	require.Eventually(t, func() bool { return d.GetStats().Active == 1 }, 5*time.Second, 10*time.Millisecond)
	d.Stop()

	notes, err := s.ListNotificationsForSignal(context.Background(), "sig-1")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationPending, notes[0].Status)
	assert.Equal(t, 1, notes[0].Attempts)
}

func TestGetProviderLimit(t *testing.T) {
	cfg := &Config{ByProvider: map[string]int{"crisis": 4}}
	assert.Equal(t, 4, cfg.GetProviderLimit("crisis"))
	assert.Equal(t, 1, cfg.GetProviderLimit("media"))
}

func TestDispatcherRedeliversExpiredClaim(t *testing.T) {
	s := newTestStore(t)
	seedSignal(t, s, "sig-1", "crisis")

	// A previous daemon claimed the row and died before marking it.
	orphan, err := s.ClaimNotification(context.Background(), nil, 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, orphan)
	time.Sleep(100 * time.Millisecond)

	n := &recordingNotifier{}
	d := New(s, n, testConfig(), nil, nil)
	d.Start()
	defer d.Stop()

	require.Eventually(t, func() bool {
		notes, err := s.ListNotificationsForSignal(context.Background(), "sig-1")
		return err == nil && len(notes) == 1 && notes[0].Status == models.NotificationDelivered
	}, 5*time.Second, 20*time.Millisecond)

	notes, err := s.ListNotificationsForSignal(context.Background(), "sig-1")
	require.NoError(t, err)
	assert.Equal(t, 2, notes[0].Attempts)
	assert.Nil(t, notes[0].ClaimedUntil)
	assert.Equal(t, 1, n.count())
}

func TestConfigLease(t *testing.T) {
	cfg := &Config{Timeout: 10 * time.Second, LeaseTTL: time.Minute}
	assert.Equal(t, time.Minute, cfg.Lease())

	cfg.LeaseTTL = time.Second
	assert.Equal(t, 10*time.Second+3*bookkeepingTimeout, cfg.Lease())
}
