package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	"github.com/jwalitptl/repair-desk/internal/repository/memory"
	"github.com/jwalitptl/repair-desk/pkg/logger"
	"github.com/jwalitptl/repair-desk/pkg/metrics"
)

type fakeHandler struct {
	mu       sync.Mutex
	handled  []string
	failures int
	warnings []string
}

func (h *fakeHandler) Handle(_ context.Context, evt *model.RepairEvent) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, evt.ID)
	if h.failures > 0 {
		h.failures--
		return nil, errors.New("notification store unavailable")
	}
	return h.warnings, nil
}

type fakePublisher struct {
	published []string
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, payload.(*model.RepairEvent).ID)
	return nil
}

type getter interface {
	Get(ctx context.Context, id string) (*model.OutboxEvent, error)
}

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func setup(t *testing.T, h EventHandler, pub *fakePublisher) (*OutboxProcessor, repository.OutboxRepository, *clock) {
	t.Helper()
	store := memory.NewStore().Repositories()
	c := &clock{now: t0}
	p := NewOutboxProcessor(store.Outbox, h, pub, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
		ClaimTimeout:  5 * time.Minute,
		Retention:     24 * time.Hour,
	}, logger.Nop(), metrics.Nop()).WithClock(c.Now)
	return p, store.Outbox, c
}

func enqueue(t *testing.T, repo repository.OutboxRepository, id string) *model.OutboxEvent {
	t.Helper()
	e, err := model.NewOutboxEvent(&model.RepairEvent{
		ID:         id,
		Type:       model.EventRepairSubmitted,
		RepairID:   "rep-1",
		CustomerID: "cust-1",
		OccurredAt: t0,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), e))
	return e
}

func status(t *testing.T, repo repository.OutboxRepository, id string) *model.OutboxEvent {
	t.Helper()
	e, err := repo.(getter).Get(context.Background(), id)
	require.NoError(t, err)
	return e
}

func TestDispatch_Success(t *testing.T) {
	h := &fakeHandler{warnings: []string{"email to a@example.com failed"}}
	pub := &fakePublisher{}
	p, repo, _ := setup(t, h, pub)
	e := enqueue(t, repo, "e1")

	warnings := p.Dispatch(context.Background(), e)
	assert.Equal(t, []string{"email to a@example.com failed"}, warnings)
	assert.Equal(t, []string{"e1"}, pub.published)

	got := status(t, repo, "e1")
	assert.Equal(t, model.OutboxStatusProcessed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.ProcessedAt)
}

func TestDispatch_SkipsClaimedEvents(t *testing.T) {
	h := &fakeHandler{}
	p, repo, _ := setup(t, h, &fakePublisher{})
	e := enqueue(t, repo, "e1")

	p.Dispatch(context.Background(), e)
	p.Dispatch(context.Background(), e)
	assert.Len(t, h.handled, 1)
}

func TestDispatch_FailureSchedulesRetry(t *testing.T) {
	h := &fakeHandler{failures: 1}
	p, repo, c := setup(t, h, &fakePublisher{})
	e := enqueue(t, repo, "e1")

	warnings := p.Dispatch(context.Background(), e)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "deferred")

	got := status(t, repo, "e1")
	assert.Equal(t, model.OutboxStatusRetry, got.Status)
	require.NotNil(t, got.RetryAt)
	assert.Equal(t, t0.Add(time.Minute), *got.RetryAt)

	// not due yet
	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	c.now = t0.Add(2 * time.Minute)
	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OutboxStatusProcessed, status(t, repo, "e1").Status)
}

func TestProcessBatch_FailsAfterRetryAttempts(t *testing.T) {
	h := &fakeHandler{}
	pub := &fakePublisher{err: errors.New("broker down")}
	p, repo, c := setup(t, h, pub)
	enqueue(t, repo, "e1")

	for i := 0; i < 3; i++ {
		_, err := p.ProcessBatch(context.Background())
		require.NoError(t, err)
		c.now = c.now.Add(time.Hour)
	}

	got := status(t, repo, "e1")
	assert.Equal(t, model.OutboxStatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "broker down")

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatch_ReclaimsStaleEvents(t *testing.T) {
	h := &fakeHandler{}
	p, repo, c := setup(t, h, &fakePublisher{})
	enqueue(t, repo, "e1")

	// a worker claims and dies
	_, err := repo.Claim(context.Background(), "e1", t0)
	require.NoError(t, err)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	c.now = t0.Add(10 * time.Minute)
	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OutboxStatusProcessed, status(t, repo, "e1").Status)
}

func TestDrainAndCleanup(t *testing.T) {
	h := &fakeHandler{}
	p, repo, c := setup(t, h, &fakePublisher{})
	for _, id := range []string{"e1", "e2", "e3"} {
		enqueue(t, repo, id)
	}

	n, err := p.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	deleted, err := p.Cleanup(context.Background(), c.now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}

func TestStart_StopsOnCancel(t *testing.T) {
	h := &fakeHandler{}
	p, repo, _ := setup(t, h, &fakePublisher{})
	p.config.PollInterval = 10 * time.Millisecond
	enqueue(t, repo, "e1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.handled) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestNewOutboxProcessor_InvalidConfig(t *testing.T) {
	assert.Panics(t, func() {
		NewOutboxProcessor(nil, &fakeHandler{}, nil, OutboxProcessorConfig{}, logger.Nop(), metrics.Nop())
	})
}
