package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/repair-desk/internal/email"
	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	"github.com/jwalitptl/repair-desk/internal/repository/memory"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
	"github.com/jwalitptl/repair-desk/pkg/logger"
	"github.com/jwalitptl/repair-desk/pkg/metrics"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []*email.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg *email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) to(addr string) []*email.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*email.Message
	for _, m := range f.sent {
		if m.To[0] == addr {
			out = append(out, m)
		}
	}
	return out
}

type fakeBroker struct {
	mu        sync.Mutex
	published map[string][][]byte
	subs      map[string]chan []byte
	err       error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: map[string][][]byte{}, subs: map[string]chan []byte{}}
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	if b.err != nil {
		return b.err
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], data)
	if ch, ok := b.subs[channel]; ok {
		ch <- data
	}
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 10)
	b.mu.Lock()
	b.subs[channel] = ch
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, channel)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

func (b *fakeBroker) Close() error { return nil }

var fixedNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *repository.Store, *fakeMailer, *fakeBroker) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore().Repositories()
	for _, u := range []*model.User{
		{ID: "cust-1", Name: "Asha", Email: "asha@example.com", Role: model.RoleCustomer},
		{ID: "tech-1", Name: "Vik", Email: "vik@example.com", Role: model.RoleTechnician},
		{ID: "mgr-1", Name: "Lee", Email: "lee@example.com", Role: model.RoleServiceManager},
		{ID: "mgr-2", Name: "Sam", Email: "sam@example.com", Role: model.RoleServiceManager},
	} {
		require.NoError(t, store.Users.Create(ctx, u))
	}
	mailer := &fakeMailer{}
	broker := newFakeBroker()
	svc := NewService(store, mailer, broker, logger.Nop(), metrics.Nop()).
		WithClock(func() time.Time { return fixedNow })
	return svc, store, mailer, broker
}

func snapshot(status model.RepairStatus, progress int) model.RepairSnapshot {
	cost := 100.0
	return model.RepairSnapshot{
		EquipmentType:  "Cricket Bat",
		DamageType:     "Cracked handle",
		Status:         status,
		CurrentStage:   "stage",
		RepairProgress: progress,
		CostEstimate:   &cost,
		TimeEstimate:   "3 days",
	}
}

func event(id string, typ model.RepairEventType, snap model.RepairSnapshot) *model.RepairEvent {
	return &model.RepairEvent{
		ID:         id,
		Type:       typ,
		RepairID:   "rep-1",
		CustomerID: "cust-1",
		Snapshot:   snap,
		OccurredAt: fixedNow,
	}
}

func TestStatusContent(t *testing.T) {
	snap := snapshot(model.RepairStatusApproved, 0)
	tests := []struct {
		status  string
		typ     model.NotificationType
		title   string
		message string
	}{
		{"Approved", model.NotificationRepairApproved, "Repair Request Approved", "Estimated cost: $100.00. Estimated time: 3 days."},
		{"APPROVED", model.NotificationRepairApproved, "Repair Request Approved", "$100.00"},
		{"Rejected", model.NotificationRepairRejected, "Repair Request Update", "Please contact us"},
		{"In Repair", model.NotificationRepairInProgress, "Repair In Progress", "Progress: 0%"},
		{"ready for pickup", model.NotificationRepairCompleted, "Repair Completed", "ready for pickup"},
		{"Completed", model.NotificationRepairCompleted, "Repair Completed", "ready for pickup"},
		{"Halfway Completed", model.NotificationRepairInProgress, "Repair Status Update", "updated to: Halfway Completed"},
		{"Customer Approved", model.NotificationRepairInProgress, "Repair Status Update", "updated to: Customer Approved"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			c := StatusContent(tt.status, snap)
			assert.Equal(t, tt.typ, c.Type)
			assert.Equal(t, tt.title, c.Title)
			assert.Contains(t, c.Message, tt.message)
		})
	}

	t.Run("rejection reason", func(t *testing.T) {
		s := snap
		s.RejectionReason = "Blade beyond repair"
		assert.Equal(t, "Blade beyond repair", StatusContent("rejected", s).Message)
	})

	t.Run("submission", func(t *testing.T) {
		c := SubmissionContent(snap)
		assert.Equal(t, model.NotificationRepairSubmitted, c.Type)
		assert.Equal(t, "Repair Request Submitted", c.Title)
		assert.Contains(t, c.Message, "Cricket Bat")
	})
}

func TestNotifyStatusChange(t *testing.T) {
	ctx := context.Background()
	svc, _, _, broker := setup(t)

	n, err := svc.NotifyStatusChange(ctx, "cust-1", "rep-1", "Approved", snapshot(model.RepairStatusApproved, 0))
	require.NoError(t, err)
	assert.Equal(t, model.NotificationRepairApproved, n.Type)
	assert.Equal(t, n.ID, n.EventID)
	assert.Equal(t, model.RepairStatusApproved, n.Metadata.Status)
	assert.False(t, n.IsRead)
	assert.Equal(t, fixedNow, n.CreatedAt)
	assert.Len(t, broker.published[ChannelFor("cust-1")], 1)

	_, err = svc.NotifySubmission(ctx, "cust-1", "rep-2", snapshot(model.RepairStatusPending, 0))
	require.NoError(t, err)

	count, err := svc.CountUnread(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestHandle_OneNotificationPerQualifyingEvent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		evt       *model.RepairEvent
		wantType  model.NotificationType
		wantNotif bool
	}{
		{"submitted", event("e1", model.EventRepairSubmitted, snapshot(model.RepairStatusPending, 0)), model.NotificationRepairSubmitted, true},
		{"approved", event("e2", model.EventRepairDecided, snapshot(model.RepairStatusApproved, 0)), model.NotificationRepairApproved, true},
		{"rejected", event("e3", model.EventRepairDecided, snapshot(model.RepairStatusRejected, 0)), model.NotificationRepairRejected, true},
		{"customer responded", event("e4", model.EventCustomerResponded, snapshot(model.RepairStatusCustomerApproved, 0)), model.NotificationRepairInProgress, true},
		{"assigned", event("e5", model.EventTechnicianAssigned, snapshot(model.RepairStatusInRepair, 0)), model.NotificationRepairInProgress, true},
		{"non milestone progress", event("e6", model.EventProgressUpdated, snapshot(model.RepairStatusInRepair, 30)), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, _ := setup(t)
			if tt.evt.Type == model.EventProgressUpdated {
				tt.evt.Milestone = false
			}
			_, err := svc.Handle(ctx, tt.evt)
			require.NoError(t, err)

			list, err := store.Notifications.List(ctx, "cust-1", &model.NotificationFilter{Limit: 10})
			require.NoError(t, err)
			if !tt.wantNotif {
				assert.Empty(t, list)
				return
			}
			require.Len(t, list, 1)
			assert.Equal(t, tt.wantType, list[0].Type)
			assert.Equal(t, tt.evt.ID, list[0].EventID)
		})
	}
}

func TestHandle_MilestoneProgress(t *testing.T) {
	ctx := context.Background()
	svc, store, mailer, _ := setup(t)

	evt := event("e1", model.EventProgressUpdated, snapshot(model.RepairStatusHalfwayCompleted, 50))
	evt.Milestone = true
	evt.TechnicianID = "tech-1"
	warnings, err := svc.Handle(ctx, evt)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	list, err := store.Notifications.List(ctx, "cust-1", &model.NotificationFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 50, list[0].Metadata.RepairProgress)

	require.Len(t, mailer.to("asha@example.com"), 1)
	assert.Len(t, mailer.to("lee@example.com"), 1)
	assert.Len(t, mailer.to("sam@example.com"), 1)
	assert.Empty(t, mailer.to("vik@example.com"))
}

func TestHandle_NonMilestoneEmailsCustomerOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, mailer, _ := setup(t)

	evt := event("e1", model.EventProgressUpdated, snapshot(model.RepairStatusInRepair, 30))
	_, err := svc.Handle(ctx, evt)
	require.NoError(t, err)

	msgs := mailer.to("asha@example.com")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Repair progress update", msgs[0].Subject)
	assert.Empty(t, mailer.to("lee@example.com"))
}

func TestHandle_CompletionAttachesReport(t *testing.T) {
	ctx := context.Background()
	svc, store, mailer, _ := setup(t)
	require.NoError(t, store.Repairs.Create(ctx, &model.RepairRequest{
		ID:                 "rep-1",
		CustomerID:         "cust-1",
		EquipmentType:      "Cricket Bat",
		DamageType:         "Cracked handle",
		Status:             model.RepairStatusReadyForPickup,
		CurrentStage:       model.StageRepairComplete,
		RepairProgress:     100,
		AssignedTechnician: "tech-1",
		CreatedAt:          fixedNow,
	}))

	evt := event("e1", model.EventProgressUpdated, snapshot(model.RepairStatusReadyForPickup, 100))
	evt.Milestone = true
	_, err := svc.Handle(ctx, evt)
	require.NoError(t, err)

	msgs := mailer.to("asha@example.com")
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Attachments, 1)
	assert.Equal(t, "repair-report-rep-1.pdf", msgs[0].Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msgs[0].Attachments[0].ContentType)
	assert.Len(t, mailer.to("lee@example.com"), 1)
}

func TestHandle_RetryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, mailer, _ := setup(t)

	evt := event("e1", model.EventRepairDecided, snapshot(model.RepairStatusApproved, 0))
	_, err := svc.Handle(ctx, evt)
	require.NoError(t, err)
	_, err = svc.Handle(ctx, evt)
	require.NoError(t, err)

	list, err := store.Notifications.List(ctx, "cust-1", &model.NotificationFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Len(t, mailer.to("asha@example.com"), 1)
}

func TestHandle_EmailFailureIsAWarning(t *testing.T) {
	ctx := context.Background()
	svc, store, mailer, broker := setup(t)
	mailer.err = errors.New("smtp down")
	broker.err = errors.New("redis down")

	warnings, err := svc.Handle(ctx, event("e1", model.EventRepairSubmitted, snapshot(model.RepairStatusPending, 0)))
	require.NoError(t, err)
	// customer confirmation plus one per service manager
	assert.Len(t, warnings, 3)

	count, err := store.Notifications.CountUnread(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestHandle_EmailDisabled(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore().Repositories()
	svc := NewService(store, nil, nil, logger.Nop(), metrics.Nop())

	warnings, err := svc.Handle(ctx, event("e1", model.EventRepairSubmitted, snapshot(model.RepairStatusPending, 0)))
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestReadSurface(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := setup(t)

	first, err := svc.NotifySubmission(ctx, "cust-1", "rep-1", snapshot(model.RepairStatusPending, 0))
	require.NoError(t, err)
	_, err = svc.NotifyStatusChange(ctx, "cust-1", "rep-1", "Approved", snapshot(model.RepairStatusApproved, 0))
	require.NoError(t, err)
	_, err = svc.NotifySubmission(ctx, "cust-2", "rep-9", snapshot(model.RepairStatusPending, 0))
	require.NoError(t, err)

	count, err := svc.CountUnread(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, svc.MarkRead(ctx, "cust-1", first.ID))
	count, err = svc.CountUnread(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "cache invalidated by MarkRead")

	unread, err := svc.List(ctx, "cust-1", &model.NotificationFilter{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, model.NotificationRepairApproved, unread[0].Type)

	err = svc.MarkRead(ctx, "cust-2", first.ID)
	assert.ErrorIs(t, err, apperrors.NotFoundError)

	n, err := svc.MarkAllRead(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, svc.Delete(ctx, "cust-1", first.ID))
	n, err = svc.ClearAll(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := svc.List(ctx, "cust-1", nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	other, err := svc.List(ctx, "cust-2", nil)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestCountUnread_InvalidatedAcrossProcesses(t *testing.T) {
	api, store, _, broker := setup(t)
	worker := NewService(store, nil, broker, logger.Nop(), metrics.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, api.WatchInvalidations(ctx))

	count, err := api.CountUnread(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = worker.NotifySubmission(ctx, "cust-1", "rep-1", snapshot(model.RepairStatusPending, 0))
	require.NoError(t, err)
	assert.Len(t, broker.published[InvalidationChannel], 1)

	assert.Eventually(t, func() bool {
		n, err := api.CountUnread(ctx, "cust-1")
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond, "count cached by the api evicted by the worker's write")
}

func TestWatchInvalidations_NoBroker(t *testing.T) {
	store := memory.NewStore().Repositories()
	svc := NewService(store, nil, nil, logger.Nop(), metrics.Nop())
	assert.NoError(t, svc.WatchInvalidations(context.Background()))
}

func TestStream(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Stream(ctx, "cust-1")
	require.NoError(t, err)

	_, err = svc.NotifySubmission(context.Background(), "cust-1", "rep-1", snapshot(model.RepairStatusPending, 0))
	require.NoError(t, err)

	select {
	case n := <-ch:
		assert.Equal(t, model.NotificationRepairSubmitted, n.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no realtime notification")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStream_Disabled(t *testing.T) {
	store := memory.NewStore().Repositories()
	svc := NewService(store, nil, nil, logger.Nop(), metrics.Nop())
	_, err := svc.Stream(context.Background(), "cust-1")
	assert.Error(t, err)
}
