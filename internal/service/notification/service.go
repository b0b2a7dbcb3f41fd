// Package notification fans repair lifecycle events out to in-app
// notifications, email and the realtime channel.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/repair-desk/internal/email"
	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
	"github.com/jwalitptl/repair-desk/pkg/logger"
	"github.com/jwalitptl/repair-desk/pkg/messaging"
	"github.com/jwalitptl/repair-desk/pkg/metrics"
)

// unreadCacheTTL bounds how stale a count can be when an invalidation from
// another process is missed.
const unreadCacheTTL = 15 * time.Second

// InvalidationChannel carries the IDs of customers whose unread count changed.
// Every process caching counts evicts its copy on receipt.
const InvalidationChannel = "notifications-unread-invalidate"

// ChannelFor is the realtime channel carrying a customer's notifications.
func ChannelFor(customerID string) string {
	return "notifications:" + customerID
}

type Service struct {
	notifications repository.NotificationRepository
	repairs       repository.RepairRepository
	users         repository.UserRepository
	mailer        email.Sender
	broker        messaging.Broker
	unread        *cache.Cache
	log           *logger.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewService wires the fan-out. A nil mailer disables email and a nil broker
// disables realtime push.
func NewService(store *repository.Store, mailer email.Sender, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		notifications: store.Notifications,
		repairs:       store.Repairs,
		users:         store.Users,
		mailer:        mailer,
		broker:        broker,
		unread:        cache.New(unreadCacheTTL, 2*unreadCacheTTL),
		log:           log,
		metrics:       m,
		now:           time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NotifySubmission persists the submission notification.
func (s *Service) NotifySubmission(ctx context.Context, customerID, repairRequestID string, snap model.RepairSnapshot) (*model.RepairNotification, error) {
	return s.persist(ctx, "", customerID, repairRequestID, SubmissionContent(snap), snap)
}

// NotifyStatusChange persists the notification for a status.
func (s *Service) NotifyStatusChange(ctx context.Context, customerID, repairRequestID, status string, snap model.RepairSnapshot) (*model.RepairNotification, error) {
	return s.persist(ctx, "", customerID, repairRequestID, StatusContent(status, snap), snap)
}

// persist stores one notification. eventID makes the write idempotent; an
// empty one is replaced by the notification's own ID.
func (s *Service) persist(ctx context.Context, eventID, customerID, repairRequestID string, c Content, snap model.RepairSnapshot) (*model.RepairNotification, error) {
	n := &model.RepairNotification{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		RepairRequestID: repairRequestID,
		EventID:         eventID,
		Type:            c.Type,
		Title:           c.Title,
		Message:         c.Message,
		Metadata: model.NotificationMetadata{
			EquipmentType:  snap.EquipmentType,
			DamageType:     snap.DamageType,
			Status:         snap.Status,
			RepairProgress: snap.RepairProgress,
		},
		CreatedAt: s.now(),
	}
	if n.EventID == "" {
		n.EventID = n.ID
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	s.invalidate(ctx, customerID)
	s.metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	s.push(ctx, n)
	return n, nil
}

func (s *Service) push(ctx context.Context, n *model.RepairNotification) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, ChannelFor(n.CustomerID), n); err != nil {
		s.metrics.RealtimePushFailures.Inc()
		s.log.Warn("realtime push failed", "notification_id", n.ID, "customer_id", n.CustomerID, "error", err.Error())
	}
}

func (s *Service) List(ctx context.Context, customerID string, filter *model.NotificationFilter) ([]*model.RepairNotification, error) {
	if filter == nil {
		filter = &model.NotificationFilter{}
	}
	filter.Limit, filter.Offset = model.NormalizePage(filter.Limit, filter.Offset)
	list, err := s.notifications.List(ctx, customerID, filter)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list notifications: %w", err))
	}
	return list, nil
}

func (s *Service) MarkRead(ctx context.Context, customerID, id string) error {
	if err := s.notifications.MarkRead(ctx, customerID, id, s.now()); err != nil {
		return translate(err)
	}
	s.invalidate(ctx, customerID)
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, customerID string) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, customerID, s.now())
	if err != nil {
		return 0, translate(err)
	}
	s.invalidate(ctx, customerID)
	return n, nil
}

func (s *Service) Delete(ctx context.Context, customerID, id string) error {
	if err := s.notifications.Delete(ctx, customerID, id); err != nil {
		return translate(err)
	}
	s.invalidate(ctx, customerID)
	return nil
}

func (s *Service) ClearAll(ctx context.Context, customerID string) (int64, error) {
	n, err := s.notifications.DeleteAll(ctx, customerID)
	if err != nil {
		return 0, translate(err)
	}
	s.invalidate(ctx, customerID)
	return n, nil
}

// CountUnread is served from cache until the customer's next write.
func (s *Service) CountUnread(ctx context.Context, customerID string) (int64, error) {
	if v, ok := s.unread.Get(unreadKey(customerID)); ok {
		return v.(int64), nil
	}
	n, err := s.notifications.CountUnread(ctx, customerID)
	if err != nil {
		return 0, translate(err)
	}
	s.unread.SetDefault(unreadKey(customerID), n)
	return n, nil
}

// Stream delivers the customer's new notifications until ctx is done.
func (s *Service) Stream(ctx context.Context, customerID string) (<-chan *model.RepairNotification, error) {
	if s.broker == nil {
		return nil, apperrors.ServiceUnavailable("realtime notifications are disabled", nil)
	}
	raw, err := s.broker.Subscribe(ctx, ChannelFor(customerID))
	if err != nil {
		return nil, apperrors.ServiceUnavailable("failed to subscribe", err)
	}
	out := make(chan *model.RepairNotification)
	go func() {
		defer close(out)
		for msg := range raw {
			var n model.RepairNotification
			if err := json.Unmarshal(msg, &n); err != nil {
				s.log.Warn("dropping malformed realtime message", "customer_id", customerID, "error", err.Error())
				continue
			}
			select {
			case out <- &n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Service) invalidate(ctx context.Context, customerID string) {
	s.unread.Delete(unreadKey(customerID))
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, InvalidationChannel, customerID); err != nil {
		s.log.Warn("unread invalidation broadcast failed", "customer_id", customerID, "error", err.Error())
	}
}

// WatchInvalidations evicts cached unread counts written by other processes
// until ctx is done. It returns nil when no broker is configured.
func (s *Service) WatchInvalidations(ctx context.Context) error {
	if s.broker == nil {
		return nil
	}
	raw, err := s.broker.Subscribe(ctx, InvalidationChannel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to unread invalidations: %w", err)
	}
	go func() {
		for msg := range raw {
			var customerID string
			if err := json.Unmarshal(msg, &customerID); err != nil {
				s.log.Warn("dropping malformed unread invalidation", "error", err.Error())
				continue
			}
			s.unread.Delete(unreadKey(customerID))
		}
	}()
	return nil
}

func unreadKey(customerID string) string {
	return "unread:" + customerID
}

func translate(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("notification", err)
	}
	return apperrors.Internal(err)
}
