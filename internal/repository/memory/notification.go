package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type notificationRepository struct {
	s *Store
}

func (r *notificationRepository) Create(ctx context.Context, n *model.RepairNotification) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.notifications[n.ID]; ok {
		return repository.ErrDuplicate
	}
	if n.EventID != "" {
		for _, existing := range r.s.notifications {
			if existing.EventID == n.EventID {
				return repository.ErrDuplicate
			}
		}
	}
	r.s.notifications[n.ID] = *n
	return nil
}

func (r *notificationRepository) List(ctx context.Context, customerID string, filter *model.NotificationFilter) ([]*model.RepairNotification, error) {
	defer r.s.lock(ctx)()
	if filter == nil {
		filter = &model.NotificationFilter{}
	}
	var out []*model.RepairNotification
	for _, n := range r.s.notifications {
		if n.CustomerID != customerID {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		n := n
		out = append(out, &n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, customerID, id string, at time.Time) error {
	defer r.s.lock(ctx)()
	n, ok := r.s.notifications[id]
	if !ok || n.CustomerID != customerID {
		return repository.ErrNotFound
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
		r.s.notifications[id] = n
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, customerID string, at time.Time) (int64, error) {
	defer r.s.lock(ctx)()
	var count int64
	for id, n := range r.s.notifications {
		if n.CustomerID != customerID || n.IsRead {
			continue
		}
		n.IsRead = true
		n.ReadAt = &at
		r.s.notifications[id] = n
		count++
	}
	return count, nil
}

func (r *notificationRepository) Delete(ctx context.Context, customerID, id string) error {
	defer r.s.lock(ctx)()
	n, ok := r.s.notifications[id]
	if !ok || n.CustomerID != customerID {
		return repository.ErrNotFound
	}
	delete(r.s.notifications, id)
	return nil
}

func (r *notificationRepository) DeleteAll(ctx context.Context, customerID string) (int64, error) {
	defer r.s.lock(ctx)()
	var count int64
	for id, n := range r.s.notifications {
		if n.CustomerID == customerID {
			delete(r.s.notifications, id)
			count++
		}
	}
	return count, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, customerID string) (int64, error) {
	defer r.s.lock(ctx)()
	var count int64
	for _, n := range r.s.notifications {
		if n.CustomerID == customerID && !n.IsRead {
			count++
		}
	}
	return count, nil
}
