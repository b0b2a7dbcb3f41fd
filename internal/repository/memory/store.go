// Package memory is an in-process repository backend for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
)

type txKey struct{}

// Store keeps every collection in maps guarded by one mutex. A transaction
// holds the mutex for its whole duration and restores a snapshot on error.
type Store struct {
	mu            sync.Mutex
	repairs       map[string]model.RepairRequest
	technicians   map[string]model.Technician
	notifications map[string]model.RepairNotification
	outbox        map[string]model.OutboxEvent
	users         map[string]model.User
}

func NewStore() *Store {
	return &Store{
		repairs:       make(map[string]model.RepairRequest),
		technicians:   make(map[string]model.Technician),
		notifications: make(map[string]model.RepairNotification),
		outbox:        make(map[string]model.OutboxEvent),
		users:         make(map[string]model.User),
	}
}

// Repositories wires the memory backend into a repository.Store.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Tx:            s,
		Repairs:       &repairRepository{s},
		Technicians:   &technicianRepository{s},
		Notifications: &notificationRepository{s},
		Outbox:        &outboxRepository{s},
		Users:         &userRepository{s},
		Ping:          func(context.Context) error { return nil },
		Close:         func(context.Context) error { return nil },
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store mutex unless ctx already runs inside a transaction.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	repairs       map[string]model.RepairRequest
	technicians   map[string]model.Technician
	notifications map[string]model.RepairNotification
	outbox        map[string]model.OutboxEvent
	users         map[string]model.User
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		repairs:       copyMap(s.repairs),
		technicians:   copyMap(s.technicians),
		notifications: copyMap(s.notifications),
		outbox:        copyMap(s.outbox),
		users:         copyMap(s.users),
	}
}

func (s *Store) restore(snap snapshot) {
	s.repairs = snap.repairs
	s.technicians = snap.technicians
	s.notifications = snap.notifications
	s.outbox = snap.outbox
	s.users = snap.users
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = len(items)
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
