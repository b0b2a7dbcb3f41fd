package technician

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/internal/repository"
	"github.com/jwalitptl/repair-desk/internal/repository/memory"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
	"github.com/jwalitptl/repair-desk/pkg/logger"
)

func setup(t *testing.T) (*Service, *repository.Store) {
	t.Helper()
	store := memory.NewStore().Repositories()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService(store, logger.Nop()).WithClock(func() time.Time { return now })
	return svc, store
}

func seedTechnician(t *testing.T, store *repository.Store, id string, active int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Users.Create(ctx, &model.User{ID: id, Name: "Tech " + id, Email: id + "@example.com", Role: model.RoleTechnician}))
	require.NoError(t, store.Technicians.Create(ctx, &model.Technician{ID: id, Skills: []string{"bat"}, Available: true}))
	for i := 0; i < active; i++ {
		require.NoError(t, store.Repairs.Create(ctx, &model.RepairRequest{
			ID:                 fmt.Sprintf("%s-r%d", id, i),
			AssignedTechnician: id,
			Status:             model.RepairStatusInRepair,
		}))
	}
}

func TestRecomputeAvailability(t *testing.T) {
	ctx := context.Background()

	t.Run("below capacity", func(t *testing.T) {
		svc, store := setup(t)
		seedTechnician(t, store, "t1", 9)

		tech, err := svc.RecomputeAvailability(ctx, "t1")
		require.NoError(t, err)
		assert.True(t, tech.Available)
		assert.Equal(t, 9, tech.ActiveRepairs)
	})

	t.Run("at capacity", func(t *testing.T) {
		svc, store := setup(t)
		seedTechnician(t, store, "t1", model.MaxActiveRepairs)

		tech, err := svc.RecomputeAvailability(ctx, "t1")
		require.NoError(t, err)
		assert.False(t, tech.Available)

		stored, err := store.Technicians.Get(ctx, "t1")
		require.NoError(t, err)
		assert.False(t, stored.Available)
		assert.Equal(t, int64(1), stored.Version)
	})

	t.Run("missing technician", func(t *testing.T) {
		svc, _ := setup(t)
		_, err := svc.RecomputeAvailability(ctx, "ghost")
		assert.ErrorIs(t, err, apperrors.NotFoundError)
	})
}

func TestRecount_StaleReadConflicts(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t)
	seedTechnician(t, store, "t1", 9)

	checked, err := store.Technicians.Get(ctx, "t1")
	require.NoError(t, err)
	_, err = svc.RecomputeAvailability(ctx, "t1")
	require.NoError(t, err)

	_, err = svc.Recount(ctx, checked)
	assert.ErrorIs(t, err, repository.ErrConflict)

	fresh, err := store.Technicians.Get(ctx, "t1")
	require.NoError(t, err)
	tech, err := svc.Recount(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, int64(2), tech.Version)
	assert.Equal(t, 9, tech.ActiveRepairs)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t)
	require.NoError(t, store.Users.Create(ctx, &model.User{ID: "u1", Email: "c@example.com", Role: model.RoleCustomer}))
	require.NoError(t, store.Users.Create(ctx, &model.User{ID: "u2", Email: "t@example.com", Name: "Ravi", Role: model.RoleTechnician}))

	_, err := svc.Create(ctx, &model.CreateTechnicianRequest{UserID: "u1"})
	assert.ErrorIs(t, err, apperrors.ValidationError)

	d, err := svc.Create(ctx, &model.CreateTechnicianRequest{UserID: "u2", Skills: []string{" Bat ", "bat", "Pads"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bat", "Pads"}, d.Skills)
	assert.True(t, d.Available)
	assert.Equal(t, "Ravi", d.User.Name)

	_, err = svc.Create(ctx, &model.CreateTechnicianRequest{UserID: "u2"})
	assert.ErrorIs(t, err, apperrors.ConflictError)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	yes, no := true, false

	t.Run("cannot mark available at capacity", func(t *testing.T) {
		svc, store := setup(t)
		seedTechnician(t, store, "t1", model.MaxActiveRepairs)

		_, err := svc.UpdateProfile(ctx, "t1", &model.UpdateTechnicianRequest{Available: &yes})
		assert.ErrorIs(t, err, apperrors.CapacityExceededError)
	})

	t.Run("skills and availability", func(t *testing.T) {
		svc, store := setup(t)
		seedTechnician(t, store, "t1", 0)

		tech, err := svc.UpdateProfile(ctx, "t1", &model.UpdateTechnicianRequest{Skills: []string{"helmet"}, Available: &no})
		require.NoError(t, err)
		assert.Equal(t, []string{"helmet"}, tech.Skills)
		assert.False(t, tech.Available)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t)
	seedTechnician(t, store, "busy", 1)
	seedTechnician(t, store, "idle", 0)

	assert.ErrorIs(t, svc.Delete(ctx, "busy"), apperrors.InvalidStateError)
	require.NoError(t, svc.Delete(ctx, "idle"))
	assert.ErrorIs(t, svc.Delete(ctx, "idle"), apperrors.NotFoundError)
}

func TestWorkload(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t)
	seedTechnician(t, store, "t1", 3)
	require.NoError(t, store.Repairs.Create(ctx, &model.RepairRequest{
		ID: "done", AssignedTechnician: "t1", Status: model.RepairStatusCompleted,
	}))

	w, err := svc.Workload(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, w.Active)
	assert.Equal(t, model.MaxActiveRepairs, w.Capacity)
	assert.Len(t, w.Repairs, 3)
	assert.True(t, w.Available)
}
