package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jimyag/ims/internal/ims/repository/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestInstanceRepository(t *testing.T) {
	t.Parallel()

	repo := setupTestDB(t)
	instanceRepo := NewInstanceRepository(repo.DB())
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Create and GetByID", func(t *testing.T) {
		inst := newTestInstance("create-get", base)
		inst.Envs = datatypes.JSONMap{"CUDA_VISIBLE_DEVICES": "0,1"}
		fps := 30
		inst.FPS = &fps

		require.NoError(t, instanceRepo.Create(ctx, inst))
		require.NotZero(t, inst.ID)

		got, err := instanceRepo.GetByID(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, "create-get", got.Name)
		assert.Equal(t, []string{"high", "normal", "low", "very_low"}, []string(got.Priorities))
		assert.Equal(t, "0,1", got.Envs["CUDA_VISIBLE_DEVICES"])
		require.NotNil(t, got.FPS)
		assert.Equal(t, 30, *got.FPS)
		assert.Nil(t, got.Nonce)
		assert.True(t, got.SeparateT5Encode)
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("GetByID not found", func(t *testing.T) {
		_, err := instanceRepo.GetByID(ctx, 999999)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("Duplicate name", func(t *testing.T) {
		require.NoError(t, instanceRepo.Create(ctx, newTestInstance("dup", base)))

		err := instanceRepo.Create(ctx, newTestInstance("dup", base))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicate)

		var dupErr *DuplicateError
		require.True(t, errors.As(err, &dupErr))
		assert.Equal(t, "name", dupErr.Field)

		count, err := instanceRepo.Count(ctx, InstanceFilter{Name: "dup"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("GetByName and ExistsByName", func(t *testing.T) {
		require.NoError(t, instanceRepo.Create(ctx, newTestInstance("by-name", base)))

		got, err := instanceRepo.GetByName(ctx, "by-name")
		require.NoError(t, err)
		assert.Equal(t, "by-name", got.Name)

		exists, err := instanceRepo.ExistsByName(ctx, "by-name")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = instanceRepo.ExistsByName(ctx, "BY-NAME")
		require.NoError(t, err)
		assert.False(t, exists, "name lookup is exact")
	})

	t.Run("Save", func(t *testing.T) {
		inst := newTestInstance("save-me", base)
		require.NoError(t, instanceRepo.Create(ctx, inst))

		inst.Status = string(model.StatusInactive)
		inst.SeparateVideoEncode = false
		inst.UpdatedAt = base.Add(time.Minute)
		require.NoError(t, instanceRepo.Save(ctx, inst))

		got, err := instanceRepo.GetByID(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, "inactive", got.Status)
		assert.False(t, got.SeparateVideoEncode)
		assert.True(t, base.Add(time.Minute).Equal(got.UpdatedAt))
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("Save duplicate name", func(t *testing.T) {
		require.NoError(t, instanceRepo.Create(ctx, newTestInstance("taken", base)))
		inst := newTestInstance("free", base)
		require.NoError(t, instanceRepo.Create(ctx, inst))

		inst.Name = "taken"
		assert.ErrorIs(t, instanceRepo.Save(ctx, inst), ErrDuplicate)
	})

	t.Run("Delete", func(t *testing.T) {
		inst := newTestInstance("delete-me", base)
		require.NoError(t, instanceRepo.Create(ctx, inst))

		deleted, err := instanceRepo.Delete(ctx, inst.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = instanceRepo.Delete(ctx, inst.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = instanceRepo.GetByID(ctx, inst.ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("GetByIDForUpdate in transaction", func(t *testing.T) {
		inst := newTestInstance("locked", base)
		require.NoError(t, instanceRepo.Create(ctx, inst))

		err := repo.Transaction(ctx, func(tx *gorm.DB) error {
			got, err := NewInstanceRepository(tx).GetByIDForUpdate(ctx, inst.ID)
			if err != nil {
				return err
			}
			assert.Equal(t, "locked", got.Name)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestInstanceRepository_ListAndFilters(t *testing.T) {
	t.Parallel()

	repo := setupTestDB(t)
	instanceRepo := NewInstanceRepository(repo.DB())
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []struct {
		name     string
		model    string
		cluster  string
		status   model.Status
		priority string
		offset   time.Duration
	}{
		{"Alpha-Chat", "llama-70b", "east", model.StatusActive, "high", 0},
		{"beta-chat", "Llama-8B", "west", model.StatusInactive, "low", time.Second},
		{"gamma_vision", "clip", "east", model.StatusPending, "normal", 2 * time.Second},
		{"delta", "clip", "east", model.StatusError, "low", 2 * time.Second},
		{"gamma%odd", "clip", "north", model.StatusActive, "very_low", 3 * time.Second},
	}
	for _, s := range seed {
		inst := newTestInstance(s.name, base.Add(s.offset))
		inst.ModelName = s.model
		inst.ClusterName = s.cluster
		inst.Status = string(s.status)
		inst.SetEffectivePriority(s.priority)
		require.NoError(t, instanceRepo.Create(ctx, inst))
	}

	names := func(list []*model.Instance) []string {
		out := make([]string, 0, len(list))
		for _, inst := range list {
			out = append(out, inst.Name)
		}
		return out
	}

	tests := []struct {
		name   string
		filter InstanceFilter
		page   Page
		want   []string
	}{
		{
			name: "no filter, newest first with id tie-break",
			want: []string{"gamma%odd", "delta", "gamma_vision", "beta-chat", "Alpha-Chat"},
		},
		{
			name:   "name substring case-insensitive",
			filter: InstanceFilter{Name: "CHAT"},
			want:   []string{"beta-chat", "Alpha-Chat"},
		},
		{
			name:   "name wildcard characters are literal",
			filter: InstanceFilter{Name: "_"},
			want:   []string{"gamma_vision"},
		},
		{
			name:   "percent is literal",
			filter: InstanceFilter{Name: "%"},
			want:   []string{"gamma%odd"},
		},
		{
			name:   "model substring",
			filter: InstanceFilter{ModelName: "llama"},
			want:   []string{"beta-chat", "Alpha-Chat"},
		},
		{
			name:   "cluster exact",
			filter: InstanceFilter{ClusterName: "east"},
			want:   []string{"delta", "gamma_vision", "Alpha-Chat"},
		},
		{
			name:   "status set",
			filter: InstanceFilter{Statuses: []string{"pending", "error"}},
			want:   []string{"delta", "gamma_vision"},
		},
		{
			name:   "effective priority",
			filter: InstanceFilter{Priorities: []string{"low"}},
			want:   []string{"delta", "beta-chat"},
		},
		{
			name:   "combined filters",
			filter: InstanceFilter{ClusterName: "east", Priorities: []string{"low", "high"}},
			want:   []string{"delta", "Alpha-Chat"},
		},
		{
			name: "pagination",
			page: Page{Limit: 2, Offset: 1},
			want: []string{"delta", "gamma_vision"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := instanceRepo.List(ctx, tt.filter, tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(list))

			if tt.page == (Page{}) {
				count, err := instanceRepo.Count(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, int64(len(tt.want)), count)
			}
		})
	}
}
