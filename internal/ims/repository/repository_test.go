package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jimyag/ims/internal/ims/config"
	"github.com/jimyag/ims/internal/ims/repository/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	repo, err := New(config.DatabaseConfig{URL: "sqlite:///" + dbPath, MaxOpenConns: 4})
	require.NoError(t, err)

	// 使用 t.Cleanup 确保在测试真正结束时清理，支持并发测试
	t.Cleanup(func() {
		_ = repo.Close()
	})

	return repo
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestInstance(name string, at time.Time) *model.Instance {
	return &model.Instance{
		Name:                      name,
		ModelName:                 "m1",
		ModelVersion:              "latest",
		ClusterName:               "c1",
		ImageTag:                  "v1",
		PipelineMode:              "default",
		PP:                        1,
		CP:                        8,
		TP:                        1,
		NWorkers:                  1,
		Replicas:                  1,
		Priorities:                datatypes.JSONSlice[string](model.DefaultPriorities()),
		Envs:                      datatypes.JSONMap{},
		SeparateVideoEncode:       true,
		SeparateVideoDecode:       true,
		SeparateT5Encode:          true,
		EphemeralMinPeriodSeconds: 300,
		VAEStoreType:              "redis",
		T5StoreType:               "redis",
		TaskConcurrency:           1,
		Status:                    string(model.StatusActive),
		CreatedAt:                 at,
		UpdatedAt:                 at,
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	repo := setupTestDB(t)
	assert.Equal(t, config.DialectSQLite, repo.Dialect())
	require.NoError(t, repo.Ping(context.Background()))

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.MaxOpenConnections)

	assert.True(t, repo.DB().Migrator().HasTable(&model.Instance{}))
	assert.True(t, repo.DB().Migrator().HasTable(&model.InstanceHistory{}))
	assert.True(t, repo.DB().Migrator().HasIndex(&model.Instance{}, "idx_inference_instances_name"))

	// 重复迁移是幂等的
	require.NoError(t, repo.Migrate())
}

func TestNew_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := New(config.DatabaseConfig{URL: "oracle://db"})
	assert.Error(t, err)
}

func TestTransaction_RollbackOnError(t *testing.T) {
	t.Parallel()

	repo := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	boom := errors.New("boom")

	err := repo.Transaction(ctx, func(tx *gorm.DB) error {
		instances := NewInstanceRepository(tx)
		histories := NewHistoryRepository(tx, nil)

		inst := newTestInstance("rolled-back", now)
		if err := instances.Create(ctx, inst); err != nil {
			return err
		}
		if _, err := histories.Append(ctx, inst, model.OperationCreate); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := NewInstanceRepository(repo.DB()).ExistsByName(ctx, "rolled-back")
	require.NoError(t, err)
	assert.False(t, exists)

	count, err := NewHistoryRepository(repo.DB(), nil).Count(ctx, HistoryFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}
