package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jimyag/ims/internal/ims/config"
	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/internal/ims/repository"
	"github.com/stretchr/testify/require"
)

// TestServices 包含测试所需的所有服务和依赖
type TestServices struct {
	Repo            *repository.Repository
	Clock           *testClock
	InstanceService *InstanceService
	HistoryService  *HistoryService
}

// setupTestServices 为每个测试用例创建独立的数据库和服务
func setupTestServices(t *testing.T) *TestServices {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := repository.New(config.DatabaseConfig{URL: "sqlite:///" + dbPath, MaxOpenConns: 4})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = repo.Close()
	})

	clock := newTestClock()
	return &TestServices{
		Repo:            repo,
		Clock:           clock,
		InstanceService: NewInstanceService(repo, clock.Now),
		HistoryService:  NewHistoryService(repo),
	}
}

// testClock 可手动设置的时钟，默认不前进
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func ptr[T any](v T) *T {
	return &v
}

func createRequest(name string) *entity.CreateInstanceRequest {
	return &entity.CreateInstanceRequest{
		InstanceFields: entity.InstanceFields{
			Name:        ptr(name),
			ModelName:   ptr("m1"),
			ClusterName: ptr("c1"),
			ImageTag:    ptr("v1"),
		},
	}
}

func createTestInstance(t *testing.T, svc *TestServices, name string) *entity.Instance {
	t.Helper()
	created, err := svc.InstanceService.CreateInstance(context.Background(), createRequest(name))
	require.NoError(t, err)
	return &created.Instance
}

func historyOf(id int64) *entity.HistoryQuery {
	return &entity.HistoryQuery{InstanceID: ptr(id)}
}
