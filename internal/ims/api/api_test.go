package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jimyag/ims/internal/ims/config"
	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/internal/ims/repository"
	"github.com/jimyag/ims/internal/ims/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{Address: "127.0.0.1:0", LogLevel: "info"}
}

// setupTestAPI 使用真实的 sqlite 数据库和服务创建 API
func setupTestAPI(t *testing.T, cfg *config.Config) *API {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "api.db")
	repo, err := repository.New(config.DatabaseConfig{URL: "sqlite:///" + dbPath, MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Close()
	})

	api, err := New(cfg, zerolog.Nop(),
		service.NewInstanceService(repo, repository.SystemClock),
		service.NewHistoryService(repo),
		service.NewMonitoringService(repo),
	)
	require.NoError(t, err)
	return api
}

func TestNew(t *testing.T) {
	t.Parallel()

	api, err := New(testConfig(), zerolog.Nop(), nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, api.engine)
	assert.NotNil(t, api.server)
	assert.Equal(t, "127.0.0.1:0", api.server.Addr)
	assert.Equal(t, "API Server", api.Name())

	routes := make(map[string]bool)
	for _, route := range api.engine.Routes() {
		routes[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"GET /api/instances",
		"POST /api/instances",
		"POST /api/instances/copy",
		"GET /api/instances/name/:name",
		"GET /api/instances/:id",
		"PUT /api/instances/:id",
		"DELETE /api/instances/:id",
		"POST /api/instances/:id/rollback",
		"GET /api/instances/:id/with-history",
		"GET /api/instances/:id/history",
		"GET /api/instances/:id/history/latest",
		"GET /api/instances/:id/history/count",
		"GET /api/instances/:id/history/verify",
		"GET /api/history",
		"GET /api/history/:history_id",
		"GET /api/monitoring/db-pool",
		"GET /api/auth/status",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestAPI_RunAndShutdown(t *testing.T) {
	t.Parallel()

	api, err := New(testConfig(), zerolog.Nop(), nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- api.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("Skipping Run test: socket operations not permitted in this environment")
		}
		assert.NoError(t, err, "Run should return nil when context is cancelled")
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return within timeout")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	assert.NoError(t, api.Shutdown(shutdownCtx))
}

func TestAPI_AuthScope(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = testAuthConfig(t)
	api := setupTestAPI(t, cfg)

	w := doRequest(api.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code, "healthz does not require auth")

	w = doRequest(api.Handler(), http.MethodGet, "/api/instances", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/instances", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_InstanceLifecycle(t *testing.T) {
	t.Parallel()

	api := setupTestAPI(t, testConfig())
	h := api.Handler()

	// 创建
	w := doRequest(h, http.MethodPost, "/api/instances", map[string]any{
		"name":         "svc-a",
		"model_name":   "m1",
		"cluster_name": "c1",
		"image_tag":    "v1",
		"envs":         map[string]any{"A": "1"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created entity.Instance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "high", created.Priority)
	assert.Equal(t, []string{"high", "normal", "low", "very_low"}, created.Priorities)
	assert.Equal(t, "active", created.Status)
	id := strconv.FormatInt(created.ID, 10)

	// 重名
	w = doRequest(h, http.MethodPost, "/api/instances", map[string]any{
		"name": "svc-a", "model_name": "m1", "cluster_name": "c1", "image_tag": "v1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 更新：旧接口的 priority 只改写第一个元素
	w = doRequest(h, http.MethodPut, "/api/instances/"+id, map[string]any{"replicas": 3, "priority": "low"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated entity.Instance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 3, updated.Replicas)
	assert.Equal(t, "low", updated.Priority)
	assert.Equal(t, []string{"low", "normal", "low", "very_low"}, updated.Priorities)

	// 非法字段
	w = doRequest(h, http.MethodPut, "/api/instances/"+id, map[string]any{"tp": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 历史：update 记录保存的是更新前的状态
	w = doRequest(h, http.MethodGet, "/api/instances/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history entity.HistoryListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Equal(t, int64(2), history.TotalCount)
	assert.Equal(t, "update", history.HistoryRecords[0].OperationType)
	assert.Equal(t, 1, history.HistoryRecords[0].Replicas)
	createRecord := history.HistoryRecords[1]
	assert.Equal(t, "create", createRecord.OperationType)

	// 回滚到创建时的快照
	w = doRequest(h, http.MethodPost, "/api/instances/"+id+"/rollback", map[string]any{"history_id": createRecord.HistoryID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rolled entity.Instance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rolled))
	assert.Equal(t, 1, rolled.Replicas)
	assert.Equal(t, "high", rolled.Priority)
	assert.Equal(t, created.CreatedAt, rolled.CreatedAt)

	// 复制
	w = doRequest(h, http.MethodPost, "/api/instances/copy", map[string]any{"source_instance_id": created.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var copied entity.Instance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &copied))
	assert.Equal(t, "svc-acopy", copied.Name)
	assert.Equal(t, map[string]any{"A": "1"}, copied.Envs)

	// 按名称获取
	w = doRequest(h, http.MethodGet, "/api/instances/name/svc-acopy", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 列表和分页
	w = doRequest(h, http.MethodGet, "/api/instances?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list entity.ListInstancesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(2), list.TotalCount)
	assert.Len(t, list.Instances, 1)
	assert.True(t, list.HasMore)

	// 完整性校验
	w = doRequest(h, http.MethodGet, "/api/instances/"+id+"/history/verify", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var integrity entity.IntegrityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &integrity))
	assert.True(t, integrity.Valid)

	// 删除后实例不存在，历史保留
	w = doRequest(h, http.MethodDelete, "/api/instances/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doRequest(h, http.MethodDelete, "/api/instances/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doRequest(h, http.MethodGet, "/api/instances/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(h, http.MethodGet, "/api/instances/"+id+"/history/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var latest entity.InstanceHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &latest))
	assert.Equal(t, "delete", latest.OperationType)

	w = doRequest(h, http.MethodGet, "/api/instances/"+id+"/history/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var count entity.CountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &count))
	assert.Equal(t, int64(4), count.Count)

	// 监控
	w = doRequest(h, http.MethodGet, "/api/monitoring/db-pool", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats entity.DBPoolStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "sqlite", stats.DatabaseType)
	assert.Equal(t, 4, stats.MaxOpenConnections)
}
