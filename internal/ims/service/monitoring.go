package service

import (
	"context"
	"math"
	"net/http"

	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/internal/ims/repository"
	"github.com/jimyag/ims/pkg/apierror"
)

// 连接池使用率阈值（百分比）
const (
	poolWarningPercent  = 80
	poolCriticalPercent = 95
)

// MonitoringService 数据库连接池和健康检查
type MonitoringService struct {
	repo *repository.Repository
}

// NewMonitoringService 创建监控服务
func NewMonitoringService(repo *repository.Repository) *MonitoringService {
	return &MonitoringService{repo: repo}
}

// DBPoolStats 返回连接池统计
// 未设置最大连接数时使用率按打开的连接数计算
func (s *MonitoringService) DBPoolStats(ctx context.Context) (*entity.DBPoolStats, error) {
	stats, err := s.repo.Stats()
	if err != nil {
		return nil, apierror.NewOperation("get pool statistics", err)
	}

	capacity := stats.MaxOpenConnections
	if capacity <= 0 {
		capacity = stats.OpenConnections
	}
	var utilization float64
	if capacity > 0 {
		utilization = math.Round(float64(stats.InUse)/float64(capacity)*10000) / 100
	}

	status := "healthy"
	switch {
	case utilization >= poolCriticalPercent:
		status = "critical"
	case utilization >= poolWarningPercent:
		status = "warning"
	}

	return &entity.DBPoolStats{
		DatabaseType:       string(s.repo.Dialect()),
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDurationMS:     stats.WaitDuration.Milliseconds(),
		UtilizationPercent: utilization,
		Status:             status,
	}, nil
}

// Health 检查数据库是否可用
func (s *MonitoringService) Health(ctx context.Context) (*entity.HealthResponse, error) {
	if err := s.repo.Ping(ctx); err != nil {
		e := apierror.NewErrorWithStatus("ServiceUnavailable", "Database is not reachable", http.StatusServiceUnavailable)
		e.RawError = err
		return nil, e
	}
	return &entity.HealthResponse{Status: "ok", Database: string(s.repo.Dialect())}, nil
}
