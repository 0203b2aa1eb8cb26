package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/pkg/ginx"
)

// MonitoringServiceInterface 定义监控服务的接口
type MonitoringServiceInterface interface {
	DBPoolStats(ctx context.Context) (*entity.DBPoolStats, error)
	Health(ctx context.Context) (*entity.HealthResponse, error)
}

type Monitoring struct {
	monitoringService MonitoringServiceInterface
}

func NewMonitoring(monitoringService MonitoringServiceInterface) *Monitoring {
	return &Monitoring{
		monitoringService: monitoringService,
	}
}

func (m *Monitoring) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/monitoring/db-pool", ginx.Adapt3(m.DBPool))
	router.GET("/auth/status", ginx.Adapt2(m.AuthStatus))
}

func (m *Monitoring) DBPool(ctx *gin.Context) (*entity.DBPoolStats, error) {
	return m.monitoringService.DBPoolStats(ctx)
}

// Healthz 不需要认证
func (m *Monitoring) Healthz(ctx *gin.Context) (*entity.HealthResponse, error) {
	return m.monitoringService.Health(ctx)
}

// AuthStatus 返回当前请求的认证身份
func (m *Monitoring) AuthStatus(ctx *gin.Context) *entity.AuthStatus {
	user := currentUser(ctx)
	return &entity.AuthStatus{Authenticated: user != "", Username: user}
}
