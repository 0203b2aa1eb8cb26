package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/ims/internal/ims/config"
	"github.com/jimyag/ims/pkg/ginx"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	engine *gin.Engine
	server *http.Server

	instance   *Instance
	history    *History
	monitoring *Monitoring
}

func New(
	cfg *config.Config,
	logger zerolog.Logger,
	instanceService InstanceServiceInterface,
	historyService HistoryServiceInterface,
	monitoringService MonitoringServiceInterface,
) (*API, error) {
	engine := gin.New()
	// 让 ctx.Value 能取到请求上下文里的 logger
	engine.ContextWithFallback = true
	engine.Use(RequestLogger(logger), gin.Recovery())

	api := &API{
		engine:     engine,
		instance:   NewInstance(instanceService),
		history:    NewHistory(historyService),
		monitoring: NewMonitoring(monitoringService),
	}

	engine.GET("/healthz", ginx.Adapt3(api.monitoring.Healthz))

	group := engine.Group("/api")
	if cfg.Auth.Enabled() {
		group.Use(BasicAuth(cfg.Auth))
	}
	api.instance.RegisterRoutes(group)
	api.history.RegisterRoutes(group)
	api.monitoring.RegisterRoutes(group)

	printRoutes(logger, engine)

	api.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return api, nil
}

// Handler 返回 HTTP handler，测试中直接用 httptest 驱动
func (a *API) Handler() http.Handler {
	return a.engine
}

// Run 启动 HTTP 服务，ctx 取消后优雅关闭
func (a *API) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
	}()

	zerolog.Ctx(ctx).Info().Str("address", a.server.Addr).Msg("API server listening")
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// Name 实现 grace.Grace 接口
func (a *API) Name() string {
	return "API Server"
}

func printRoutes(logger zerolog.Logger, engine *gin.Engine) {
	for _, route := range engine.Routes() {
		logger.Debug().
			Str("method", route.Method).
			Str("path", route.Path).
			Msg("Route registered")
	}
}
