// Package ims 提供推理实例管理服务的主入口和初始化逻辑
package ims

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jimmicro/grace"
	"github.com/jimyag/ims/internal/ims/api"
	"github.com/jimyag/ims/internal/ims/config"
	"github.com/jimyag/ims/internal/ims/repository"
	"github.com/jimyag/ims/internal/ims/service"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg     *config.Config
	logger  zerolog.Logger
	repo    *repository.Repository
	api     *api.API
	sweeper *service.IntegritySweeper
}

// NewLogger 按配置创建 logger，并设置为默认的上下文 logger
func NewLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).Level(cfg.Level()).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	return logger
}

func New(cfg *config.Config) (*Server, error) {
	logger := NewLogger(cfg)

	// 1. 连接数据库并迁移表结构
	repo, err := repository.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	logger.Info().Str("dialect", string(repo.Dialect())).Msg("Database initialized")

	// 2. 创建 Service
	instanceService := service.NewInstanceService(repo, repository.SystemClock)
	historyService := service.NewHistoryService(repo)
	monitoringService := service.NewMonitoringService(repo)

	// 3. 创建 API
	apiInstance, err := api.New(cfg, logger, instanceService, historyService, monitoringService)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	server := &Server{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
		api:    apiInstance,
	}

	// 4. 可选的历史完整性巡检
	if schedule := cfg.Audit.IntegritySchedule; schedule != "" {
		sweeper, err := service.NewIntegritySweeper(historyService, schedule)
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		server.sweeper = sweeper
	}
	return server, nil
}

// services 返回由 Shepherd 管理的服务
func (s *Server) services() []grace.Grace {
	services := []grace.Grace{s.api}
	if s.sweeper != nil {
		services = append(services, s.sweeper)
	}
	return services
}

func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if err := s.repo.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to close database")
		}
	}()

	shepherd := grace.NewShepherd(
		s.services(),
		grace.WithTimeout(30*time.Second),
		grace.WithLogger(&zerologLogger{}),
	)

	return shepherd.StartErr(s.logger.WithContext(ctx))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.api.Shutdown(ctx)
}

// Name 实现 grace.Grace 接口
func (s *Server) Name() string {
	return "IMS Server"
}

// zerologLogger 实现 grace.Logger 接口
type zerologLogger struct{}

func (l *zerologLogger) Info(msg string, args ...any) {
	logger := zerolog.DefaultContextLogger.Info()
	if len(args) > 0 {
		logger.Msgf(msg, args...)
	} else {
		logger.Msg(msg)
	}
}

func (l *zerologLogger) Error(msg string, args ...any) {
	logger := zerolog.DefaultContextLogger.Error()
	if len(args) > 0 {
		logger.Msgf(msg, args...)
	} else {
		logger.Msg(msg)
	}
}
