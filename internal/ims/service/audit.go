package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jimyag/ims/pkg/idgen"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronParser 使用标准 5 段 cron 表达式
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// IntegritySweeper 定期对全部历史记录执行完整性巡检
// 实现 grace.Grace 接口，由 Shepherd 管理生命周期
type IntegritySweeper struct {
	history  *HistoryService
	schedule string
	idGen    *idgen.Generator

	mu   sync.Mutex
	cron *cron.Cron
}

// NewIntegritySweeper 创建巡检任务，schedule 为 cron 表达式
// schedule 为空时只能通过 Sweep 手动执行
func NewIntegritySweeper(history *HistoryService, schedule string) (*IntegritySweeper, error) {
	if schedule != "" {
		if _, err := cronParser.Parse(schedule); err != nil {
			return nil, fmt.Errorf("parse integrity schedule %q: %w", schedule, err)
		}
	}
	return &IntegritySweeper{
		history:  history,
		schedule: schedule,
		idGen:    idgen.New(),
	}, nil
}

// Sweep 执行一次全量巡检，每次巡检的日志带有独立的 sweep_id
func (s *IntegritySweeper) Sweep(ctx context.Context) (*IntegrityReport, error) {
	sweepID, err := s.idGen.GenerateSweepID()
	if err != nil {
		return nil, fmt.Errorf("generate sweep id: %w", err)
	}
	logger := zerolog.Ctx(ctx).With().Str("sweep_id", sweepID).Logger()
	ctx = logger.WithContext(ctx)

	start := time.Now()
	report, err := s.history.VerifyAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Integrity sweep failed")
		return report, err
	}

	event := logger.Info()
	if len(report.Invalid) > 0 {
		event = logger.Error()
	}
	event.
		Int("checked", report.Checked).
		Ints64("invalid", report.Invalid).
		Dur("elapsed", time.Since(start)).
		Msg("Integrity sweep finished")
	return report, nil
}

// Run 按计划执行巡检，直到 ctx 被取消
func (s *IntegritySweeper) Run(ctx context.Context) error {
	if s.schedule == "" {
		return errors.New("integrity sweeper has no schedule")
	}
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.schedule, func() {
		_, _ = s.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("schedule integrity sweep: %w", err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	zerolog.Ctx(ctx).Info().Str("schedule", s.schedule).Msg("Integrity sweeper started")

	<-ctx.Done()
	return nil
}

// Shutdown 停止调度并等待正在执行的巡检结束
func (s *IntegritySweeper) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name 实现 grace.Grace 接口
func (s *IntegritySweeper) Name() string {
	return "Integrity Sweeper"
}
