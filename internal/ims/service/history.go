package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/internal/ims/repository"
	"github.com/jimyag/ims/internal/ims/repository/model"
	"github.com/jimyag/ims/pkg/apierror"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// HistoryService 历史记录服务，只读
type HistoryService struct {
	history repository.HistoryRepository
}

// NewHistoryService 创建历史记录服务
func NewHistoryService(repo *repository.Repository) *HistoryService {
	return &HistoryService{
		history: repository.NewHistoryRepository(repo.DB(), nil),
	}
}

// GetHistory 查询历史记录，按 (operation_timestamp, history_id) 倒序
func (s *HistoryService) GetHistory(ctx context.Context, q *entity.HistoryQuery) ([]*entity.InstanceHistory, error) {
	filter, err := historyFilter(q)
	if err != nil {
		return nil, err
	}
	page, err := resolvePage(q.Limit, q.Offset, DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	records, err := s.history.List(ctx, filter, page)
	if err != nil {
		return nil, apierror.NewOperation("list history records", err)
	}
	return convertAll(records, historyModelsToEntities)
}

// CountHistory 统计满足条件的历史记录数量，忽略分页参数
func (s *HistoryService) CountHistory(ctx context.Context, q *entity.HistoryQuery) (int64, error) {
	filter, err := historyFilter(q)
	if err != nil {
		return 0, err
	}
	count, err := s.history.Count(ctx, filter)
	if err != nil {
		return 0, apierror.NewOperation("count history records", err)
	}
	return count, nil
}

// GetHistoryByID 根据 history_id 获取历史记录
func (s *HistoryService) GetHistoryByID(ctx context.Context, historyID int64) (*entity.InstanceHistory, error) {
	record, err := s.history.GetByID(ctx, historyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, historyNotFound(historyID)
	}
	if err != nil {
		return nil, apierror.NewOperation("get history record", err)
	}
	return toHistoryEntity(record)
}

// GetLatestHistory 获取实例最新的历史记录，op 不为空时只看该操作类型
func (s *HistoryService) GetLatestHistory(ctx context.Context, instanceID int64, op string) (*entity.InstanceHistory, error) {
	var opType *model.OperationType
	if op != "" {
		t := model.OperationType(op)
		if !t.Valid() {
			return nil, invalidOperationType(op)
		}
		opType = &t
	}

	record, err := s.history.Latest(ctx, instanceID, opType)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		details := map[string]any{"instance_id": instanceID}
		if op != "" {
			details["operation_type"] = op
		}
		return nil, apierror.NewNotFound(fmt.Sprintf("No history records found for instance %d", instanceID), details)
	}
	if err != nil {
		return nil, apierror.NewOperation("get latest history record", err)
	}
	return toHistoryEntity(record)
}

// ValidateIntegrity 检查实例历史的完整性
// 按写入顺序 operation_timestamp 必须单调不减，history_id 不能重复
// 校验失败只记录日志并返回 false，不作为错误返回
func (s *HistoryService) ValidateIntegrity(ctx context.Context, instanceID int64) (bool, error) {
	logger := zerolog.Ctx(ctx).With().Int64("instance_id", instanceID).Logger()

	records, err := s.history.ListChronological(ctx, instanceID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load history for integrity check")
		return false, nil
	}

	seen := make(map[int64]struct{}, len(records))
	for i, r := range records {
		if _, dup := seen[r.HistoryID]; dup {
			logger.Error().Int64("history_id", r.HistoryID).Msg("Duplicate history_id found")
			return false, nil
		}
		seen[r.HistoryID] = struct{}{}

		if i > 0 && r.OperationTimestamp.Before(records[i-1].OperationTimestamp) {
			logger.Error().
				Int64("history_id", r.HistoryID).
				Int64("previous_history_id", records[i-1].HistoryID).
				Time("operation_timestamp", r.OperationTimestamp).
				Time("previous_operation_timestamp", records[i-1].OperationTimestamp).
				Msg("History timestamps are not in chronological order")
			return false, nil
		}
	}
	return true, nil
}

// IntegrityReport 全量完整性巡检结果
type IntegrityReport struct {
	Checked int     // 检查的实例数量
	Invalid []int64 // 校验失败的实例 ID
}

// VerifyAll 对所有有历史记录的实例执行完整性校验
func (s *HistoryService) VerifyAll(ctx context.Context) (*IntegrityReport, error) {
	ids, err := s.history.DistinctOriginalIDs(ctx)
	if err != nil {
		return nil, apierror.NewOperation("list history subjects", err)
	}

	report := &IntegrityReport{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ok, err := s.ValidateIntegrity(ctx, id)
		if err != nil {
			return report, err
		}
		report.Checked++
		if !ok {
			report.Invalid = append(report.Invalid, id)
		}
	}
	return report, nil
}

func toHistoryEntity(record *model.InstanceHistory) (*entity.InstanceHistory, error) {
	e, err := historyModelToEntity(record)
	if err != nil {
		return nil, apierror.NewOperation("convert history record", err)
	}
	return e, nil
}
