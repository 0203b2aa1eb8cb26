package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/internal/ims/repository"
	"github.com/jimyag/ims/internal/ims/repository/model"
	"github.com/jimyag/ims/pkg/apierror"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// maxCopyNameAttempts 自动生成复制名称的最大尝试次数
const maxCopyNameAttempts = 1000

// InstanceService 实例服务
// 每个写操作在同一个事务中修改实例并追加历史记录，两者要么都提交要么都回滚
type InstanceService struct {
	repo      *repository.Repository
	instances repository.InstanceRepository
	history   repository.HistoryRepository
	clock     repository.Clock
}

// NewInstanceService 创建实例服务，clock 为 nil 时使用系统时钟
func NewInstanceService(repo *repository.Repository, clock repository.Clock) *InstanceService {
	if clock == nil {
		clock = repository.SystemClock
	}
	return &InstanceService{
		repo:      repo,
		instances: repository.NewInstanceRepository(repo.DB()),
		history:   repository.NewHistoryRepository(repo.DB(), clock),
		clock:     clock,
	}
}

func (s *InstanceService) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

// inTx 在事务中执行 fn，仓库都绑定到同一个事务
func (s *InstanceService) inTx(ctx context.Context, fn func(instances repository.InstanceRepository, history repository.HistoryRepository) error) error {
	return s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		return fn(repository.NewInstanceRepository(tx), repository.NewHistoryRepository(tx, s.clock))
	})
}

// CreateInstance 创建实例，并追加一条 create 历史记录
func (s *InstanceService) CreateInstance(ctx context.Context, req *entity.CreateInstanceRequest) (*entity.CreatedInstance, error) {
	logger := zerolog.Ctx(ctx)

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	inst := newInstance(&req.InstanceFields, s.now())
	record, err := s.create(ctx, inst)
	if err != nil {
		logger.Error().Err(err).Str("name", inst.Name).Msg("Failed to create instance")
		return nil, err
	}

	logger.Info().
		Int64("instance_id", inst.ID).
		Str("name", inst.Name).
		Int64("history_id", record.HistoryID).
		Msg("Instance created successfully")

	return toCreated(inst)
}

// create 插入实例并追加 create 快照，快照为插入后的状态
func (s *InstanceService) create(ctx context.Context, inst *model.Instance) (*model.InstanceHistory, error) {
	var record *model.InstanceHistory
	err := s.inTx(ctx, func(instances repository.InstanceRepository, history repository.HistoryRepository) error {
		if err := checkNameAvailable(ctx, instances, inst.Name); err != nil {
			return err
		}
		if err := instances.Create(ctx, inst); err != nil {
			return storageError("create instance", err)
		}

		var err error
		if record, err = history.Append(ctx, inst, model.OperationCreate); err != nil {
			return apierror.NewOperation("create history record", err)
		}
		return nil
	})
	if err != nil {
		return nil, storageError("create instance", err)
	}
	return record, nil
}

// UpdateInstance 更新实例，只修改请求中提供的字段
// 修改前的状态作为 update 历史记录追加
func (s *InstanceService) UpdateInstance(ctx context.Context, id int64, req *entity.UpdateInstanceRequest) (*entity.Instance, error) {
	logger := zerolog.Ctx(ctx)

	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	var (
		updated *model.Instance
		record  *model.InstanceHistory
	)
	err := s.inTx(ctx, func(instances repository.InstanceRepository, history repository.HistoryRepository) error {
		inst, err := lockInstance(ctx, instances, id)
		if err != nil {
			return err
		}

		if record, err = history.Append(ctx, inst, model.OperationUpdate); err != nil {
			return apierror.NewOperation("create history record", err)
		}

		oldName := inst.Name
		applyFields(inst, &req.InstanceFields)
		if req.Priority != nil {
			inst.SetEffectivePriority(*req.Priority)
		}
		if inst.Name != oldName {
			if err := checkNameAvailable(ctx, instances, inst.Name); err != nil {
				return err
			}
		}
		inst.UpdatedAt = s.now()

		if err := instances.Save(ctx, inst); err != nil {
			return storageError("update instance", err)
		}
		updated = inst
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Int64("instance_id", id).Msg("Failed to update instance")
		return nil, storageError("update instance", err)
	}

	logger.Info().
		Int64("instance_id", updated.ID).
		Str("name", updated.Name).
		Int64("history_id", record.HistoryID).
		Msg("Instance updated successfully")

	return toEntity(updated)
}

// DeleteInstance 删除实例，返回实例是否存在
// 删除前的状态作为 delete 历史记录追加，历史记录不随实例删除
func (s *InstanceService) DeleteInstance(ctx context.Context, id int64) (bool, error) {
	logger := zerolog.Ctx(ctx)

	var (
		deleted bool
		record  *model.InstanceHistory
	)
	err := s.inTx(ctx, func(instances repository.InstanceRepository, history repository.HistoryRepository) error {
		inst, err := instances.GetByIDForUpdate(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return apierror.NewOperation("get instance", err)
		}

		if record, err = history.Append(ctx, inst, model.OperationDelete); err != nil {
			return apierror.NewOperation("create history record", err)
		}
		if deleted, err = instances.Delete(ctx, id); err != nil {
			return apierror.NewOperation("delete instance", err)
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Int64("instance_id", id).Msg("Failed to delete instance")
		return false, storageError("delete instance", err)
	}

	if deleted {
		logger.Info().
			Int64("instance_id", id).
			Int64("history_id", record.HistoryID).
			Msg("Instance deleted successfully")
	}
	return deleted, nil
}

// CopyInstance 复制实例，除名称、ID 和时间外的字段都与源实例相同
// newName 为空时依次尝试 <name>copy、<name>copy1、<name>copy2 ...
func (s *InstanceService) CopyInstance(ctx context.Context, sourceID int64, newName *string) (*entity.CreatedInstance, error) {
	logger := zerolog.Ctx(ctx)

	source, err := s.instances.GetByID(ctx, sourceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, instanceNotFound(sourceID)
	}
	if err != nil {
		return nil, apierror.NewOperation("get instance", err)
	}

	var name string
	v := &fieldValidator{}
	if newName != nil && *newName != "" {
		name = *newName
		v.text("new_name", newName, 1, 255)
	} else {
		if name, err = s.copyName(ctx, source.Name); err != nil {
			return nil, err
		}
		// 生成的名称同样受长度限制
		v.text("name", &name, 1, 255)
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	now := s.now()
	inst := source.Clone()
	inst.ID = 0
	inst.Name = name
	inst.CreatedAt = now
	inst.UpdatedAt = now

	record, err := s.create(ctx, inst)
	if err != nil {
		logger.Error().Err(err).Int64("source_instance_id", sourceID).Msg("Failed to copy instance")
		return nil, err
	}

	logger.Info().
		Int64("source_instance_id", sourceID).
		Int64("instance_id", inst.ID).
		Str("name", inst.Name).
		Int64("history_id", record.HistoryID).
		Msg("Instance copied successfully")

	return toCreated(inst)
}

// copyName 生成一个未被占用的复制名称
func (s *InstanceService) copyName(ctx context.Context, base string) (string, error) {
	for i := 0; i <= maxCopyNameAttempts; i++ {
		name := base + "copy"
		if i > 0 {
			name = fmt.Sprintf("%scopy%d", base, i)
		}
		exists, err := s.instances.ExistsByName(ctx, name)
		if err != nil {
			return "", apierror.NewOperation("check instance name", err)
		}
		if !exists {
			return name, nil
		}
	}
	return "", apierror.NewOperation("generate copy name",
		fmt.Errorf("unable to generate unique copy name after %d attempts", maxCopyNameAttempts))
}

// RollbackInstance 将实例恢复到某条历史快照的状态
// 快照必须属于该实例，回滚前的状态作为 rollback 历史记录追加
func (s *InstanceService) RollbackInstance(ctx context.Context, id, historyID int64) (*entity.Instance, error) {
	logger := zerolog.Ctx(ctx)

	var (
		restored *model.Instance
		record   *model.InstanceHistory
	)
	err := s.inTx(ctx, func(instances repository.InstanceRepository, history repository.HistoryRepository) error {
		inst, err := lockInstance(ctx, instances, id)
		if err != nil {
			return err
		}

		target, err := history.GetByID(ctx, historyID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && target.OriginalID != id) {
			return historyNotFound(historyID)
		}
		if err != nil {
			return apierror.NewOperation("get history record", err)
		}

		if record, err = history.Append(ctx, inst, model.OperationRollback); err != nil {
			return apierror.NewOperation("create history record", err)
		}

		oldName := inst.Name
		target.RestoreTo(inst)
		if inst.Name != oldName {
			if err := checkNameAvailable(ctx, instances, inst.Name); err != nil {
				return err
			}
		}
		inst.UpdatedAt = s.now()

		if err := instances.Save(ctx, inst); err != nil {
			return storageError("rollback instance", err)
		}
		restored = inst
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Int64("instance_id", id).Int64("target_history_id", historyID).Msg("Failed to rollback instance")
		return nil, storageError("rollback instance", err)
	}

	logger.Info().
		Int64("instance_id", id).
		Int64("target_history_id", historyID).
		Int64("history_id", record.HistoryID).
		Msg("Instance rolled back successfully")

	return toEntity(restored)
}

// GetInstance 根据 ID 获取实例
func (s *InstanceService) GetInstance(ctx context.Context, id int64) (*entity.Instance, error) {
	inst, err := s.instances.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, instanceNotFound(id)
	}
	if err != nil {
		return nil, apierror.NewOperation("get instance", err)
	}
	return toEntity(inst)
}

// GetInstanceByName 根据名称获取实例
func (s *InstanceService) GetInstanceByName(ctx context.Context, name string) (*entity.Instance, error) {
	inst, err := s.instances.GetByName(ctx, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierror.NewNotFound(
			fmt.Sprintf("Instance with name '%s' not found", name),
			map[string]any{"name": name},
		)
	}
	if err != nil {
		return nil, apierror.NewOperation("get instance by name", err)
	}
	return toEntity(inst)
}

// ListInstances 列出实例，最新创建的在前
func (s *InstanceService) ListInstances(ctx context.Context, req *entity.ListInstancesRequest) ([]*entity.Instance, error) {
	filter, err := instanceFilter(req)
	if err != nil {
		return nil, err
	}
	page, err := resolvePage(req.Limit, req.Offset, DefaultInstanceLimit)
	if err != nil {
		return nil, err
	}

	instances, err := s.instances.List(ctx, filter, page)
	if err != nil {
		return nil, apierror.NewOperation("list instances", err)
	}
	return convertAll(instances, instanceModelsToEntities)
}

// CountInstances 统计满足条件的实例数量，忽略分页参数
func (s *InstanceService) CountInstances(ctx context.Context, req *entity.ListInstancesRequest) (int64, error) {
	filter, err := instanceFilter(req)
	if err != nil {
		return 0, err
	}
	count, err := s.instances.Count(ctx, filter)
	if err != nil {
		return 0, apierror.NewOperation("count instances", err)
	}
	return count, nil
}

// GetInstanceWithLatestHistory 获取实例及其最新一条历史记录
func (s *InstanceService) GetInstanceWithLatestHistory(ctx context.Context, id int64) (*entity.InstanceWithHistory, error) {
	inst, err := s.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &entity.InstanceWithHistory{Instance: inst}
	record, err := s.history.Latest(ctx, id, nil)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, apierror.NewOperation("get latest history record", err)
	}
	if result.LatestHistory, err = historyModelToEntity(record); err != nil {
		return nil, apierror.NewOperation("convert history record", err)
	}
	return result, nil
}

// lockInstance 加锁读取实例，不存在时返回 NotFound
func lockInstance(ctx context.Context, instances repository.InstanceRepository, id int64) (*model.Instance, error) {
	inst, err := instances.GetByIDForUpdate(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, instanceNotFound(id)
	}
	if err != nil {
		return nil, apierror.NewOperation("get instance", err)
	}
	return inst, nil
}

// checkNameAvailable 名称已被占用时返回 Conflict
func checkNameAvailable(ctx context.Context, instances repository.InstanceRepository, name string) error {
	exists, err := instances.ExistsByName(ctx, name)
	if err != nil {
		return apierror.NewOperation("check instance name", err)
	}
	if exists {
		return nameConflict(name)
	}
	return nil
}

func nameConflict(name string) error {
	return apierror.NewConflict("name", fmt.Sprintf("Instance with name '%s' already exists", name))
}

func instanceNotFound(id int64) error {
	return apierror.NewNotFound(
		fmt.Sprintf("Instance with ID %d not found", id),
		map[string]any{"instance_id": id},
	)
}

func historyNotFound(historyID int64) error {
	return apierror.NewNotFound(
		fmt.Sprintf("History record with ID %d not found", historyID),
		map[string]any{"history_id": historyID},
	)
}

// storageError 将存储层错误转换为 apierror
// 唯一约束冲突为 Conflict，已经是 apierror 的原样返回，其余为 Operation
func storageError(operation string, err error) error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return err
	}
	var dup *repository.DuplicateError
	if errors.As(repository.ClassifyError(err), &dup) {
		return apierror.NewConflict(dup.Field, fmt.Sprintf("Instance with this %s already exists", dup.Field))
	}
	return apierror.NewOperation(operation, err)
}

func toEntity(inst *model.Instance) (*entity.Instance, error) {
	e, err := instanceModelToEntity(inst)
	if err != nil {
		return nil, apierror.NewOperation("convert instance", err)
	}
	return e, nil
}

func toCreated(inst *model.Instance) (*entity.CreatedInstance, error) {
	e, err := toEntity(inst)
	if err != nil {
		return nil, err
	}
	return &entity.CreatedInstance{Instance: *e}, nil
}

func convertAll[M any, E any](ms []M, fn func([]M) ([]E, error)) ([]E, error) {
	out, err := fn(ms)
	if err != nil {
		return nil, apierror.NewOperation("convert records", err)
	}
	return out, nil
}
