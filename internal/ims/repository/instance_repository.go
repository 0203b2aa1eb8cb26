package repository

import (
	"context"

	"github.com/jimyag/ims/internal/ims/repository/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InstanceRepository 实例仓库接口
// 未找到记录时返回 gorm.ErrRecordNotFound，唯一约束冲突返回 *DuplicateError
type InstanceRepository interface {
	Create(ctx context.Context, instance *model.Instance) error
	GetByID(ctx context.Context, id int64) (*model.Instance, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Instance, error)
	GetByName(ctx context.Context, name string) (*model.Instance, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, filter InstanceFilter, page Page) ([]*model.Instance, error)
	Count(ctx context.Context, filter InstanceFilter) (int64, error)
	Save(ctx context.Context, instance *model.Instance) error
	Delete(ctx context.Context, id int64) (bool, error)
}

type instanceRepository struct {
	db *gorm.DB
}

// NewInstanceRepository 创建实例仓库，db 可以是事务句柄
func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &instanceRepository{db: db}
}

// Create 创建实例，成功后 instance.ID 为数据库分配的值
func (r *instanceRepository) Create(ctx context.Context, instance *model.Instance) error {
	return ClassifyError(r.db.WithContext(ctx).Create(instance).Error)
}

// GetByID 根据 ID 获取实例
func (r *instanceRepository) GetByID(ctx context.Context, id int64) (*model.Instance, error) {
	var instance model.Instance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// GetByIDForUpdate 根据 ID 获取实例并加行锁，需在事务中调用
// SQLite 不支持 FOR UPDATE，依赖 BEGIN IMMEDIATE 串行化写事务
func (r *instanceRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Instance, error) {
	var instance model.Instance
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// GetByName 根据名称获取实例
func (r *instanceRepository) GetByName(ctx context.Context, name string) (*model.Instance, error) {
	var instance model.Instance
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// ExistsByName 名称是否已被占用
func (r *instanceRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Instance{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List 列出实例，按 created_at、id 倒序
func (r *instanceRepository) List(ctx context.Context, filter InstanceFilter, page Page) ([]*model.Instance, error) {
	var instances []*model.Instance
	query := filter.apply(r.db.WithContext(ctx).Model(&model.Instance{}))
	query = page.apply(query.Order("created_at DESC").Order("id DESC"))

	if err := query.Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// Count 统计满足条件的实例数量
func (r *instanceRepository) Count(ctx context.Context, filter InstanceFilter) (int64, error) {
	var count int64
	if err := filter.apply(r.db.WithContext(ctx).Model(&model.Instance{})).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save 保存实例的全部字段
func (r *instanceRepository) Save(ctx context.Context, instance *model.Instance) error {
	return ClassifyError(r.db.WithContext(ctx).Save(instance).Error)
}

// Delete 物理删除实例，返回记录是否存在
func (r *instanceRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Instance{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
