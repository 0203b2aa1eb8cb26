package repository

import (
	"context"
	"time"

	"github.com/jimyag/ims/internal/ims/repository/model"
	"gorm.io/gorm"
)

// Clock 返回当前时间，用于历史记录的 operation_timestamp
type Clock func() time.Time

// SystemClock 返回 UTC 当前时间，精度截断到微秒，与数据库列精度一致
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// HistoryRepository 历史记录仓库接口，只提供追加和查询
type HistoryRepository interface {
	Append(ctx context.Context, snapshot *model.Instance, op model.OperationType) (*model.InstanceHistory, error)
	GetByID(ctx context.Context, historyID int64) (*model.InstanceHistory, error)
	List(ctx context.Context, filter HistoryFilter, page Page) ([]*model.InstanceHistory, error)
	Count(ctx context.Context, filter HistoryFilter) (int64, error)
	Latest(ctx context.Context, originalID int64, op *model.OperationType) (*model.InstanceHistory, error)
	ListChronological(ctx context.Context, originalID int64) ([]*model.InstanceHistory, error)
	DistinctOriginalIDs(ctx context.Context) ([]int64, error)
}

type historyRepository struct {
	db    *gorm.DB
	clock Clock
}

// NewHistoryRepository 创建历史记录仓库，clock 为 nil 时使用 SystemClock
func NewHistoryRepository(db *gorm.DB, clock Clock) HistoryRepository {
	if clock == nil {
		clock = SystemClock
	}
	return &historyRepository{db: db, clock: clock}
}

// Append 追加一条快照，snapshot 会被深拷贝
func (r *historyRepository) Append(ctx context.Context, snapshot *model.Instance, op model.OperationType) (*model.InstanceHistory, error) {
	record := model.NewInstanceHistory(snapshot, op, r.clock().UTC().Truncate(time.Microsecond))
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// GetByID 根据 history_id 获取历史记录
func (r *historyRepository) GetByID(ctx context.Context, historyID int64) (*model.InstanceHistory, error) {
	var record model.InstanceHistory
	if err := r.db.WithContext(ctx).Where("history_id = ?", historyID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// newestFirst 按 (operation_timestamp, history_id) 倒序，时间戳相同时以 history_id 决定先后
func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("operation_timestamp DESC").Order("history_id DESC")
}

// List 查询历史记录，最新的在前
func (r *historyRepository) List(ctx context.Context, filter HistoryFilter, page Page) ([]*model.InstanceHistory, error) {
	var records []*model.InstanceHistory
	query := filter.apply(r.db.WithContext(ctx).Model(&model.InstanceHistory{}))
	if err := page.apply(newestFirst(query)).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Count 统计满足条件的历史记录数量
func (r *historyRepository) Count(ctx context.Context, filter HistoryFilter) (int64, error) {
	var count int64
	if err := filter.apply(r.db.WithContext(ctx).Model(&model.InstanceHistory{})).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Latest 返回某个实例最新的历史记录，op 不为 nil 时只看该操作类型
func (r *historyRepository) Latest(ctx context.Context, originalID int64, op *model.OperationType) (*model.InstanceHistory, error) {
	var record model.InstanceHistory
	query := r.db.WithContext(ctx).Where("original_id = ?", originalID)
	if op != nil {
		query = query.Where("operation_type = ?", string(*op))
	}
	if err := newestFirst(query).Take(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListChronological 按写入顺序（history_id 升序）返回某个实例的全部历史
func (r *historyRepository) ListChronological(ctx context.Context, originalID int64) ([]*model.InstanceHistory, error) {
	var records []*model.InstanceHistory
	if err := r.db.WithContext(ctx).
		Where("original_id = ?", originalID).
		Order("history_id ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// DistinctOriginalIDs 返回所有有历史记录的实例 ID，升序
func (r *historyRepository) DistinctOriginalIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&model.InstanceHistory{}).
		Distinct("original_id").
		Order("original_id ASC").
		Pluck("original_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
