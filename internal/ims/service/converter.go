// Package service 提供业务逻辑层的服务实现
package service

import (
	"maps"
	"slices"
	"time"

	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/internal/ims/repository/model"
	"github.com/jinzhu/copier"
	"gorm.io/datatypes"
)

// copyOption model 到 entity 的转换选项
// 时间统一输出为 UTC RFC3339，JSON 列转换为普通的 slice 和 map
var copyOption = copier.Option{
	DeepCopy: true,
	Converters: []copier.TypeConverter{
		{
			SrcType: time.Time{},
			DstType: copier.String,
			Fn: func(src any) (any, error) {
				return formatTime(src.(time.Time)), nil
			},
		},
		{
			SrcType: datatypes.JSONSlice[string]{},
			DstType: []string{},
			Fn: func(src any) (any, error) {
				s := src.(datatypes.JSONSlice[string])
				if s == nil {
					return []string{}, nil
				}
				return slices.Clone([]string(s)), nil
			},
		},
		{
			SrcType: datatypes.JSONMap{},
			DstType: map[string]any{},
			Fn: func(src any) (any, error) {
				m := src.(datatypes.JSONMap)
				if m == nil {
					return map[string]any{}, nil
				}
				return maps.Clone(map[string]any(m)), nil
			},
		},
	},
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// instanceModelToEntity 将 model.Instance 转换为 entity.Instance
func instanceModelToEntity(m *model.Instance) (*entity.Instance, error) {
	e := &entity.Instance{}
	if err := copier.CopyWithOption(e, m, copyOption); err != nil {
		return nil, err
	}
	e.Priority = m.EffectivePriority()
	return e, nil
}

// instanceModelsToEntities 批量转换
func instanceModelsToEntities(ms []*model.Instance) ([]*entity.Instance, error) {
	out := make([]*entity.Instance, 0, len(ms))
	for _, m := range ms {
		e, err := instanceModelToEntity(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// historyModelToEntity 将 model.InstanceHistory 转换为 entity.InstanceHistory
func historyModelToEntity(m *model.InstanceHistory) (*entity.InstanceHistory, error) {
	e := &entity.InstanceHistory{}
	if err := copier.CopyWithOption(e, m, copyOption); err != nil {
		return nil, err
	}
	e.Priority = m.EffectivePriority()
	return e, nil
}

// historyModelsToEntities 批量转换
func historyModelsToEntities(ms []*model.InstanceHistory) ([]*entity.InstanceHistory, error) {
	out := make([]*entity.InstanceHistory, 0, len(ms))
	for _, m := range ms {
		e, err := historyModelToEntity(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
