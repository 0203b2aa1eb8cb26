package model

import (
	"maps"
	"slices"
	"time"

	"gorm.io/datatypes"
)

// Priority 优先级标签
type Priority string

const (
	PriorityHigh    Priority = "high"
	PriorityNormal  Priority = "normal"
	PriorityLow     Priority = "low"
	PriorityVeryLow Priority = "very_low"
)

// DefaultPriorities 默认优先级列表
func DefaultPriorities() []string {
	return []string{
		string(PriorityHigh),
		string(PriorityNormal),
		string(PriorityLow),
		string(PriorityVeryLow),
	}
}

// Status 实例状态
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusPending  Status = "pending"
	StatusError    Status = "error"
)

// Instance 推理实例表
// 时间字段由调用方按注入的时钟写入，不使用 gorm 自动时间戳
type Instance struct {
	ID           int64  `gorm:"primaryKey;autoIncrement;column:id"`
	Name         string `gorm:"size:255;not null;uniqueIndex:idx_inference_instances_name;column:name"`
	ModelName    string `gorm:"size:255;not null;index:idx_inference_instances_model_name;column:model_name"`
	ModelVersion string `gorm:"size:50;not null;column:model_version"`
	ClusterName  string `gorm:"size:255;not null;index:idx_inference_instances_cluster_name;column:cluster_name"`
	ImageTag     string `gorm:"size:255;not null;column:image_tag"`

	PipelineMode   string  `gorm:"size:20;not null;column:pipeline_mode"`
	QuantMode      bool    `gorm:"not null;column:quant_mode"`
	DistillMode    bool    `gorm:"not null;column:distill_mode"`
	M405Mode       bool    `gorm:"not null;column:m405_mode"`
	FPS            *int    `gorm:"column:fps"`
	CheckpointPath *string `gorm:"size:255;column:checkpoint_path"`
	Nonce          *string `gorm:"size:255;column:nonce"`

	PP       int `gorm:"not null;column:pp"`
	CP       int `gorm:"not null;column:cp"`
	TP       int `gorm:"not null;column:tp"`
	NWorkers int `gorm:"not null;column:n_workers"`
	Replicas int `gorm:"not null;column:replicas"`

	Priorities  datatypes.JSONSlice[string] `gorm:"not null;column:priorities"`
	Envs        datatypes.JSONMap           `gorm:"not null;column:envs"`
	Description string                      `gorm:"size:1024;not null;column:description"`

	SeparateVideoEncode bool `gorm:"not null;column:separate_video_encode"`
	SeparateVideoDecode bool `gorm:"not null;column:separate_video_decode"`
	SeparateT5Encode    bool `gorm:"not null;column:separate_t5_encode"`

	Ephemeral                 bool   `gorm:"not null;column:ephemeral"`
	EphemeralMinPeriodSeconds int    `gorm:"not null;column:ephemeral_min_period_seconds"`
	EphemeralTo               string `gorm:"size:255;not null;column:ephemeral_to"`
	EphemeralFrom             string `gorm:"size:255;not null;column:ephemeral_from"`

	VAEStoreType string `gorm:"size:50;not null;column:vae_store_type"`
	T5StoreType  string `gorm:"size:50;not null;column:t5_store_type"`

	EnableCudaGraph       bool `gorm:"not null;column:enable_cuda_graph"`
	TaskConcurrency       int  `gorm:"not null;column:task_concurrency"`
	CeleryTaskConcurrency *int `gorm:"column:celery_task_concurrency"`

	Status    string    `gorm:"size:20;not null;index:idx_inference_instances_status;column:status"`
	CreatedAt time.Time `gorm:"not null;precision:6;autoCreateTime:false;index:idx_inference_instances_created_at;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;precision:6;autoUpdateTime:false;column:updated_at"`
}

// TableName 指定表名
func (Instance) TableName() string {
	return "inference_instances"
}

// EffectivePriority 返回生效的优先级，即优先级列表的第一个元素
// 列表为空时返回 normal
func (i *Instance) EffectivePriority() string {
	if len(i.Priorities) == 0 {
		return string(PriorityNormal)
	}
	return i.Priorities[0]
}

// SetEffectivePriority 改写优先级列表的第一个元素
// 列表为空时重新初始化为 [p, normal, low, very_low]
func (i *Instance) SetEffectivePriority(p string) {
	if len(i.Priorities) >= 1 {
		priorities := slices.Clone([]string(i.Priorities))
		priorities[0] = p
		i.Priorities = priorities
		return
	}
	i.Priorities = datatypes.JSONSlice[string]{
		p,
		string(PriorityNormal),
		string(PriorityLow),
		string(PriorityVeryLow),
	}
}

// Clone 返回深拷贝，priorities、envs 和指针字段都不与原对象共享
func (i *Instance) Clone() *Instance {
	c := *i
	c.FPS = clonePtr(i.FPS)
	c.CheckpointPath = clonePtr(i.CheckpointPath)
	c.Nonce = clonePtr(i.Nonce)
	c.CeleryTaskConcurrency = clonePtr(i.CeleryTaskConcurrency)
	c.Priorities = clonePriorities(i.Priorities)
	c.Envs = CloneEnvs(i.Envs)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// clonePriorities 保证结果非 nil，nil 会被序列化为 JSON null
func clonePriorities(p datatypes.JSONSlice[string]) datatypes.JSONSlice[string] {
	if p == nil {
		return datatypes.JSONSlice[string]{}
	}
	return slices.Clone(p)
}

// CloneEnvs 深拷贝 envs，对嵌套的 map 和 slice 递归拷贝，结果非 nil
func CloneEnvs(m datatypes.JSONMap) datatypes.JSONMap {
	if m == nil {
		return datatypes.JSONMap{}
	}
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = cloneJSONValue(v)
	}
	return out
}

func cloneJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := maps.Clone(t)
		for k, vv := range out {
			out[k] = cloneJSONValue(vv)
		}
		return out
	case []any:
		out := slices.Clone(t)
		for i, vv := range out {
			out[i] = cloneJSONValue(vv)
		}
		return out
	default:
		return v
	}
}
