package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OperationType 历史记录的操作类型
type OperationType string

const (
	OperationCreate   OperationType = "create"
	OperationUpdate   OperationType = "update"
	OperationDelete   OperationType = "delete"
	OperationRollback OperationType = "rollback"
)

// OperationTypes 全部合法的操作类型
var OperationTypes = []OperationType{OperationCreate, OperationUpdate, OperationDelete, OperationRollback}

// Valid 是否为合法的操作类型
func (o OperationType) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete, OperationRollback:
		return true
	default:
		return false
	}
}

// ErrHistoryImmutable 历史记录写入后不允许修改或删除
var ErrHistoryImmutable = errors.New("history records are immutable")

// InstanceHistory 实例历史快照表，只追加
// original_id 不建外键，实例删除后历史仍然保留
type InstanceHistory struct {
	HistoryID          int64     `gorm:"primaryKey;autoIncrement;column:history_id"`
	OriginalID         int64     `gorm:"not null;index:idx_history_original_id;index:idx_history_original_ts,priority:1;column:original_id"`
	OperationType      string    `gorm:"size:20;not null;index:idx_history_operation_type;column:operation_type"`
	OperationTimestamp time.Time `gorm:"not null;precision:6;index:idx_history_operation_timestamp;index:idx_history_original_ts,priority:2;column:operation_timestamp"`

	Name         string `gorm:"size:255;not null;index:idx_history_name;column:name"`
	ModelName    string `gorm:"size:255;not null;column:model_name"`
	ModelVersion string `gorm:"size:50;not null;column:model_version"`
	ClusterName  string `gorm:"size:255;not null;index:idx_history_cluster_name;column:cluster_name"`
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

	Status    string    `gorm:"size:20;not null;index:idx_history_status;column:status"`
	CreatedAt time.Time `gorm:"not null;precision:6;autoCreateTime:false;column:created_at"`
	UpdatedAt time.Time `gorm:"not null;precision:6;autoUpdateTime:false;column:updated_at"`
}

// TableName 指定表名
func (InstanceHistory) TableName() string {
	return "inference_instances_history"
}

// BeforeUpdate 拒绝任何更新
func (*InstanceHistory) BeforeUpdate(*gorm.DB) error {
	return ErrHistoryImmutable
}

// BeforeDelete 拒绝任何删除
func (*InstanceHistory) BeforeDelete(*gorm.DB) error {
	return ErrHistoryImmutable
}

// NewInstanceHistory 根据实例当前状态构造历史快照
// 逐字段拷贝，快照与 inst 不共享任何可变数据
func NewInstanceHistory(inst *Instance, op OperationType, at time.Time) *InstanceHistory {
	src := inst.Clone()
	return &InstanceHistory{
		OriginalID:         src.ID,
		OperationType:      string(op),
		OperationTimestamp: at,

		Name:         src.Name,
		ModelName:    src.ModelName,
		ModelVersion: src.ModelVersion,
		ClusterName:  src.ClusterName,
		ImageTag:     src.ImageTag,

		PipelineMode:   src.PipelineMode,
		QuantMode:      src.QuantMode,
		DistillMode:    src.DistillMode,
		M405Mode:       src.M405Mode,
		FPS:            src.FPS,
		CheckpointPath: src.CheckpointPath,
		Nonce:          src.Nonce,

		PP:       src.PP,
		CP:       src.CP,
		TP:       src.TP,
		NWorkers: src.NWorkers,
		Replicas: src.Replicas,

		Priorities:  src.Priorities,
		Envs:        src.Envs,
		Description: src.Description,

		SeparateVideoEncode: src.SeparateVideoEncode,
		SeparateVideoDecode: src.SeparateVideoDecode,
		SeparateT5Encode:    src.SeparateT5Encode,

		Ephemeral:                 src.Ephemeral,
		EphemeralMinPeriodSeconds: src.EphemeralMinPeriodSeconds,
		EphemeralTo:               src.EphemeralTo,
		EphemeralFrom:             src.EphemeralFrom,

		VAEStoreType: src.VAEStoreType,
		T5StoreType:  src.T5StoreType,

		EnableCudaGraph:       src.EnableCudaGraph,
		TaskConcurrency:       src.TaskConcurrency,
		CeleryTaskConcurrency: src.CeleryTaskConcurrency,

		Status:    src.Status,
		CreatedAt: src.CreatedAt,
		UpdatedAt: src.UpdatedAt,
	}
}

// RestoreTo 将快照中的可变字段写回 inst
// id、created_at 和 updated_at 保持不变，由调用方维护
func (h *InstanceHistory) RestoreTo(inst *Instance) {
	snap := &Instance{
		FPS:                   h.FPS,
		CheckpointPath:        h.CheckpointPath,
		Nonce:                 h.Nonce,
		CeleryTaskConcurrency: h.CeleryTaskConcurrency,
		Priorities:            h.Priorities,
		Envs:                  h.Envs,
	}
	snap = snap.Clone()

	inst.Name = h.Name
	inst.ModelName = h.ModelName
	inst.ModelVersion = h.ModelVersion
	inst.ClusterName = h.ClusterName
	inst.ImageTag = h.ImageTag

	inst.PipelineMode = h.PipelineMode
	inst.QuantMode = h.QuantMode
	inst.DistillMode = h.DistillMode
	inst.M405Mode = h.M405Mode
	inst.FPS = snap.FPS
	inst.CheckpointPath = snap.CheckpointPath
	inst.Nonce = snap.Nonce

	inst.PP = h.PP
	inst.CP = h.CP
	inst.TP = h.TP
	inst.NWorkers = h.NWorkers
	inst.Replicas = h.Replicas

	inst.Priorities = snap.Priorities
	inst.Envs = snap.Envs
	inst.Description = h.Description

	inst.SeparateVideoEncode = h.SeparateVideoEncode
	inst.SeparateVideoDecode = h.SeparateVideoDecode
	inst.SeparateT5Encode = h.SeparateT5Encode

	inst.Ephemeral = h.Ephemeral
	inst.EphemeralMinPeriodSeconds = h.EphemeralMinPeriodSeconds
	inst.EphemeralTo = h.EphemeralTo
	inst.EphemeralFrom = h.EphemeralFrom

	inst.VAEStoreType = h.VAEStoreType
	inst.T5StoreType = h.T5StoreType

	inst.EnableCudaGraph = h.EnableCudaGraph
	inst.TaskConcurrency = h.TaskConcurrency
	inst.CeleryTaskConcurrency = snap.CeleryTaskConcurrency

	inst.Status = h.Status
}

// EffectivePriority 返回快照中生效的优先级
func (h *InstanceHistory) EffectivePriority() string {
	if len(h.Priorities) == 0 {
		return string(PriorityNormal)
	}
	return h.Priorities[0]
}
