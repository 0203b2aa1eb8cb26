// Package entity 定义业务实体
package entity

import (
	"net/http"

	"github.com/jimyag/ims/pkg/apierror"
)

// InstanceSpec 实例的配置字段，实例和历史快照共用
type InstanceSpec struct {
	Name         string `json:"name"`          // 实例名称，全局唯一
	ModelName    string `json:"model_name"`    // 模型名称
	ModelVersion string `json:"model_version"` // 模型版本
	ClusterName  string `json:"cluster_name"`  // 目标集群
	ImageTag     string `json:"image_tag"`     // 镜像 tag

	PipelineMode   string  `json:"pipeline_mode"`
	QuantMode      bool    `json:"quant_mode"`
	DistillMode    bool    `json:"distill_mode"`
	M405Mode       bool    `json:"m405_mode"`
	FPS            *int    `json:"fps"`
	CheckpointPath *string `json:"checkpoint_path"`
	Nonce          *string `json:"nonce"`

	PP       int `json:"pp"`        // 流水线并行度
	CP       int `json:"cp"`        // 上下文并行度
	TP       int `json:"tp"`        // 张量并行度
	NWorkers int `json:"n_workers"` // worker 数量
	Replicas int `json:"replicas"`  // 副本数

	Priorities  []string       `json:"priorities"` // 优先级列表，第一个为生效优先级
	Envs        map[string]any `json:"envs"`       // 环境变量
	Description string         `json:"description"`

	SeparateVideoEncode bool `json:"separate_video_encode"`
	SeparateVideoDecode bool `json:"separate_video_decode"`
	SeparateT5Encode    bool `json:"separate_t5_encode"`

	Ephemeral                 bool   `json:"ephemeral"`
	EphemeralMinPeriodSeconds int    `json:"ephemeral_min_period_seconds"`
	EphemeralTo               string `json:"ephemeral_to"`
	EphemeralFrom             string `json:"ephemeral_from"`

	VAEStoreType string `json:"vae_store_type"`
	T5StoreType  string `json:"t5_store_type"`

	EnableCudaGraph       bool `json:"enable_cuda_graph"`
	TaskConcurrency       int  `json:"task_concurrency"`
	CeleryTaskConcurrency *int `json:"celery_task_concurrency"`

	Status string `json:"status"` // active, inactive, pending, error
}

// Instance 推理实例
type Instance struct {
	ID int64 `json:"id"`
	InstanceSpec
	Priority  string `json:"priority"`   // 生效优先级，即 priorities[0]
	CreatedAt string `json:"created_at"` // RFC3339，UTC
	UpdatedAt string `json:"updated_at"` // RFC3339，UTC
}

// CreatedInstance 创建或复制实例的响应，HTTP 状态码为 201
type CreatedInstance struct {
	Instance
}

// StatusCode 实现 ginx.StatusCoder
func (CreatedInstance) StatusCode() int {
	return http.StatusCreated
}

// InstanceFields 创建和更新请求中的实例字段，nil 表示未提供
type InstanceFields struct {
	Name         *string `json:"name"`
	ModelName    *string `json:"model_name"`
	ModelVersion *string `json:"model_version"`
	ClusterName  *string `json:"cluster_name"`
	ImageTag     *string `json:"image_tag"`

	PipelineMode   *string `json:"pipeline_mode"`
	QuantMode      *bool   `json:"quant_mode"`
	DistillMode    *bool   `json:"distill_mode"`
	M405Mode       *bool   `json:"m405_mode"`
	FPS            *int    `json:"fps"`
	CheckpointPath *string `json:"checkpoint_path"`
	Nonce          *string `json:"nonce"`

	PP       *int `json:"pp"`
	CP       *int `json:"cp"`
	TP       *int `json:"tp"`
	NWorkers *int `json:"n_workers"`
	Replicas *int `json:"replicas"`

	Priorities  []string       `json:"priorities"`
	Envs        map[string]any `json:"envs"`
	Description *string        `json:"description"`

	SeparateVideoEncode *bool `json:"separate_video_encode"`
	SeparateVideoDecode *bool `json:"separate_video_decode"`
	SeparateT5Encode    *bool `json:"separate_t5_encode"`

	Ephemeral                 *bool   `json:"ephemeral"`
	EphemeralMinPeriodSeconds *int    `json:"ephemeral_min_period_seconds"`
	EphemeralTo               *string `json:"ephemeral_to"`
	EphemeralFrom             *string `json:"ephemeral_from"`

	VAEStoreType *string `json:"vae_store_type"`
	T5StoreType  *string `json:"t5_store_type"`

	EnableCudaGraph       *bool `json:"enable_cuda_graph"`
	TaskConcurrency       *int  `json:"task_concurrency"`
	CeleryTaskConcurrency *int  `json:"celery_task_concurrency"`

	Status *string `json:"status"`
}

// CreateInstanceRequest 创建实例请求
// name、model_name、cluster_name、image_tag 必填，其余字段未提供时使用默认值
type CreateInstanceRequest struct {
	InstanceFields `form:"-" uri:"-"`
}

// UpdateInstanceRequest 更新实例请求，只修改提供的字段
type UpdateInstanceRequest struct {
	ID             int64 `uri:"id" json:"-"`
	InstanceFields `form:"-" uri:"-"`

	// Priority 兼容旧接口的单一优先级，只改写 priorities 的第一个元素
	Priority *string `json:"priority"`

	// 以下字段不可修改，出现在请求中即校验失败
	PatchID   *int64  `json:"id"`
	CreatedAt *string `json:"created_at"`
}

// IsValid 校验 URI 参数
func (r *UpdateInstanceRequest) IsValid() error {
	return validID("id", r.ID)
}

// InstanceIDRequest 按 ID 操作实例的请求
type InstanceIDRequest struct {
	ID int64 `uri:"id" json:"-"`
}

// IsValid 校验 URI 参数
func (r *InstanceIDRequest) IsValid() error {
	return validID("id", r.ID)
}

// InstanceNameRequest 按名称获取实例的请求
type InstanceNameRequest struct {
	Name string `uri:"name" json:"-"`
}

// CopyInstanceRequest 复制实例请求
type CopyInstanceRequest struct {
	SourceInstanceID int64   `json:"source_instance_id"`
	NewName          *string `json:"new_name"` // 为空时自动生成 <name>copy、<name>copy1 ...
}

// IsValid 校验请求
func (r *CopyInstanceRequest) IsValid() error {
	return validID("source_instance_id", r.SourceInstanceID)
}

// RollbackInstanceRequest 将实例回滚到某条历史快照
type RollbackInstanceRequest struct {
	ID        int64 `uri:"id"         json:"-"`
	HistoryID int64 `json:"history_id"`
}

// IsValid 校验请求
func (r *RollbackInstanceRequest) IsValid() error {
	if err := validID("id", r.ID); err != nil {
		return err
	}
	return validID("history_id", r.HistoryID)
}

// ListInstancesRequest 实例列表请求
// status、priority 支持逗号分隔或重复参数
type ListInstancesRequest struct {
	Limit       *int     `form:"limit"        json:"limit,omitempty"`
	Offset      int      `form:"offset"       json:"offset,omitempty"`
	Name        string   `form:"name"         json:"name,omitempty"`
	ModelName   string   `form:"model_name"   json:"model_name,omitempty"`
	ClusterName string   `form:"cluster_name" json:"cluster_name,omitempty"`
	Status      []string `form:"status"       json:"status,omitempty"   collection_format:"csv"`
	Priority    []string `form:"priority"     json:"priority,omitempty" collection_format:"csv"`
}

// ListInstancesResponse 实例列表响应
type ListInstancesResponse struct {
	Instances  []*Instance `json:"instances"`
	TotalCount int64       `json:"total_count"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
	HasMore    bool        `json:"has_more"`
}

// InstanceWithHistory 实例及其最新一条历史记录
type InstanceWithHistory struct {
	Instance      *Instance        `json:"instance"`
	LatestHistory *InstanceHistory `json:"latest_history"`
}

// CountResponse 计数响应
type CountResponse struct {
	InstanceID *int64 `json:"instance_id,omitempty"`
	Count      int64  `json:"count"`
}

func validID(field string, id int64) error {
	if id <= 0 {
		return apierror.NewValidation(field, id, field+" must be a positive integer")
	}
	return nil
}
