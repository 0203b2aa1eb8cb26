package service

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/internal/ims/repository/model"
	"github.com/jimyag/ims/pkg/apierror"
	"gorm.io/datatypes"
)

// 实例字段默认值
const (
	defaultModelVersion              = "latest"
	defaultPipelineMode              = "default"
	defaultPP                        = 1
	defaultCP                        = 8
	defaultTP                        = 1
	defaultNWorkers                  = 1
	defaultReplicas                  = 1
	defaultEphemeralMinPeriodSeconds = 300
	defaultStoreType                 = "redis"
	defaultTaskConcurrency           = 1
)

var (
	validPriorities = model.DefaultPriorities()
	validStatuses   = []string{
		string(model.StatusActive),
		string(model.StatusInactive),
		string(model.StatusPending),
		string(model.StatusError),
	}
)

type fieldError struct {
	Field   string
	Value   any
	Message string
}

// fieldValidator 收集所有字段错误，一次性返回
type fieldValidator struct {
	errs []fieldError
}

func (v *fieldValidator) add(field string, value any, format string, args ...any) {
	v.errs = append(v.errs, fieldError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

func (v *fieldValidator) required(field string, value *string, maxLen int) {
	if value == nil {
		v.add(field, nil, "%s is required", field)
		return
	}
	v.text(field, value, 1, maxLen)
}

func (v *fieldValidator) text(field string, value *string, minLen, maxLen int) {
	if value == nil {
		return
	}
	n := utf8.RuneCountInString(*value)
	if minLen > 0 && strings.TrimSpace(*value) == "" {
		v.add(field, *value, "%s must not be empty", field)
		return
	}
	if n > maxLen {
		v.add(field, *value, "%s must be at most %d characters", field, maxLen)
	}
}

func (v *fieldValidator) intRange(field string, value *int, minValue, maxValue int) {
	if value == nil {
		return
	}
	if *value < minValue || (maxValue > 0 && *value > maxValue) {
		if maxValue > 0 {
			v.add(field, *value, "%s must be between %d and %d", field, minValue, maxValue)
			return
		}
		v.add(field, *value, "%s must be greater than or equal to %d", field, minValue)
	}
}

func (v *fieldValidator) oneOf(field string, value *string, allowed []string) {
	if value == nil {
		return
	}
	if !slices.Contains(allowed, *value) {
		v.add(field, *value, "%s must be one of: %s", field, strings.Join(allowed, ", "))
	}
}

func (v *fieldValidator) priorities(value []string) {
	if value == nil {
		return
	}
	if len(value) == 0 {
		v.add("priorities", "[]", "priorities must not be empty")
		return
	}
	for _, p := range value {
		if !slices.Contains(validPriorities, p) {
			v.add("priorities", p, "priorities must only contain: %s", strings.Join(validPriorities, ", "))
			return
		}
	}
}

// err 没有错误时返回 nil
// 多个错误时 details.errors 列出全部字段
func (v *fieldValidator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	first := v.errs[0]
	e := apierror.NewValidation(first.Field, first.Value, first.Message)
	if len(v.errs) == 1 {
		return e
	}

	fields := make([]string, 0, len(v.errs))
	all := make([]map[string]any, 0, len(v.errs))
	for _, fe := range v.errs {
		fields = append(fields, fe.Field)
		item := map[string]any{"field": fe.Field, "message": fe.Message}
		if fe.Value != nil {
			item["value"] = fmt.Sprint(fe.Value)
		}
		all = append(all, item)
	}
	e.Message = fmt.Sprintf("Validation failed for fields: %s", strings.Join(fields, ", "))
	e.Details["errors"] = all
	return e
}

// validateFields 校验提供的字段，create 为 true 时检查必填字段
func validateFields(v *fieldValidator, f *entity.InstanceFields, create bool) {
	if create {
		v.required("name", f.Name, 255)
		v.required("model_name", f.ModelName, 255)
		v.required("cluster_name", f.ClusterName, 255)
		v.required("image_tag", f.ImageTag, 255)
	} else {
		v.text("name", f.Name, 1, 255)
		v.text("model_name", f.ModelName, 1, 255)
		v.text("cluster_name", f.ClusterName, 1, 255)
		v.text("image_tag", f.ImageTag, 1, 255)
	}

	v.text("model_version", f.ModelVersion, 0, 50)
	v.text("pipeline_mode", f.PipelineMode, 0, 20)
	v.text("checkpoint_path", f.CheckpointPath, 0, 255)
	v.text("nonce", f.Nonce, 0, 255)
	v.text("description", f.Description, 0, 1024)
	v.text("ephemeral_to", f.EphemeralTo, 0, 255)
	v.text("ephemeral_from", f.EphemeralFrom, 0, 255)
	v.text("vae_store_type", f.VAEStoreType, 0, 50)
	v.text("t5_store_type", f.T5StoreType, 0, 50)

	v.intRange("fps", f.FPS, 1, 0)
	v.intRange("pp", f.PP, 1, 16)
	v.intRange("cp", f.CP, 1, 64)
	v.intRange("tp", f.TP, 1, 16)
	v.intRange("n_workers", f.NWorkers, 1, 100)
	v.intRange("replicas", f.Replicas, 1, 0)
	v.intRange("ephemeral_min_period_seconds", f.EphemeralMinPeriodSeconds, 0, 0)
	v.intRange("task_concurrency", f.TaskConcurrency, 1, 0)
	v.intRange("celery_task_concurrency", f.CeleryTaskConcurrency, 1, 0)

	v.priorities(f.Priorities)
	v.oneOf("status", f.Status, validStatuses)
}

// validateCreate 校验创建请求
func validateCreate(req *entity.CreateInstanceRequest) error {
	v := &fieldValidator{}
	validateFields(v, &req.InstanceFields, true)
	return v.err()
}

// validateUpdate 校验更新请求，id 和 created_at 不允许出现在请求中
func validateUpdate(req *entity.UpdateInstanceRequest) error {
	v := &fieldValidator{}
	if req.PatchID != nil {
		v.add("id", *req.PatchID, "id cannot be modified")
	}
	if req.CreatedAt != nil {
		v.add("created_at", *req.CreatedAt, "created_at cannot be modified")
	}
	validateFields(v, &req.InstanceFields, false)
	v.oneOf("priority", req.Priority, validPriorities)
	return v.err()
}

// newInstance 根据创建请求构造实例，未提供的字段使用默认值
func newInstance(f *entity.InstanceFields, now time.Time) *model.Instance {
	inst := &model.Instance{
		ModelVersion:              defaultModelVersion,
		PipelineMode:              defaultPipelineMode,
		PP:                        defaultPP,
		CP:                        defaultCP,
		TP:                        defaultTP,
		NWorkers:                  defaultNWorkers,
		Replicas:                  defaultReplicas,
		Priorities:                datatypes.JSONSlice[string](model.DefaultPriorities()),
		Envs:                      datatypes.JSONMap{},
		SeparateVideoEncode:       true,
		SeparateVideoDecode:       true,
		SeparateT5Encode:          true,
		EphemeralMinPeriodSeconds: defaultEphemeralMinPeriodSeconds,
		VAEStoreType:              defaultStoreType,
		T5StoreType:               defaultStoreType,
		TaskConcurrency:           defaultTaskConcurrency,
		Status:                    string(model.StatusActive),
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	applyFields(inst, f)
	return inst
}

// applyFields 将请求中提供的字段写入实例，nil 字段保持不变
func applyFields(inst *model.Instance, f *entity.InstanceFields) {
	assign(&inst.Name, f.Name)
	assign(&inst.ModelName, f.ModelName)
	assign(&inst.ModelVersion, f.ModelVersion)
	assign(&inst.ClusterName, f.ClusterName)
	assign(&inst.ImageTag, f.ImageTag)

	assign(&inst.PipelineMode, f.PipelineMode)
	assign(&inst.QuantMode, f.QuantMode)
	assign(&inst.DistillMode, f.DistillMode)
	assign(&inst.M405Mode, f.M405Mode)
	assignPtr(&inst.FPS, f.FPS)
	assignPtr(&inst.CheckpointPath, f.CheckpointPath)
	assignPtr(&inst.Nonce, f.Nonce)

	assign(&inst.PP, f.PP)
	assign(&inst.CP, f.CP)
	assign(&inst.TP, f.TP)
	assign(&inst.NWorkers, f.NWorkers)
	assign(&inst.Replicas, f.Replicas)

	if f.Priorities != nil {
		inst.Priorities = datatypes.JSONSlice[string](slices.Clone(f.Priorities))
	}
	if f.Envs != nil {
		inst.Envs = model.CloneEnvs(f.Envs)
	}
	assign(&inst.Description, f.Description)

	assign(&inst.SeparateVideoEncode, f.SeparateVideoEncode)
	assign(&inst.SeparateVideoDecode, f.SeparateVideoDecode)
	assign(&inst.SeparateT5Encode, f.SeparateT5Encode)

	assign(&inst.Ephemeral, f.Ephemeral)
	assign(&inst.EphemeralMinPeriodSeconds, f.EphemeralMinPeriodSeconds)
	assign(&inst.EphemeralTo, f.EphemeralTo)
	assign(&inst.EphemeralFrom, f.EphemeralFrom)

	assign(&inst.VAEStoreType, f.VAEStoreType)
	assign(&inst.T5StoreType, f.T5StoreType)

	assign(&inst.EnableCudaGraph, f.EnableCudaGraph)
	assign(&inst.TaskConcurrency, f.TaskConcurrency)
	assignPtr(&inst.CeleryTaskConcurrency, f.CeleryTaskConcurrency)

	assign(&inst.Status, f.Status)
}

func assign[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func assignPtr[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
