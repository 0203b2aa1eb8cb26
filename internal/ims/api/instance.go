package api

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/internal/ims/service"
	"github.com/jimyag/ims/pkg/apierror"
	"github.com/jimyag/ims/pkg/ginx"
	"github.com/rs/zerolog"
)

// InstanceServiceInterface 定义实例服务的接口
type InstanceServiceInterface interface {
	CreateInstance(ctx context.Context, req *entity.CreateInstanceRequest) (*entity.CreatedInstance, error)
	UpdateInstance(ctx context.Context, id int64, req *entity.UpdateInstanceRequest) (*entity.Instance, error)
	DeleteInstance(ctx context.Context, id int64) (bool, error)
	CopyInstance(ctx context.Context, sourceID int64, newName *string) (*entity.CreatedInstance, error)
	RollbackInstance(ctx context.Context, id, historyID int64) (*entity.Instance, error)
	GetInstance(ctx context.Context, id int64) (*entity.Instance, error)
	GetInstanceByName(ctx context.Context, name string) (*entity.Instance, error)
	ListInstances(ctx context.Context, req *entity.ListInstancesRequest) ([]*entity.Instance, error)
	CountInstances(ctx context.Context, req *entity.ListInstancesRequest) (int64, error)
	GetInstanceWithLatestHistory(ctx context.Context, id int64) (*entity.InstanceWithHistory, error)
}

type Instance struct {
	instanceService InstanceServiceInterface
}

func NewInstance(instanceService InstanceServiceInterface) *Instance {
	return &Instance{
		instanceService: instanceService,
	}
}

func (i *Instance) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/instances", ginx.Adapt5(i.ListInstances))
	router.POST("/instances", ginx.Adapt5(i.CreateInstance))
	router.POST("/instances/copy", ginx.Adapt5(i.CopyInstance))
	router.GET("/instances/name/:name", ginx.Adapt5(i.GetInstanceByName))
	router.GET("/instances/:id", ginx.Adapt5(i.GetInstance))
	router.PUT("/instances/:id", ginx.Adapt5(i.UpdateInstance))
	router.DELETE("/instances/:id", ginx.Adapt4(i.DeleteInstance))
	router.POST("/instances/:id/rollback", ginx.Adapt5(i.RollbackInstance))
	router.GET("/instances/:id/with-history", ginx.Adapt5(i.GetInstanceWithHistory))
}

func (i *Instance) ListInstances(ctx *gin.Context, req *entity.ListInstancesRequest) (*entity.ListInstancesResponse, error) {
	instances, err := i.instanceService.ListInstances(ctx, req)
	if err != nil {
		return nil, err
	}
	total, err := i.instanceService.CountInstances(ctx, req)
	if err != nil {
		return nil, err
	}

	limit := service.DefaultInstanceLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	return &entity.ListInstancesResponse{
		Instances:  instances,
		TotalCount: total,
		Limit:      limit,
		Offset:     req.Offset,
		HasMore:    int64(req.Offset+len(instances)) < total,
	}, nil
}

func (i *Instance) CreateInstance(ctx *gin.Context, req *entity.CreateInstanceRequest) (*entity.CreatedInstance, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("user", currentUser(ctx)).
		Msg("CreateInstance called")

	return i.instanceService.CreateInstance(ctx, req)
}

func (i *Instance) GetInstance(ctx *gin.Context, req *entity.InstanceIDRequest) (*entity.Instance, error) {
	return i.instanceService.GetInstance(ctx, req.ID)
}

func (i *Instance) GetInstanceByName(ctx *gin.Context, req *entity.InstanceNameRequest) (*entity.Instance, error) {
	return i.instanceService.GetInstanceByName(ctx, req.Name)
}

func (i *Instance) GetInstanceWithHistory(ctx *gin.Context, req *entity.InstanceIDRequest) (*entity.InstanceWithHistory, error) {
	return i.instanceService.GetInstanceWithLatestHistory(ctx, req.ID)
}

func (i *Instance) UpdateInstance(ctx *gin.Context, req *entity.UpdateInstanceRequest) (*entity.Instance, error) {
	zerolog.Ctx(ctx).Info().
		Int64("instance_id", req.ID).
		Str("user", currentUser(ctx)).
		Msg("UpdateInstance called")

	return i.instanceService.UpdateInstance(ctx, req.ID, req)
}

// DeleteInstance 删除成功返回 204，实例不存在返回 404
func (i *Instance) DeleteInstance(ctx *gin.Context, req *entity.InstanceIDRequest) error {
	zerolog.Ctx(ctx).Info().
		Int64("instance_id", req.ID).
		Str("user", currentUser(ctx)).
		Msg("DeleteInstance called")

	deleted, err := i.instanceService.DeleteInstance(ctx, req.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return apierror.NewNotFound(
			fmt.Sprintf("Instance with ID %d not found", req.ID),
			map[string]any{"instance_id": req.ID},
		)
	}
	return nil
}

func (i *Instance) CopyInstance(ctx *gin.Context, req *entity.CopyInstanceRequest) (*entity.CreatedInstance, error) {
	zerolog.Ctx(ctx).Info().
		Int64("source_instance_id", req.SourceInstanceID).
		Str("user", currentUser(ctx)).
		Msg("CopyInstance called")

	return i.instanceService.CopyInstance(ctx, req.SourceInstanceID, req.NewName)
}

func (i *Instance) RollbackInstance(ctx *gin.Context, req *entity.RollbackInstanceRequest) (*entity.Instance, error) {
	zerolog.Ctx(ctx).Info().
		Int64("instance_id", req.ID).
		Int64("history_id", req.HistoryID).
		Str("user", currentUser(ctx)).
		Msg("RollbackInstance called")

	return i.instanceService.RollbackInstance(ctx, req.ID, req.HistoryID)
}
