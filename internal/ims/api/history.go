package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/internal/ims/service"
	"github.com/jimyag/ims/pkg/ginx"
)

// HistoryServiceInterface 定义历史记录服务的接口
type HistoryServiceInterface interface {
	GetHistory(ctx context.Context, q *entity.HistoryQuery) ([]*entity.InstanceHistory, error)
	CountHistory(ctx context.Context, q *entity.HistoryQuery) (int64, error)
	GetHistoryByID(ctx context.Context, historyID int64) (*entity.InstanceHistory, error)
	GetLatestHistory(ctx context.Context, instanceID int64, op string) (*entity.InstanceHistory, error)
	ValidateIntegrity(ctx context.Context, instanceID int64) (bool, error)
}

type History struct {
	historyService HistoryServiceInterface
}

func NewHistory(historyService HistoryServiceInterface) *History {
	return &History{
		historyService: historyService,
	}
}

func (h *History) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/history", ginx.Adapt5(h.ListHistory))
	router.GET("/history/:history_id", ginx.Adapt5(h.GetHistoryByID))
	router.GET("/instances/:id/history", ginx.Adapt5(h.GetInstanceHistory))
	router.GET("/instances/:id/history/latest", ginx.Adapt5(h.GetLatestHistory))
	router.GET("/instances/:id/history/count", ginx.Adapt5(h.CountInstanceHistory))
	router.GET("/instances/:id/history/verify", ginx.Adapt5(h.VerifyInstanceHistory))
}

// ListHistory 查询所有实例的历史记录
func (h *History) ListHistory(ctx *gin.Context, q *entity.HistoryQuery) (*entity.HistoryListResponse, error) {
	return h.list(ctx, q)
}

// GetInstanceHistory 查询某个实例的历史记录，路径中的 id 覆盖 instance_id 参数
func (h *History) GetInstanceHistory(ctx *gin.Context, q *entity.InstanceHistoryQuery) (*entity.HistoryListResponse, error) {
	q.InstanceID = &q.ID
	return h.list(ctx, &q.HistoryQuery)
}

func (h *History) list(ctx context.Context, q *entity.HistoryQuery) (*entity.HistoryListResponse, error) {
	records, err := h.historyService.GetHistory(ctx, q)
	if err != nil {
		return nil, err
	}
	total, err := h.historyService.CountHistory(ctx, q)
	if err != nil {
		return nil, err
	}

	limit := service.DefaultHistoryLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	return &entity.HistoryListResponse{
		HistoryRecords: records,
		TotalCount:     total,
		Limit:          limit,
		Offset:         q.Offset,
		HasMore:        int64(q.Offset+len(records)) < total,
	}, nil
}

func (h *History) GetHistoryByID(ctx *gin.Context, req *entity.HistoryIDRequest) (*entity.InstanceHistory, error) {
	return h.historyService.GetHistoryByID(ctx, req.HistoryID)
}

func (h *History) GetLatestHistory(ctx *gin.Context, req *entity.LatestHistoryRequest) (*entity.InstanceHistory, error) {
	return h.historyService.GetLatestHistory(ctx, req.ID, req.OperationType)
}

func (h *History) CountInstanceHistory(ctx *gin.Context, q *entity.InstanceHistoryQuery) (*entity.CountResponse, error) {
	q.InstanceID = &q.ID
	count, err := h.historyService.CountHistory(ctx, &q.HistoryQuery)
	if err != nil {
		return nil, err
	}
	return &entity.CountResponse{InstanceID: &q.ID, Count: count}, nil
}

// VerifyInstanceHistory 校验失败时返回 valid=false，而不是错误
func (h *History) VerifyInstanceHistory(ctx *gin.Context, req *entity.InstanceIDRequest) (*entity.IntegrityResponse, error) {
	valid, err := h.historyService.ValidateIntegrity(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &entity.IntegrityResponse{InstanceID: req.ID, Valid: valid}, nil
}
