package entity

// InstanceHistory 实例历史快照
// InstanceSpec、CreatedAt、UpdatedAt 为操作发生前实例的状态，create 记录为新建后的状态
type InstanceHistory struct {
	HistoryID          int64  `json:"history_id"`
	OriginalID         int64  `json:"original_id"`
	OperationType      string `json:"operation_type"`      // create, update, delete, rollback
	OperationTimestamp string `json:"operation_timestamp"` // RFC3339，UTC
	InstanceSpec
	Priority  string `json:"priority"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// HistoryQuery 历史记录查询条件，未识别的参数会被忽略
// operation_type、status 支持逗号分隔或重复参数
// date_from、date_to 为闭区间，支持 RFC3339、2006-01-02T15:04:05 和 2006-01-02，无时区时按 UTC
type HistoryQuery struct {
	InstanceID    *int64   `form:"instance_id"    json:"instance_id,omitempty"`
	Limit         *int     `form:"limit"          json:"limit,omitempty"`
	Offset        int      `form:"offset"         json:"offset,omitempty"`
	OperationType []string `form:"operation_type" json:"operation_type,omitempty" collection_format:"csv"`
	Status        []string `form:"status"         json:"status,omitempty"         collection_format:"csv"`
	Name          string   `form:"name"           json:"name,omitempty"`
	ModelName     string   `form:"model_name"     json:"model_name,omitempty"`
	ClusterName   string   `form:"cluster_name"   json:"cluster_name,omitempty"`
	DateFrom      string   `form:"date_from"      json:"date_from,omitempty"`
	DateTo        string   `form:"date_to"        json:"date_to,omitempty"`
}

// InstanceHistoryQuery 某个实例的历史记录查询
type InstanceHistoryQuery struct {
	ID int64 `uri:"id" json:"-"`
	HistoryQuery
}

// IsValid 校验 URI 参数
func (r *InstanceHistoryQuery) IsValid() error {
	return validID("id", r.ID)
}

// LatestHistoryRequest 获取实例最新历史记录
type LatestHistoryRequest struct {
	ID            int64  `uri:"id"              json:"-"`
	OperationType string `form:"operation_type" json:"operation_type,omitempty"`
}

// IsValid 校验 URI 参数
func (r *LatestHistoryRequest) IsValid() error {
	return validID("id", r.ID)
}

// HistoryIDRequest 按 history_id 获取历史记录
type HistoryIDRequest struct {
	HistoryID int64 `uri:"history_id" json:"-"`
}

// IsValid 校验 URI 参数
func (r *HistoryIDRequest) IsValid() error {
	return validID("history_id", r.HistoryID)
}

// HistoryListResponse 历史记录列表响应
type HistoryListResponse struct {
	HistoryRecords []*InstanceHistory `json:"history_records"`
	TotalCount     int64              `json:"total_count"`
	Limit          int                `json:"limit"`
	Offset         int                `json:"offset"`
	HasMore        bool               `json:"has_more"`
}

// IntegrityResponse 历史完整性校验结果
type IntegrityResponse struct {
	InstanceID int64 `json:"instance_id"`
	Valid      bool  `json:"valid"`
}
