package service

import (
	"slices"
	"strings"
	"time"

	"github.com/jimyag/ims/internal/ims/entity"
	"github.com/jimyag/ims/internal/ims/repository"
	"github.com/jimyag/ims/internal/ims/repository/model"
	"github.com/jimyag/ims/pkg/apierror"
)

// 分页默认值
const (
	DefaultInstanceLimit = 100
	DefaultHistoryLimit  = 50
	MaxLimit             = 1000
)

// dateLayouts 没有时区信息的格式按 UTC 解析
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// splitValues 把 "a,b" 和重复参数统一展开为去重后的集合，忽略空值
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" && !slices.Contains(out, part) {
				out = append(out, part)
			}
		}
	}
	return out
}

// resolvePage 校验分页参数，limit 为 nil 时使用 defaultLimit
func resolvePage(limit *int, offset, defaultLimit int) (repository.Page, error) {
	page := repository.Page{Limit: defaultLimit, Offset: offset}
	if limit != nil {
		if *limit < 1 || *limit > MaxLimit {
			return page, apierror.NewValidation("limit", *limit, "limit must be between 1 and 1000")
		}
		page.Limit = *limit
	}
	if offset < 0 {
		return page, apierror.NewValidation("offset", offset, "offset must be greater than or equal to 0")
	}
	return page, nil
}

// instanceFilter 将实例列表请求转换为查询条件
func instanceFilter(req *entity.ListInstancesRequest) (repository.InstanceFilter, error) {
	filter := repository.InstanceFilter{
		Name:        strings.TrimSpace(req.Name),
		ModelName:   strings.TrimSpace(req.ModelName),
		ClusterName: strings.TrimSpace(req.ClusterName),
		Statuses:    splitValues(req.Status),
		Priorities:  splitValues(req.Priority),
	}
	for _, s := range filter.Statuses {
		if !slices.Contains(validStatuses, s) {
			return filter, apierror.NewValidation("status", s, "status must be one of: "+strings.Join(validStatuses, ", "))
		}
	}
	for _, p := range filter.Priorities {
		if !slices.Contains(validPriorities, p) {
			return filter, apierror.NewValidation("priority", p, "priority must be one of: "+strings.Join(validPriorities, ", "))
		}
	}
	return filter, nil
}

// historyFilter 将历史查询请求转换为查询条件
func historyFilter(q *entity.HistoryQuery) (repository.HistoryFilter, error) {
	filter := repository.HistoryFilter{
		OriginalID:     q.InstanceID,
		OperationTypes: splitValues(q.OperationType),
		Statuses:       splitValues(q.Status),
		Name:           strings.TrimSpace(q.Name),
		ModelName:      strings.TrimSpace(q.ModelName),
		ClusterName:    strings.TrimSpace(q.ClusterName),
	}

	for _, op := range filter.OperationTypes {
		if !model.OperationType(op).Valid() {
			return filter, invalidOperationType(op)
		}
	}
	for _, s := range filter.Statuses {
		if !slices.Contains(validStatuses, s) {
			return filter, apierror.NewValidation("status", s, "status must be one of: "+strings.Join(validStatuses, ", "))
		}
	}

	var err error
	if filter.DateFrom, err = parseDate("date_from", q.DateFrom); err != nil {
		return filter, err
	}
	if filter.DateTo, err = parseDate("date_to", q.DateTo); err != nil {
		return filter, err
	}
	if filter.DateFrom != nil && filter.DateTo != nil && !filter.DateTo.After(*filter.DateFrom) {
		return filter, apierror.NewValidation("date_to", q.DateTo, "date_to must be after date_from")
	}
	return filter, nil
}

func invalidOperationType(op string) error {
	names := make([]string, 0, len(model.OperationTypes))
	for _, o := range model.OperationTypes {
		names = append(names, string(o))
	}
	return apierror.NewValidation("operation_type", op, "operation_type must be one of: "+strings.Join(names, ", "))
}

// parseDate 解析日期参数，空字符串返回 nil
func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apierror.NewValidation(field, value, field+" must be an ISO 8601 date or datetime")
}
