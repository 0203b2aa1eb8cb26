package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// InstanceFilter 实例查询条件，零值字段不参与过滤，各条件之间为 AND
type InstanceFilter struct {
	Name        string   // 名称子串，不区分大小写
	ModelName   string   // 模型名子串，不区分大小写
	ClusterName string   // 集群名，精确匹配
	Statuses    []string // 状态，匹配其中之一
	Priorities  []string // 生效优先级（priorities 第一个元素），匹配其中之一
}

// HistoryFilter 历史记录查询条件，零值字段不参与过滤，各条件之间为 AND
type HistoryFilter struct {
	OriginalID     *int64
	OperationTypes []string
	Statuses       []string
	Name           string // 名称子串，不区分大小写
	ModelName      string // 模型名子串，不区分大小写
	ClusterName    string
	DateFrom       *time.Time // operation_timestamp >= DateFrom
	DateTo         *time.Time // operation_timestamp <= DateTo
}

// Page 分页参数，Limit <= 0 表示不限制
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	return db
}

// likeEscaper 使用 ! 作为 LIKE 转义字符，各数据库对反斜杠字面量的处理不一致
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

const likeCondition = " LIKE LOWER(?) ESCAPE '!'"

// likeContains 构造子串匹配参数，转义 LIKE 通配符
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// firstPriorityExpr 返回取 priorities 第一个元素的 SQL 表达式
func firstPriorityExpr(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "priorities->>0"
	case "mysql":
		return "JSON_UNQUOTE(JSON_EXTRACT(priorities, '$[0]'))"
	default:
		return "json_extract(priorities, '$[0]')"
	}
}

func (f InstanceFilter) apply(db *gorm.DB) *gorm.DB {
	if f.Name != "" {
		db = db.Where("LOWER(name)"+likeCondition, likeContains(f.Name))
	}
	if f.ModelName != "" {
		db = db.Where("LOWER(model_name)"+likeCondition, likeContains(f.ModelName))
	}
	if f.ClusterName != "" {
		db = db.Where("cluster_name = ?", f.ClusterName)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	if len(f.Priorities) > 0 {
		db = db.Where(firstPriorityExpr(db)+" IN ?", f.Priorities)
	}
	return db
}

func (f HistoryFilter) apply(db *gorm.DB) *gorm.DB {
	if f.OriginalID != nil {
		db = db.Where("original_id = ?", *f.OriginalID)
	}
	if len(f.OperationTypes) > 0 {
		db = db.Where("operation_type IN ?", f.OperationTypes)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("status IN ?", f.Statuses)
	}
	if f.Name != "" {
		db = db.Where("LOWER(name)"+likeCondition, likeContains(f.Name))
	}
	if f.ModelName != "" {
		db = db.Where("LOWER(model_name)"+likeCondition, likeContains(f.ModelName))
	}
	if f.ClusterName != "" {
		db = db.Where("cluster_name = ?", f.ClusterName)
	}
	if f.DateFrom != nil {
		db = db.Where("operation_timestamp >= ?", f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		db = db.Where("operation_timestamp <= ?", f.DateTo.UTC())
	}
	return db
}
