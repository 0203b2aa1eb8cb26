package entity

// DBPoolStats 数据库连接池统计
type DBPoolStats struct {
	DatabaseType       string  `json:"database_type"`
	MaxOpenConnections int     `json:"max_open_connections"`
	OpenConnections    int     `json:"open_connections"`
	InUse              int     `json:"in_use"`
	Idle               int     `json:"idle"`
	WaitCount          int64   `json:"wait_count"`
	WaitDurationMS     int64   `json:"wait_duration_ms"`
	UtilizationPercent float64 `json:"utilization_percent"`
	Status             string  `json:"status"` // healthy, warning, critical
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
