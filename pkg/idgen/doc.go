// Package idgen 提供递增 ID 生成器
//
// 使用 Sonyflake 算法生成全局唯一且递增的 ID，用于请求追踪和完整性巡检批次标识。
// 实例和历史记录的主键由数据库自增列分配，不使用本包。
//
// 生成的 ID 格式：
//   - 请求 ID: req-{递增数字}
//   - 巡检批次 ID: sweep-{递增数字}
//
// 使用方式：
//
//	requestID, err := idgen.GenerateRequestID()
//	// requestID: "req-1234567890"
//
//	gen := idgen.New()
//	sweepID, err := gen.GenerateSweepID()
package idgen
