// Package apierror 提供统一的错误类型，用于 service 层和 API 层的错误处理
//
// 错误分为四类（Kind）：
//
//   - NotFound: 实例、历史记录或名称不存在，HTTP 404
//   - Validation: 字段约束校验失败，HTTP 422
//   - Conflict: 唯一性冲突，HTTP 409
//   - Operation: 存储层失败，HTTP 500，可由调用方决定是否重试
//
// 错误响应格式支持 XML 和 JSON 两种格式：
//
//	JSON 格式：
//	{
//	    "errors": [
//	        {
//	            "code": "UniqueConflict",
//	            "kind": "Conflict",
//	            "message": "Instance name 'svc-a' already exists",
//	            "details": {"conflicting_field": "name"}
//	        }
//	    ],
//	    "requestID": "req-412871233323"
//	}
//
// XML 格式不输出 details 字段。
//
// 使用示例：
//
//	// 创建校验错误
//	err := apierror.NewValidation("pp", 0, "pp must be between 1 and 16")
//
//	// 判断分类
//	if apierror.IsKind(err, apierror.KindValidation) { ... }
//
//	// 创建错误响应
//	errorResp := apierror.NewErrorResponse("request-id", err)
//	c.JSON(err.HTTPStatus, errorResp)
//
// 预定义错误：
//
//   - ErrNotFound: 资源不存在
//   - ErrValidation: 字段校验失败
//   - ErrConflict: 唯一性冲突
//   - ErrOperation: 存储操作失败
//   - ErrInvalidRequest: 请求无法解析
//   - ErrUnauthorized: 认证失败
//   - ErrInternalError: 内部错误
package apierror
