package apierror

import "net/http"

// 预定义错误，service 层通过 WrapError 或 New* 构造函数派生具体错误
var (
	// ErrNotFound 请求的实例、历史记录或名称不存在
	ErrNotFound = &Error{
		Code:       "ResourceNotFound",
		Kind:       KindNotFound,
		Message:    "The requested resource does not exist.",
		HTTPStatus: http.StatusNotFound,
	}

	// ErrValidation 请求字段不满足约束
	ErrValidation = &Error{
		Code:       "ValidationFailed",
		Kind:       KindValidation,
		Message:    "One or more fields failed validation.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	// ErrConflict 唯一字段与已有记录冲突
	ErrConflict = &Error{
		Code:       "UniqueConflict",
		Kind:       KindConflict,
		Message:    "A record with the same unique value already exists.",
		HTTPStatus: http.StatusConflict,
	}

	// ErrOperation 存储层操作失败
	ErrOperation = &Error{
		Code:       "OperationFailed",
		Kind:       KindOperation,
		Message:    "The storage operation failed.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrInvalidRequest 请求无法解析
	ErrInvalidRequest = &Error{
		Code:       "InvalidRequest",
		Kind:       KindValidation,
		Message:    "The request could not be parsed.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrUnauthorized 认证失败
	ErrUnauthorized = &Error{
		Code:       "AuthFailure",
		Kind:       KindValidation,
		Message:    "The provided credentials could not be validated.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrInternalError 发生了内部错误
	ErrInternalError = &Error{
		Code:       "InternalError",
		Kind:       KindOperation,
		Message:    "An internal error has occurred.",
		HTTPStatus: http.StatusInternalServerError,
	}
)
