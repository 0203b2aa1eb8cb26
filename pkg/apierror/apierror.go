// Package apierror 提供统一的错误类型，服务层和 API 层共用同一套错误分类
package apierror

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误分类
type Kind string

const (
	// KindNotFound 实体、历史记录或名称不存在
	KindNotFound Kind = "NotFound"
	// KindValidation 字段约束校验失败，由调用方输入导致，不可原样重试
	KindValidation Kind = "Validation"
	// KindConflict 唯一性冲突，由调用方输入导致，不可原样重试
	KindConflict Kind = "Conflict"
	// KindOperation 底层存储失败，调用方可自行决定是否重试
	KindOperation Kind = "Operation"
)

// HTTPStatus 返回错误分类对应的 HTTP 状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	XMLName   xml.Name `xml:"Response"     json:"-"`
	Errors    []Error  `xml:"Errors>Error" json:"errors"`
	RequestID string   `xml:"RequestID"    json:"requestID"`
}

func (er *ErrorResponse) Error() string {
	str := fmt.Sprintf("RequestID: %s", er.RequestID)
	for _, e := range er.Errors {
		str += fmt.Sprintf("; %s", e.Error())
	}
	return str
}

// Error 单个错误信息
type Error struct {
	Code       string         `xml:"Code"    json:"code"`
	Kind       Kind           `xml:"Kind"    json:"kind"`
	Message    string         `xml:"Message" json:"message"`
	Details    map[string]any `xml:"-"       json:"details,omitempty"`
	HTTPStatus int            `xml:"-"       json:"-"` // HTTP 状态码，不会序列化到响应中
	RawError   error          `xml:"-"       json:"-"` // 内部错误，用于服务端调试，不会序列化到响应中
}

// Error 实现 error 接口
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.RawError != nil {
		str += fmt.Sprintf(" (RawError: %v)", e.RawError)
	}
	return str
}

// Is 实现 errors.Is 接口，用于错误类型判断
// 如果 target 是 *Error 类型且 Code 相同，则返回 true
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*Error)
	if !ok {
		return false
	}

	if e == nil || t == nil {
		return false
	}

	return e.Code == t.Code
}

// Unwrap 实现 errors.Unwrap 接口，返回底层错误
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.RawError
}

// 编译时检查 Error 是否实现了所有必需的接口
var _ interface {
	Error() string
	Is(target error) bool
	Unwrap() error
} = (*Error)(nil)

// NewError 创建新的错误
// 默认为 Operation 分类，HTTP 状态码为 500
func NewError(code, message string) *Error {
	return &Error{
		Code:       code,
		Kind:       KindOperation,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewErrorWithStatus 创建新的错误，指定 HTTP 状态码
func NewErrorWithStatus(code, message string, httpStatus int) *Error {
	return &Error{
		Code:       code,
		Kind:       kindForStatus(httpStatus),
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// NewErrorWithRaw 创建新的错误，包含原始错误信息
// rawError 用于服务端调试，不会序列化到响应中
func NewErrorWithRaw(code, message string, rawError error) *Error {
	e := NewError(code, message)
	e.RawError = rawError
	return e
}

// NewNotFound 创建不存在错误，details 描述缺失的对象
func NewNotFound(message string, details map[string]any) *Error {
	return &Error{
		Code:       ErrNotFound.Code,
		Kind:       KindNotFound,
		Message:    message,
		Details:    details,
		HTTPStatus: KindNotFound.HTTPStatus(),
	}
}

// NewValidation 创建字段校验错误，携带字段名和字段值
func NewValidation(field string, value any, message string) *Error {
	details := map[string]any{}
	if field != "" {
		details["field"] = field
	}
	if value != nil {
		details["value"] = fmt.Sprint(value)
	}
	return &Error{
		Code:       ErrValidation.Code,
		Kind:       KindValidation,
		Message:    message,
		Details:    details,
		HTTPStatus: KindValidation.HTTPStatus(),
	}
}

// NewConflict 创建唯一性冲突错误，携带冲突字段名
func NewConflict(field, message string) *Error {
	details := map[string]any{}
	if field != "" {
		details["conflicting_field"] = field
	}
	return &Error{
		Code:       ErrConflict.Code,
		Kind:       KindConflict,
		Message:    message,
		Details:    details,
		HTTPStatus: KindConflict.HTTPStatus(),
	}
}

// NewOperation 创建存储操作错误，携带失败的操作名和根因
func NewOperation(operation string, cause error) *Error {
	details := map[string]any{"operation": operation}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &Error{
		Code:       ErrOperation.Code,
		Kind:       KindOperation,
		Message:    fmt.Sprintf("Failed to %s", operation),
		Details:    details,
		HTTPStatus: KindOperation.HTTPStatus(),
		RawError:   cause,
	}
}

// NewErrorResponse 创建新的错误响应
func NewErrorResponse(requestID string, errors ...*Error) *ErrorResponse {
	errs := make([]Error, len(errors))
	for i, e := range errors {
		errs[i] = *e
	}
	return &ErrorResponse{
		Errors:    errs,
		RequestID: requestID,
	}
}

// AddError 添加错误到响应
func (er *ErrorResponse) AddError(err *Error) {
	er.Errors = append(er.Errors, *err)
}

// ToXML 转换为 XML 格式
func (er *ErrorResponse) ToXML() ([]byte, error) {
	return xml.MarshalIndent(er, "", "    ")
}

// WrapError 包装预定义的错误，添加原始错误信息
// 保留预定义错误的 Code、Kind 和 HTTPStatus，但使用自定义消息和原始错误
func WrapError(baseErr *Error, message string, rawError error) *Error {
	return &Error{
		Code:       baseErr.Code,
		Kind:       baseErr.Kind,
		Message:    message,
		HTTPStatus: baseErr.HTTPStatus,
		RawError:   rawError,
	}
}

// KindOf 返回 err 链上第一个 *Error 的分类
// 非 *Error 的错误一律视为 Operation
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind != "" {
		return apiErr.Kind
	}
	return KindOperation
}

// IsKind 判断 err 是否属于指定分类
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindOperation
	}
}
