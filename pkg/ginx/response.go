package ginx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/ims/pkg/apierror"
)

// StatusCoder 响应对象可以通过实现该接口指定 HTTP 状态码，例如创建接口返回 201
type StatusCoder interface {
	StatusCode() int
}

// isXMLResponse 检查是否应该使用 XML 格式响应
func isXMLResponse(ctx *gin.Context) bool {
	if getResponseFormat(ctx) == "xml" {
		return true
	}
	accept := ctx.GetHeader("Accept")
	return strings.Contains(accept, "application/xml") ||
		strings.Contains(accept, "text/xml")
}

func render(ctx *gin.Context, status int, body any) {
	if isXMLResponse(ctx) {
		ctx.XML(status, body)
		return
	}
	ctx.JSON(status, body)
}

// renderResponse 渲染响应
func renderResponse(ctx *gin.Context, response any) {
	if response == nil {
		ctx.Status(http.StatusNoContent)
		return
	}

	status := http.StatusOK
	if sc, ok := response.(StatusCoder); ok && sc.StatusCode() > 0 {
		status = sc.StatusCode()
	}

	switch v := response.(type) {
	case string:
		ctx.String(status, v)
	case int, int32, int64, uint, uint32, uint64, float32, float64, bool:
		render(ctx, status, gin.H{"value": v})
	default:
		render(ctx, status, response)
	}
}

// renderError 渲染错误响应
// 错误链上有 *apierror.Error 或 *apierror.ErrorResponse 时使用其中的状态码，否则使用 statusCode
func renderError(ctx *gin.Context, statusCode int, err error) {
	requestID := RequestID(ctx)

	var errorResp *apierror.ErrorResponse
	if errors.As(err, &errorResp) {
		if len(errorResp.Errors) > 0 && errorResp.Errors[0].HTTPStatus > 0 {
			statusCode = errorResp.Errors[0].HTTPStatus
		}
		if errorResp.RequestID == "" {
			errorResp.RequestID = requestID
		}
		render(ctx, statusCode, errorResp)
		return
	}

	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierror.WrapError(apierror.ErrInternalError, err.Error(), err)
		apiErr.HTTPStatus = statusCode
	}
	if apiErr.HTTPStatus > 0 {
		statusCode = apiErr.HTTPStatus
	}
	render(ctx, statusCode, apierror.NewErrorResponse(requestID, apiErr))
}

// AbortWithError 渲染错误响应并终止后续 handler，供中间件使用
func AbortWithError(ctx *gin.Context, err error) {
	renderError(ctx, http.StatusInternalServerError, err)
	ctx.Abort()
}
