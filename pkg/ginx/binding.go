package ginx

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/ims/pkg/apierror"
)

// isXMLRequest 检查请求是否为 XML 格式
func isXMLRequest(ctx *gin.Context) bool {
	contentType := ctx.GetHeader("Content-Type")
	return strings.Contains(contentType, "application/xml") ||
		strings.Contains(contentType, "text/xml")
}

// hasBody 只有带请求体的方法才解析 body
func hasBody(ctx *gin.Context) bool {
	switch ctx.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ctx.Request.ContentLength != 0 && ctx.Request.Body != nil
	default:
		return false
	}
}

// bindArgs 绑定请求参数到 args 结构体
// 顺序：Body（JSON 或 XML）> URI 参数 > Query 参数
// 后绑定的来源只覆盖带有对应 tag 的字段，body 解析失败直接返回错误
func bindArgs(ctx *gin.Context, args any) error {
	setResponseFormat(ctx, "json")

	if hasBody(ctx) {
		if isXMLRequest(ctx) {
			if err := ctx.ShouldBindXML(args); err != nil {
				return err
			}
			setResponseFormat(ctx, "xml")
		} else if err := ctx.ShouldBindJSON(args); err != nil {
			return err
		}
	}

	if err := ctx.ShouldBindUri(args); err != nil {
		return err
	}

	return ctx.ShouldBindQuery(args)
}

func invalidRequest(err error) error {
	return apierror.WrapError(apierror.ErrInvalidRequest, err.Error(), err)
}
