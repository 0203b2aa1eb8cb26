// Package ginx 提供 gin 框架的 handler 适配器，支持自动参数绑定和响应处理
//
// 参数绑定顺序：
//   - POST/PUT/PATCH 且有请求体时解析 body，Content-Type 包含 xml 时使用 XML，否则使用 JSON
//   - 然后绑定 URI 参数（uri tag）
//   - 最后绑定 Query 参数（form tag），未知的 query key 会被忽略
//
// 参数结构体实现 IsValid() error 时会在调用 handler 前校验。
// 响应对象实现 StatusCoder 时使用其状态码，否则为 200。
// 错误响应统一使用 apierror.ErrorResponse，并带上 SetRequestID 设置的请求 ID。
//
// 支持的 handler 函数签名：
//
//	// 有参数，有返回值，有 error
//	func(c *gin.Context, args *Args) (resp, error)
//
//	// 有参数，只有 error，成功时返回 204
//	func(c *gin.Context, args *Args) error
//
//	// 无参数，有返回值，有 error
//	func(c *gin.Context) (resp, error)
//
//	// 无参数，只有返回值
//	func(c *gin.Context) resp
//
// 使用示例：
//
//	router := gin.New()
//
//	router.POST("/instances", ginx.Adapt5(func(c *gin.Context, args *CreateArgs) (*Instance, error) {
//	    return &Instance{...}, nil
//	}))
//
//	router.DELETE("/instances/:id", ginx.Adapt4(func(c *gin.Context, args *DeleteArgs) error {
//	    return nil
//	}))
//
//	router.GET("/healthz", ginx.Adapt2(func(c *gin.Context) string {
//	    return "ok"
//	}))
package ginx
