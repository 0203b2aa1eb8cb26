package api

import (
	"crypto/subtle"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/ims/internal/ims/config"
	"github.com/jimyag/ims/pkg/apierror"
	"github.com/jimyag/ims/pkg/ginx"
	"github.com/jimyag/ims/pkg/idgen"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	requestIDHeader = "X-Request-ID"
	userKey         = "ims.user"
)

// RequestLogger 为每个请求生成 request_id，并把带 request_id 的 logger 放入请求上下文
// 服务层通过 zerolog.Ctx(ctx) 取到同一个 logger
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		requestID := ctx.GetHeader(requestIDHeader)
		if requestID == "" {
			var err error
			if requestID, err = idgen.GenerateRequestID(); err != nil {
				base.Error().Err(err).Msg("Failed to generate request ID")
			}
		}
		ginx.SetRequestID(ctx, requestID)
		ctx.Header(requestIDHeader, requestID)

		logger := base.With().Str("request_id", requestID).Logger()
		ctx.Request = ctx.Request.WithContext(logger.WithContext(ctx.Request.Context()))

		ctx.Next()

		status := ctx.Writer.Status()
		event := zerolog.Ctx(ctx.Request.Context()).Info()
		if status >= 500 {
			event = zerolog.Ctx(ctx.Request.Context()).Error()
		}
		event.
			Str("method", ctx.Request.Method).
			Str("path", ctx.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Request completed")
	}
}

// BasicAuth HTTP Basic 认证，密码以 bcrypt 哈希保存
// 认证通过后 logger 上带有 user 字段
func BasicAuth(cfg config.AuthConfig) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		username, password, ok := ctx.Request.BasicAuth()
		if !ok || !checkCredentials(cfg, username, password) {
			zerolog.Ctx(ctx.Request.Context()).Warn().
				Str("username", username).
				Str("client_ip", ctx.ClientIP()).
				Msg("Authentication failed")
			ctx.Header("WWW-Authenticate", `Basic realm="ims"`)
			ginx.AbortWithError(ctx, apierror.ErrUnauthorized)
			return
		}

		ctx.Set(userKey, username)
		logger := zerolog.Ctx(ctx.Request.Context()).With().Str("user", username).Logger()
		ctx.Request = ctx.Request.WithContext(logger.WithContext(ctx.Request.Context()))
		ctx.Next()
	}
}

// checkCredentials 用户名比较使用常量时间，密码交给 bcrypt
func checkCredentials(cfg config.AuthConfig, username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(password)) == nil
	return userOK && passOK
}

// currentUser 返回认证通过的用户名，未启用认证时为空
func currentUser(ctx *gin.Context) string {
	return ctx.GetString(userKey)
}
