package accesslog

import (
	"github.com/gin-gonic/gin"
)

const contextKey = "access_logger"

// Middleware makes logger available to handlers through FromContext.
func Middleware(logger *AccessLogger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(contextKey, logger)
		ctx.Next()
	}
}

// FromContext returns the request's access logger, or nil.
func FromContext(ctx *gin.Context) *AccessLogger {
	if logger, exists := ctx.Get(contextKey); exists {
		if al, ok := logger.(*AccessLogger); ok {
			return al
		}
	}
	return nil
}
