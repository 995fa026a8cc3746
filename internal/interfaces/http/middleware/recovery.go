// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"llm-ledger-api/internal/interfaces/http/dto"
	"llm-ledger-api/pkg/errors"
	"llm-ledger-api/pkg/logger"
)

// Recovery Panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					fmt.Errorf("%v", err),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				dto.ErrorFromApp(c, errors.New(errors.CodeInternalError, "internal server error"))
				c.Abort()
			}
		}()

		c.Next()
	}
}
