package middleware

import (
	"fanfan-translator/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last handler error as {"error": ..., "code": ...}.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		be := errutil.As(last.Err)
		if be.Code.HTTPStatus() >= 500 {
			zap.L().Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(last.Err),
			)
		}
		c.JSON(be.Code.HTTPStatus(), be.JSON())
	}
}
