package middleware

import (
	"crypto/subtle"

	"fanfan-translator/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminToken requires X-Admin-Token to equal token exactly. An empty token
// locks the route group.
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			_ = c.Error(errutil.Unauthorized("unauthorized", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
