package middlewares

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/quote-engine/internal/common"
	"github.com/hxuan190/quote-engine/internal/http/httputil"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminAuth rejects requests whose X-Admin-Token does not match token.
// An empty token rejects everything.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			httputil.HTTPError(c, common.HTTPErrorUnauthorized("admin api disabled"))
			return
		}
		got := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			httputil.HTTPError(c, common.HTTPErrorUnauthorized("invalid admin token"))
			return
		}
		c.Next()
	}
}
