package httputil

import "github.com/gin-gonic/gin"

// IHttpHandler mounts a resource under Root() on the public, private and admin groups.
type IHttpHandler interface {
	Root() string
	SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup)
}
