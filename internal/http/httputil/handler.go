package httputil

import "github.com/gin-gonic/gin"

// IHttpHandler mounts one resource. Root is the path under api/v1; the
// groups passed to SetRoutes are already rooted there, with admin under
// api/v1/admin.
type IHttpHandler interface {
	Root() string
	SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup)
}
