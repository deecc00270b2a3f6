package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/sor-engine/internal/common"
)

// Response is the envelope of every api/v1 reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func HandleSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func writeError(c *gin.Context, e *common.HttpError) {
	c.JSON(e.StatusCode, Response{
		Success: false,
		Code:    e.Code,
		Error:   e.Message,
	})
}

// HandleBadRequest reports a request that failed binding or validation.
func HandleBadRequest(c *gin.Context, msg string) {
	writeError(c, common.HTTPErrorBadRequest(msg))
}

// HandleError writes err with the status its kind maps to.
func HandleError(c *gin.Context, err error) {
	writeError(c, common.ToHttpError(err))
}
