package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Fail writes the uniform failure body. Every failure is a 500; the message
// is echoed to the client verbatim.
func Fail(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, FailureResponse{
		Success: false,
		Error:   message,
	})
}
