package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Check reports static liveness. The model is loaded before the listener
// starts, so a running process always has it.
func (h *HealthHandler) Check(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"model_loaded": true,
	})
}
