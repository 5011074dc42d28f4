package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{
				Code:    "HEALTH_NOT_AVAILABLE",
				Message: "Health monitor is not configured",
			},
		})
		return
	}

	status := s.health.GetStatus()

	code := http.StatusOK
	label := "healthy"
	if !status.Healthy {
		code = http.StatusServiceUnavailable
		label = "unhealthy"
	}

	c.JSON(code, gin.H{
		"status":    label,
		"timestamp": status.Timestamp,
		"checks": gin.H{
			"session": status,
		},
	})
}

// handleGetSession handles getting the polled session's status
func (s *Server) handleGetSession(c *gin.Context) {
	if s.session == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SESSION_NOT_AVAILABLE",
				Message: "No session is configured",
			},
		})
		return
	}

	c.JSON(http.StatusOK, s.session.Status())
}
