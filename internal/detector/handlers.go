package detector

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Service serves the mock classifier over HTTP.
type Service struct {
	shape  Shape
	logger *slog.Logger
}

// NewService creates a mock detector answering in the given shape.
func NewService(shape Shape, logger *slog.Logger) *Service {
	return &Service{shape: shape, logger: logger}
}

// RegisterRoutes mounts the classifier endpoints.
func (s *Service) RegisterRoutes(r *gin.Engine) {
	r.POST("/support-check", s.handleCheck)
	r.OPTIONS("/support-check", s.handleOptions)
}

// corsHeaders mirror the real service, which is called cross-origin from
// the browser chrome.
func corsHeaders(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Service) handleCheck(c *gin.Context) {
	corsHeaders(c)

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	a := classify(req)
	s.logger.Info("classified request",
		"user_id", req.UserID,
		"fraud", a.fraud,
		"score", a.score,
		"shape", string(s.shape),
	)

	c.JSON(http.StatusOK, respond(s.shape, a))
}

func (s *Service) handleOptions(c *gin.Context) {
	corsHeaders(c)
	c.Status(http.StatusOK)
}
