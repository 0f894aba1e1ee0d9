package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"helpdesk-collab/backend/internal/repository"
	"helpdesk-collab/backend/pkg/logger"
)

// ViolationHandler exposes flagged-submission records to admins for review.
type ViolationHandler struct {
	violations repository.ViolationRepository
	logger     *logger.Logger
}

func NewViolationHandler(violations repository.ViolationRepository, logger *logger.Logger) *ViolationHandler {
	return &ViolationHandler{violations: violations, logger: logger}
}

// ListForUser handles GET /admin/users/:id/violations.
func (h *ViolationHandler) ListForUser(c *gin.Context) {
	userID, ok := pathID(c)
	if !ok {
		return
	}

	violations, err := h.violations.ListByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"violations": violations})
}
