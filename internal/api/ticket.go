package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/internal/safety"
	"helpdesk-collab/backend/internal/service"
	apperrors "helpdesk-collab/backend/pkg/errors"
	"helpdesk-collab/backend/pkg/logger"
)

// TicketHandler exposes ticket creation, listing and update endpoints. All
// creation goes through the content safety gate; there is no path that
// writes a ticket row without classification.
type TicketHandler struct {
	gate    *safety.Gate
	tickets *service.TicketService
	logger  *logger.Logger
}

func NewTicketHandler(gate *safety.Gate, tickets *service.TicketService, logger *logger.Logger) *TicketHandler {
	return &TicketHandler{gate: gate, tickets: tickets, logger: logger}
}

type createTicketRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	Urgency     string `json:"urgency" binding:"required"`
}

type updateTicketRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Urgency     *string `json:"urgency"`
	Status      *string `json:"status"`
	Department  *string `json:"department"`
	AssigneeID  *uint   `json:"assignee_id"`
	Feedback    *string `json:"feedback"`
}

// Create handles POST /tickets.
func (h *TicketHandler) Create(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	actor := actorFrom(c)
	ticket, err := h.gate.Submit(c.Request.Context(), safety.SubmitInput{
		Title:       req.Title,
		Description: req.Description,
		Urgency:     models.Urgency(req.Urgency),
		OwnerID:     actor.UserID,
	})
	if err != nil {
		var flagged *safety.ContentFlaggedError
		if errors.As(err, &flagged) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "CONTENT_FLAGGED",
					"message": flagged.UserMessage,
					"details": gin.H{"content_type": flagged.ContentType},
				},
			})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

// Get handles GET /tickets/:id.
func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ticket, err := h.tickets.GetTicket(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// List handles GET /tickets.
func (h *TicketHandler) List(c *gin.Context) {
	in := service.ListTicketsInput{
		Search: c.Query("search"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}
	if s := c.Query("status"); s != "" {
		status, err := models.NewTicketStatus(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
			return
		}
		in.Status = &status
	}
	if d := c.Query("department"); d != "" {
		dep := models.Department(d)
		if !dep.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid department filter"})
			return
		}
		in.Department = &dep
	}

	tickets, total, err := h.tickets.ListTickets(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": tickets,
		"total":   total,
		"page":    in.Page,
		"limit":   in.Limit,
	})
}

// Update handles PATCH /tickets/:id.
func (h *TicketHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	in := service.UpdateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Feedback:    req.Feedback,
	}
	if req.Urgency != nil {
		u := models.Urgency(*req.Urgency)
		in.Urgency = &u
	}
	if req.Status != nil {
		status, err := models.NewTicketStatus(*req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status value"})
			return
		}
		in.Status = &status
	}
	if req.Department != nil {
		d := models.Department(*req.Department)
		in.Department = &d
	}

	ticket, err := h.tickets.UpdateTicket(c.Request.Context(), actorFrom(c), id, in)
	if err != nil {
		var transErr *models.TransitionError
		if errors.As(err, &transErr) {
			c.JSON(http.StatusConflict, gin.H{
				"error": gin.H{
					"code":    "INVALID_TRANSITION",
					"message": transErr.Error(),
					"details": gin.H{"from": transErr.From, "to": transErr.To},
				},
			})
			return
		}
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// actorFrom builds the service actor from the auth middleware's context keys.
func actorFrom(c *gin.Context) service.Actor {
	actor := service.Actor{}
	if v, ok := c.Get("userId"); ok {
		actor.UserID = v.(uint)
	}
	if v, ok := c.Get("userRole"); ok {
		actor.Role = v.(models.Role)
	}
	return actor
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// respondError renders an AppError-shaped response for service failures.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	appErr := apperrors.FromError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error("Request failed",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", err.Error(),
		)
	}
	c.JSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		},
	})
}
