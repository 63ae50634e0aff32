package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/cocesi/carpool-backend/internal/database"
	"github.com/cocesi/carpool-backend/internal/middleware"
	"github.com/cocesi/carpool-backend/internal/models"
	"github.com/cocesi/carpool-backend/internal/services"
)

// MessageHandler handles in-booking messaging HTTP requests
type MessageHandler struct {
	messageService *services.MessageService
	userRepo       *database.UserRepository
	logger         *logrus.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *services.MessageService, userRepo *database.UserRepository, logger *logrus.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		userRepo:       userRepo,
		logger:         logger,
	}
}

// List handles GET /api/v1/bookings/:id/messages — returns the
// conversation and marks the caller's received messages read
func (h *MessageHandler) List(c *gin.Context) {
	user, bookingID, ok := h.parties(c)
	if !ok {
		return
	}

	messages, err := h.messageService.Conversation(user, bookingID, time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Send handles POST /api/v1/bookings/:id/messages
func (h *MessageHandler) Send(c *gin.Context) {
	user, bookingID, ok := h.parties(c)
	if !ok {
		return
	}

	var req models.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	message, err := h.messageService.Send(user, bookingID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": message})
}

// Templates handles GET /api/v1/bookings/:id/messages/templates
func (h *MessageHandler) Templates(c *gin.Context) {
	user, bookingID, ok := h.parties(c)
	if !ok {
		return
	}

	templates, err := h.messageService.TemplatesFor(user, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// UnreadCount handles GET /api/v1/messages/unread-count
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	count, err := h.messageService.UnreadCount(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *MessageHandler) parties(c *gin.Context) (*models.User, int64, bool) {
	userCtx := middleware.MustGetUserContext(c)

	user, err := h.userRepo.GetByID(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return nil, 0, false
	}

	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid booking id")
		return nil, 0, false
	}

	return user, bookingID, true
}
