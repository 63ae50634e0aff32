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

// BookingHandler handles booking-related HTTP requests
type BookingHandler struct {
	bookingService *services.BookingService
	userRepo       *database.UserRepository
	logger         *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService *services.BookingService, userRepo *database.UserRepository, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		userRepo:       userRepo,
		logger:         logger,
	}
}

// Create handles POST /api/v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	booking, err := h.bookingService.Create(user, &req, time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"booking": booking})
}

// Show handles GET /api/v1/bookings/:id
func (h *BookingHandler) Show(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid booking id")
		return
	}

	booking, err := h.bookingService.GetByID(user, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// Confirm handles POST /api/v1/bookings/:id/confirm
func (h *BookingHandler) Confirm(c *gin.Context) {
	h.transition(c, func(user *models.User, bookingID int64) (*models.Booking, error) {
		return h.bookingService.Confirm(user, bookingID, time.Now())
	})
}

// Refuse handles POST /api/v1/bookings/:id/refuse
func (h *BookingHandler) Refuse(c *gin.Context) {
	h.transition(c, func(user *models.User, bookingID int64) (*models.Booking, error) {
		return h.bookingService.Refuse(user, bookingID)
	})
}

// Cancel handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, func(user *models.User, bookingID int64) (*models.Booking, error) {
		return h.bookingService.Cancel(user, bookingID, time.Now())
	})
}

// MyBookings handles GET /api/v1/bookings/mine
func (h *BookingHandler) MyBookings(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	bookings, err := h.bookingService.MyBookings(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// PendingRequests handles GET /api/v1/bookings/requests
func (h *BookingHandler) PendingRequests(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	bookings, err := h.bookingService.PendingForDriver(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// transition factors the shared shape of confirm/refuse/cancel
func (h *BookingHandler) transition(c *gin.Context, op func(*models.User, int64) (*models.Booking, error)) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid booking id")
		return
	}

	booking, err := op(user, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

func (h *BookingHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userCtx := middleware.MustGetUserContext(c)
	user, err := h.userRepo.GetByID(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	return user, true
}
