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

// RatingHandler handles rating-related HTTP requests
type RatingHandler struct {
	ratingService *services.RatingService
	userRepo      *database.UserRepository
	logger        *logrus.Logger
}

// NewRatingHandler creates a new rating handler
func NewRatingHandler(ratingService *services.RatingService, userRepo *database.UserRepository, logger *logrus.Logger) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
		userRepo:      userRepo,
		logger:        logger,
	}
}

// Create handles POST /api/v1/bookings/:id/rating
func (h *RatingHandler) Create(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	user, err := h.userRepo.GetByID(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid booking id")
		return
	}

	var req models.CreateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	rating, err := h.ratingService.Create(user, bookingID, &req, time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"rating": rating})
}

// Pending handles GET /api/v1/ratings/pending
func (h *RatingHandler) Pending(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	pending, err := h.ratingService.PendingRatings(userCtx.UserID, time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pending)
}

// ForUser handles GET /api/v1/users/:id/ratings
func (h *RatingHandler) ForUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid user id")
		return
	}

	page := 1
	if p, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = p
	}

	ratings, stats, err := h.ratingService.UserRatings(userID, page)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ratings": ratings,
		"stats":   stats,
		"page":    page,
	})
}
