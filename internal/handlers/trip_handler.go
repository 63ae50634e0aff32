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

// TripHandler handles trip-related HTTP requests
type TripHandler struct {
	tripService *services.TripService
	userRepo    *database.UserRepository
	logger      *logrus.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(tripService *services.TripService, userRepo *database.UserRepository, logger *logrus.Logger) *TripHandler {
	return &TripHandler{
		tripService: tripService,
		userRepo:    userRepo,
		logger:      logger,
	}
}

// Create handles POST /api/v1/trips
func (h *TripHandler) Create(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	trip, err := h.tripService.Create(user, &req, time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"trip": trip})
}

// Search handles GET /api/v1/trips
func (h *TripHandler) Search(c *gin.Context) {
	var q models.TripSearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBadRequest(c, "Invalid query parameters")
		return
	}

	trips, err := h.tripService.Search(&q, time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trips": trips,
		"page":  q.Page,
	})
}

// Show handles GET /api/v1/trips/:id
func (h *TripHandler) Show(c *gin.Context) {
	tripID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid trip id")
		return
	}

	trip, err := h.tripService.GetByID(tripID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	driver, err := h.userRepo.GetByID(trip.DriverID)
	if err == nil {
		trip.Driver = driver
	}

	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// MyTrips handles GET /api/v1/trips/mine
func (h *TripHandler) MyTrips(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	trips, err := h.tripService.MyTrips(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trips": trips})
}

// Update handles PUT /api/v1/trips/:id
func (h *TripHandler) Update(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	tripID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid trip id")
		return
	}

	var req models.UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	trip, err := h.tripService.Update(user, tripID, &req, time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"trip": trip})
}

// Cancel handles DELETE /api/v1/trips/:id
func (h *TripHandler) Cancel(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	tripID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid trip id")
		return
	}

	if err := h.tripService.Cancel(user, tripID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Trip cancelled"})
}

func (h *TripHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userCtx := middleware.MustGetUserContext(c)
	user, err := h.userRepo.GetByID(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	return user, true
}
