package handlers

import (
	"database/sql"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"github.com/cocesi/carpool-backend/internal/config"
	"github.com/cocesi/carpool-backend/internal/database"
	"github.com/cocesi/carpool-backend/internal/middleware"
	"github.com/cocesi/carpool-backend/internal/models"
)

// UserHandler handles profile and dashboard HTTP requests
type UserHandler struct {
	userRepo    *database.UserRepository
	tripRepo    *database.TripRepository
	bookingRepo *database.BookingRepository
	ratingRepo  *database.RatingRepository
	messageRepo *database.MessageRepository
	config      *config.Config
	logger      *logrus.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	userRepo *database.UserRepository,
	tripRepo *database.TripRepository,
	bookingRepo *database.BookingRepository,
	ratingRepo *database.RatingRepository,
	messageRepo *database.MessageRepository,
	cfg *config.Config,
	logger *logrus.Logger,
) *UserHandler {
	return &UserHandler{
		userRepo:    userRepo,
		tripRepo:    tripRepo,
		bookingRepo: bookingRepo,
		ratingRepo:  ratingRepo,
		messageRepo: messageRepo,
		config:      cfg,
		logger:      logger,
	}
}

// Show handles GET /api/v1/users/:id — a public profile with the
// trusted-driver flag and the most recent received ratings
func (h *UserHandler) Show(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid user id")
		return
	}

	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "user not found",
			})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	ratings, err := h.ratingRepo.GetRecentByRated(userID, 10)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":              user,
		"is_trusted_driver": user.IsTrustedDriver(),
		"recent_ratings":    ratings,
	})
}

// UpdateProfile handles PUT /api/v1/users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	user, err := h.userRepo.GetByID(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	applyProfileUpdate(user, &req)

	if user.IsDriver() && !user.HasVehicleInfo() {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_error",
			Message: "vehicle brand, model and seats are required for driver profiles",
		})
		return
	}

	if err := h.userRepo.UpdateProfile(user); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdatePassword handles PUT /api/v1/users/me/password
func (h *UserHandler) UpdatePassword(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	user, err := h.userRepo.GetByID(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Current password is incorrect",
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.config.Security.BcryptCost)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.userRepo.UpdatePassword(user.ID, string(hash)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("user_id", user.ID).Info("Password updated")
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// Dashboard handles GET /api/v1/users/me/dashboard
func (h *UserHandler) Dashboard(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	now := time.Now()

	user, err := h.userRepo.GetByID(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	upcomingTrips, err := h.tripRepo.GetUpcomingByDriver(user.ID, now)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	upcomingBookings, err := h.bookingRepo.GetUpcomingConfirmedByPassenger(user.ID, now)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	unread, err := h.messageRepo.CountUnreadForReceiver(user.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	pendingRequests := 0
	if user.IsDriver() {
		pendingRequests, err = h.bookingRepo.CountPendingByTripDriver(user.ID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user":              user,
		"upcoming_trips":    upcomingTrips,
		"upcoming_bookings": upcomingBookings,
		"unread_messages":   unread,
		"pending_requests":  pendingRequests,
		"stats": gin.H{
			"total_trips":      user.TotalTrips,
			"average_rating":   user.AverageRating,
			"total_co2_saved":  user.TotalCO2Saved,
			"trees_equivalent": treesEquivalent(user.TotalCO2Saved),
		},
	})
}

// treesEquivalent converts kg of CO2 into a yearly tree absorption
// equivalent (21 kg per tree per year), rounded to one decimal
func treesEquivalent(totalCO2Kg float64) float64 {
	return math.Round(totalCO2Kg/21*10) / 10
}

func applyProfileUpdate(user *models.User, req *models.UpdateProfileRequest) {
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Bio != nil {
		user.Bio = models.NullString{NullString: sql.NullString{String: *req.Bio, Valid: *req.Bio != ""}}
	}
	if req.FieldOfStudy != nil {
		user.FieldOfStudy = *req.FieldOfStudy
	}
	if req.Year != nil {
		user.Year = *req.Year
	}
	if req.ProfileType != nil {
		user.ProfileType = models.ProfileType(*req.ProfileType)
	}
	if req.Smoker != nil {
		user.Smoker = *req.Smoker
	}
	if req.Music != nil {
		user.Music = *req.Music
	}
	if req.Chattiness != nil {
		user.Chattiness = *req.Chattiness
	}
	if req.VehicleBrand != nil {
		user.VehicleBrand = models.NullString{NullString: sql.NullString{String: *req.VehicleBrand, Valid: *req.VehicleBrand != ""}}
	}
	if req.VehicleModel != nil {
		user.VehicleModel = models.NullString{NullString: sql.NullString{String: *req.VehicleModel, Valid: *req.VehicleModel != ""}}
	}
	if req.VehicleColor != nil {
		user.VehicleColor = models.NullString{NullString: sql.NullString{String: *req.VehicleColor, Valid: *req.VehicleColor != ""}}
	}
	if req.VehicleSeats != nil {
		user.VehicleSeats = models.NullInt64{NullInt64: sql.NullInt64{Int64: int64(*req.VehicleSeats), Valid: true}}
	}
}
