package services

import (
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/cocesi/carpool-backend/internal/database"
	"github.com/cocesi/carpool-backend/internal/metrics"
	"github.com/cocesi/carpool-backend/internal/models"
)

// RatingService handles review submission and the atomic update of the
// rated user's aggregates. The insert, the average_rating recompute,
// the total_trips increment and the booking's rated flag all commit
// together, under a lock on the rated user's row.
type RatingService struct {
	db          database.DB
	ratingRepo  *database.RatingRepository
	bookingRepo *database.BookingRepository
	tripRepo    *database.TripRepository
	userRepo    *database.UserRepository
	events      EventPublisher
	metrics     *metrics.Metrics
	logger      *logrus.Logger
}

// NewRatingService creates a new RatingService
func NewRatingService(
	db database.DB,
	ratingRepo *database.RatingRepository,
	bookingRepo *database.BookingRepository,
	tripRepo *database.TripRepository,
	userRepo *database.UserRepository,
	events EventPublisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *RatingService {
	return &RatingService{
		db:          db,
		ratingRepo:  ratingRepo,
		bookingRepo: bookingRepo,
		tripRepo:    tripRepo,
		userRepo:    userRepo,
		events:      events,
		metrics:     m,
		logger:      logger,
	}
}

// Create submits a rating for the other party of a booking. The caller
// must be the booking's passenger or the trip's driver, the booking must
// be confirmed and the trip departed, and each party rates once.
func (s *RatingService) Create(rater *models.User, bookingID int64, req *models.CreateRatingRequest, now time.Time) (*models.Rating, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, NewNotFoundError("booking")
		}
		return nil, err
	}

	trip, err := s.tripRepo.GetByID(booking.TripID)
	if err != nil {
		return nil, err
	}

	var role models.RaterRole
	var ratedID int64
	switch {
	case booking.PassengerID == rater.ID:
		role = models.RaterRolePassenger
		ratedID = trip.DriverID
	case trip.DriverID == rater.ID:
		role = models.RaterRoleDriver
		ratedID = booking.PassengerID
	default:
		return nil, NewAuthorizationError("you are not a party to this booking")
	}

	if !booking.CanBeRated(trip.DepartureTime, now) {
		return nil, NewConflictError("this booking cannot be rated yet")
	}

	if err := req.Validate(role); err != nil {
		return nil, NewValidationError(err.Error())
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	exists, err := s.ratingRepo.ExistsForBookingAndRaterTx(tx, booking.ID, rater.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, NewConflictError("you already rated this booking")
	}

	// Lock the rated user's row so concurrent ratings of the same user
	// recompute the average one at a time.
	rated, err := s.userRepo.GetByIDForUpdateTx(tx, ratedID)
	if err != nil {
		return nil, err
	}

	rating := &models.Rating{
		BookingID: booking.ID,
		RaterID:   rater.ID,
		RatedID:   ratedID,
		RaterRole: role,
	}
	rating.DrivingRating = toNullInt64(req.DrivingRating)
	rating.PunctualityRating = toNullInt64(req.PunctualityRating)
	rating.VehicleRating = toNullInt64(req.VehicleRating)
	rating.PassengerPunctualityRating = toNullInt64(req.PassengerPunctualityRating)
	rating.RespectRating = toNullInt64(req.RespectRating)
	if req.Comment != nil && *req.Comment != "" {
		rating.Comment = models.NullString{NullString: sql.NullString{String: *req.Comment, Valid: true}}
	}
	rating.OverallRating = rating.CalculateOverall()

	if err := s.ratingRepo.CreateTx(tx, rating); err != nil {
		return nil, err
	}

	average, err := s.ratingRepo.AverageForUserTx(tx, ratedID)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateRatingStatsTx(tx, ratedID, average, rated.TotalTrips+1); err != nil {
		return nil, err
	}

	if err := s.bookingRepo.SetRatedFlagTx(tx, booking.ID, role); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"rating_id":  rating.ID,
		"booking_id": booking.ID,
		"rater_id":   rater.ID,
		"rated_id":   ratedID,
		"role":       role,
		"overall":    rating.OverallRating,
	}).Info("Rating created")

	if s.metrics != nil {
		s.metrics.RatingsCreated.WithLabelValues(string(role)).Inc()
	}
	if s.events != nil {
		s.events.RatingCreated(rating)
	}

	return rating, nil
}

// PendingRatings returns the bookings the user still has to rate, split
// by the role they would rate in
func (s *RatingService) PendingRatings(userID int64, now time.Time) (*models.PendingRatings, error) {
	asPassenger, err := s.bookingRepo.GetPendingRatingAsPassenger(userID, now)
	if err != nil {
		return nil, err
	}
	asDriver, err := s.bookingRepo.GetPendingRatingAsDriver(userID, now)
	if err != nil {
		return nil, err
	}
	return &models.PendingRatings{
		ToRateAsPassenger: asPassenger,
		ToRateAsDriver:    asDriver,
	}, nil
}

// UserRatings returns the ratings a user received, newest first, along
// with their aggregate stats
func (s *RatingService) UserRatings(userID int64, page int) ([]models.Rating, *models.RatingStats, error) {
	if page < 1 {
		page = 1
	}
	const pageSize = 20

	if _, err := s.userRepo.GetByID(userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, NewNotFoundError("user")
		}
		return nil, nil, err
	}

	ratings, err := s.ratingRepo.GetByRated(userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, err
	}
	stats, err := s.ratingRepo.StatsForUser(userID)
	if err != nil {
		return nil, nil, err
	}
	return ratings, stats, nil
}

func toNullInt64(v *int) models.NullInt64 {
	if v == nil {
		return models.NullInt64{}
	}
	return models.NullInt64{NullInt64: sql.NullInt64{Int64: int64(*v), Valid: true}}
}
