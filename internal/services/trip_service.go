package services

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/cocesi/carpool-backend/internal/database"
	"github.com/cocesi/carpool-backend/internal/metrics"
	"github.com/cocesi/carpool-backend/internal/models"
)

// TripService owns trip lifecycle and the occupancy/CO2 engine.
// RecomputeOccupancy is the single writer of occupied_seats, status and
// estimated_co2_saved; no other code path touches those columns.
type TripService struct {
	tripRepo    *database.TripRepository
	bookingRepo *database.BookingRepository
	metrics     *metrics.Metrics
	logger      *logrus.Logger
}

// NewTripService creates a new TripService
func NewTripService(tripRepo *database.TripRepository, bookingRepo *database.BookingRepository, m *metrics.Metrics, logger *logrus.Logger) *TripService {
	return &TripService{
		tripRepo:    tripRepo,
		bookingRepo: bookingRepo,
		metrics:     m,
		logger:      logger,
	}
}

// Create publishes a new trip for the given driver
func (s *TripService) Create(driver *models.User, req *models.CreateTripRequest, now time.Time) (*models.Trip, error) {
	if !driver.CanCreateTrip() {
		return nil, NewAuthorizationError("vehicle information is required to create a trip")
	}
	if err := req.Validate(now); err != nil {
		return nil, NewValidationError(err.Error())
	}
	if int64(req.AvailableSeats) > driver.VehicleSeats.Int64 {
		return nil, NewValidationError("available_seats cannot exceed the vehicle seat count")
	}

	trip := &models.Trip{
		DriverID:         driver.ID,
		DepartureAddress: req.DepartureAddress,
		DepartureLat:     req.DepartureLat,
		DepartureLng:     req.DepartureLng,
		ArrivalAddress:   req.ArrivalAddress,
		ArrivalLat:       req.ArrivalLat,
		ArrivalLng:       req.ArrivalLng,
		DepartureTime:    req.DepartureTime,
		AvailableSeats:   req.AvailableSeats,
		Status:           models.TripStatusActive,
		SmokerAllowed:    false,
		MusicAllowed:     true,
		AutoValidation:   true,
		DistanceKm:       req.DistanceKm,
	}
	if req.ArrivalTime != nil {
		trip.ArrivalTime = models.NullTime{NullTime: sql.NullTime{Time: *req.ArrivalTime, Valid: true}}
	}
	if req.IsRoundTrip != nil {
		trip.IsRoundTrip = *req.IsRoundTrip
	}
	if req.ReturnDepartureTime != nil {
		trip.ReturnDepartureTime = models.NullTime{NullTime: sql.NullTime{Time: *req.ReturnDepartureTime, Valid: true}}
	}
	if req.ReturnArrivalTime != nil {
		trip.ReturnArrivalTime = models.NullTime{NullTime: sql.NullTime{Time: *req.ReturnArrivalTime, Valid: true}}
	}
	if req.IsRecurring != nil {
		trip.IsRecurring = *req.IsRecurring
	}
	if len(req.RecurringDays) > 0 {
		trip.RecurringDays = req.RecurringDays
	}
	if req.RecurringEndDate != nil {
		trip.RecurringEndDate = models.NullTime{NullTime: sql.NullTime{Time: *req.RecurringEndDate, Valid: true}}
	}
	if req.SmokerAllowed != nil {
		trip.SmokerAllowed = *req.SmokerAllowed
	}
	if req.MusicAllowed != nil {
		trip.MusicAllowed = *req.MusicAllowed
	}
	if req.ChattinessPreference != nil {
		trip.ChattinessPreference = models.NullString{NullString: sql.NullString{String: *req.ChattinessPreference, Valid: true}}
	}
	if req.AutoValidation != nil {
		trip.AutoValidation = *req.AutoValidation
	}

	if err := s.tripRepo.Create(trip); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":   trip.ID,
		"driver_id": driver.ID,
		"seats":     trip.AvailableSeats,
	}).Info("Trip created")

	if s.metrics != nil {
		s.metrics.TripsCreated.Inc()
	}

	return trip, nil
}

// GetByID retrieves a trip
func (s *TripService) GetByID(tripID int64) (*models.Trip, error) {
	trip, err := s.tripRepo.GetByID(tripID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, NewNotFoundError("trip")
		}
		return nil, err
	}
	return trip, nil
}

// Search returns active future trips matching the filters
func (s *TripService) Search(q *models.TripSearchQuery, now time.Time) ([]models.Trip, error) {
	trips, err := s.tripRepo.Search(q, now)
	if err != nil {
		return nil, NewValidationError(err.Error())
	}
	return trips, nil
}

// MyTrips returns the trips offered by the user
func (s *TripService) MyTrips(driverID int64) ([]models.Trip, error) {
	return s.tripRepo.GetByDriver(driverID)
}

// Update edits a trip. Blocked once any booking has been confirmed.
func (s *TripService) Update(actor *models.User, tripID int64, req *models.UpdateTripRequest, now time.Time) (*models.Trip, error) {
	trip, err := s.GetByID(tripID)
	if err != nil {
		return nil, err
	}
	if trip.DriverID != actor.ID {
		return nil, NewAuthorizationError("only the driver can update this trip")
	}
	if trip.OccupiedSeats > 0 {
		return nil, NewConflictError("cannot update a trip with confirmed bookings")
	}
	if err := req.Validate(now); err != nil {
		return nil, NewValidationError(err.Error())
	}

	if req.DepartureTime != nil {
		trip.DepartureTime = *req.DepartureTime
	}
	if req.ArrivalTime != nil {
		trip.ArrivalTime = models.NullTime{NullTime: sql.NullTime{Time: *req.ArrivalTime, Valid: true}}
	}
	if req.AvailableSeats != nil {
		trip.AvailableSeats = *req.AvailableSeats
	}
	if req.AutoValidation != nil {
		trip.AutoValidation = *req.AutoValidation
	}
	if req.SmokerAllowed != nil {
		trip.SmokerAllowed = *req.SmokerAllowed
	}
	if req.MusicAllowed != nil {
		trip.MusicAllowed = *req.MusicAllowed
	}
	if req.ChattinessPreference != nil {
		trip.ChattinessPreference = models.NullString{NullString: sql.NullString{String: *req.ChattinessPreference, Valid: true}}
	}

	if err := s.tripRepo.Update(trip); err != nil {
		return nil, err
	}

	return trip, nil
}

// Cancel soft-deletes a trip by setting status=cancelled. Trips are
// never hard-deleted. Blocked once any booking has been confirmed.
func (s *TripService) Cancel(actor *models.User, tripID int64) error {
	trip, err := s.GetByID(tripID)
	if err != nil {
		return err
	}
	if trip.DriverID != actor.ID {
		return NewAuthorizationError("only the driver can cancel this trip")
	}
	if trip.OccupiedSeats > 0 {
		return NewConflictError("cannot cancel a trip with confirmed bookings")
	}

	if err := s.tripRepo.UpdateStatus(tripID, models.TripStatusCancelled); err != nil {
		return err
	}

	s.logger.WithField("trip_id", tripID).Info("Trip cancelled")
	return nil
}

// RecomputeOccupancyTx derives occupied_seats from the sum of confirmed
// bookings, updates the active/full status and refreshes the CO2
// estimate, all within the caller's transaction. The booking state
// machine calls this after every confirmation and after cancellation of
// a previously confirmed booking. A cancelled or completed trip keeps
// its status.
func (s *TripService) RecomputeOccupancyTx(tx *sqlx.Tx, trip *models.Trip) error {
	occupied, err := s.bookingRepo.SumConfirmedSeatsTx(tx, trip.ID)
	if err != nil {
		return err
	}

	trip.OccupiedSeats = occupied
	if trip.Status == models.TripStatusActive || trip.Status == models.TripStatusFull {
		if occupied >= trip.AvailableSeats {
			trip.Status = models.TripStatusFull
		} else {
			trip.Status = models.TripStatusActive
		}
	}
	trip.EstimatedCO2Saved = trip.CalculateCO2Saved()

	return s.tripRepo.UpdateOccupancyTx(tx, trip.ID, trip.OccupiedSeats, trip.Status, trip.EstimatedCO2Saved)
}
