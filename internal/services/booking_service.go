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

// EventPublisher publishes domain events after a booking or rating
// state change has been committed. Publish failures are logged by the
// implementation and never fail the operation.
type EventPublisher interface {
	BookingConfirmed(booking *models.Booking, trip *models.Trip)
	BookingCancelled(booking *models.Booking, trip *models.Trip, by models.CancelActor)
	RatingCreated(rating *models.Rating)
}

// BookingService implements the booking state machine. Every state
// transition runs in a transaction that locks the trip row first, so
// concurrent bookings against the same trip serialize on the row lock
// and the capacity check cannot be raced past.
type BookingService struct {
	db          database.DB
	bookingRepo *database.BookingRepository
	tripRepo    *database.TripRepository
	userRepo    *database.UserRepository
	tripService *TripService
	events      EventPublisher
	metrics     *metrics.Metrics
	logger      *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	db database.DB,
	bookingRepo *database.BookingRepository,
	tripRepo *database.TripRepository,
	userRepo *database.UserRepository,
	tripService *TripService,
	events EventPublisher,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		db:          db,
		bookingRepo: bookingRepo,
		tripRepo:    tripRepo,
		userRepo:    userRepo,
		tripService: tripService,
		events:      events,
		metrics:     m,
		logger:      logger,
	}
}

// Create requests a booking on a trip. The booking starts pending; when
// the trip has auto validation enabled it is confirmed immediately, as a
// second transition within the same transaction.
func (s *BookingService) Create(passenger *models.User, req *models.CreateBookingRequest, now time.Time) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err.Error())
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	trip, err := s.tripRepo.GetByIDForUpdateTx(tx, req.TripID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, NewNotFoundError("trip")
		}
		return nil, err
	}

	if trip.DriverID == passenger.ID {
		return nil, NewAuthorizationError("you cannot book your own trip")
	}

	exists, err := s.bookingRepo.ExistsForTripAndPassengerTx(tx, trip.ID, passenger.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, NewConflictError("you already have a booking on this trip")
	}

	if !trip.CanBook(req.SeatsBooked, now) {
		return nil, NewConflictError("this trip cannot be booked")
	}

	booking := &models.Booking{
		TripID:      trip.ID,
		PassengerID: passenger.ID,
		SeatsBooked: req.SeatsBooked,
		Status:      models.BookingStatusPending,
	}
	if req.Message != nil && *req.Message != "" {
		booking.Message = models.NullString{NullString: sql.NullString{String: *req.Message, Valid: true}}
	}

	if err := s.bookingRepo.CreateTx(tx, booking); err != nil {
		return nil, err
	}

	autoConfirmed := false
	if trip.AutoValidation {
		if err := s.confirmTx(tx, booking, trip); err != nil {
			return nil, err
		}
		autoConfirmed = true
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"trip_id":      trip.ID,
		"passenger_id": passenger.ID,
		"seats":        booking.SeatsBooked,
		"status":       booking.Status,
	}).Info("Booking created")

	if s.metrics != nil {
		s.metrics.BookingsCreated.Inc()
	}
	if autoConfirmed {
		s.afterConfirm(booking, trip)
	}

	booking.Trip = trip
	return booking, nil
}

// Confirm accepts a pending booking. Only the trip's driver may do so,
// and capacity is re-checked under the trip row lock before the seats
// are committed.
func (s *BookingService) Confirm(driver *models.User, bookingID int64, now time.Time) (*models.Booking, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	booking, trip, err := s.lockBookingTx(tx, bookingID)
	if err != nil {
		return nil, err
	}

	if trip.DriverID != driver.ID {
		return nil, NewAuthorizationError("only the driver can confirm this booking")
	}
	if booking.Status != models.BookingStatusPending {
		return nil, NewConflictError("only pending bookings can be confirmed")
	}
	if !trip.CanBook(booking.SeatsBooked, now) {
		return nil, NewConflictError("not enough seats remaining on this trip")
	}

	if err := s.confirmTx(tx, booking, trip); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"trip_id":    trip.ID,
	}).Info("Booking confirmed")

	s.afterConfirm(booking, trip)

	booking.Trip = trip
	return booking, nil
}

// Refuse declines a pending booking. Seats were never held, so no
// occupancy change happens.
func (s *BookingService) Refuse(driver *models.User, bookingID int64) (*models.Booking, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	booking, trip, err := s.lockBookingTx(tx, bookingID)
	if err != nil {
		return nil, err
	}

	if trip.DriverID != driver.ID {
		return nil, NewAuthorizationError("only the driver can refuse this booking")
	}
	if booking.Status != models.BookingStatusPending {
		return nil, NewConflictError("only pending bookings can be refused")
	}

	if err := s.bookingRepo.UpdateStatusTx(tx, booking.ID, models.BookingStatusRefused); err != nil {
		return nil, err
	}
	booking.Status = models.BookingStatusRefused

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"trip_id":    trip.ID,
	}).Info("Booking refused")

	booking.Trip = trip
	return booking, nil
}

// Cancel withdraws a booking, by its passenger or by the trip's driver.
// Seats and CO2 are released only when the booking held them, that is
// when its status before the transition was confirmed.
func (s *BookingService) Cancel(actor *models.User, bookingID int64, now time.Time) (*models.Booking, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	booking, trip, err := s.lockBookingTx(tx, bookingID)
	if err != nil {
		return nil, err
	}

	var by models.CancelActor
	switch {
	case booking.PassengerID == actor.ID:
		by = models.CancelledByPassenger
	case trip.DriverID == actor.ID:
		by = models.CancelledByDriver
	default:
		return nil, NewAuthorizationError("you are not a party to this booking")
	}

	if !booking.CanBeCancelled(trip.DepartureTime, now) {
		return nil, NewConflictError("this booking can no longer be cancelled")
	}

	wasConfirmed := booking.Status == models.BookingStatusConfirmed

	newStatus := models.CancelledStatus(by)
	if err := s.bookingRepo.UpdateStatusTx(tx, booking.ID, newStatus); err != nil {
		return nil, err
	}
	booking.Status = newStatus

	if wasConfirmed {
		if err := s.tripService.RecomputeOccupancyTx(tx, trip); err != nil {
			return nil, err
		}
		if err := s.userRepo.AddCO2SavedTx(tx, booking.PassengerID, -booking.CO2Saved); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":    booking.ID,
		"trip_id":       trip.ID,
		"cancelled_by":  by,
		"was_confirmed": wasConfirmed,
	}).Info("Booking cancelled")

	if s.metrics != nil {
		s.metrics.BookingsCancelled.WithLabelValues(string(by)).Inc()
	}
	if s.events != nil {
		s.events.BookingCancelled(booking, trip, by)
	}

	booking.Trip = trip
	return booking, nil
}

// GetByID retrieves a booking visible to the given user. Only the
// passenger and the trip's driver may see it.
func (s *BookingService) GetByID(actor *models.User, bookingID int64) (*models.Booking, error) {
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

	if booking.PassengerID != actor.ID && trip.DriverID != actor.ID {
		return nil, NewAuthorizationError("you are not a party to this booking")
	}

	booking.Trip = trip
	return booking, nil
}

// MyBookings returns all bookings the user made as a passenger, with
// their trips attached
func (s *BookingService) MyBookings(passengerID int64) ([]models.Booking, error) {
	bookings, err := s.bookingRepo.GetByPassenger(passengerID)
	if err != nil {
		return nil, err
	}
	s.attachTrips(bookings)
	return bookings, nil
}

// PendingForDriver returns pending booking requests across the driver's
// trips, with trips and passengers attached
func (s *BookingService) PendingForDriver(driverID int64) ([]models.Booking, error) {
	bookings, err := s.bookingRepo.GetPendingByTripDriver(driverID)
	if err != nil {
		return nil, err
	}
	s.attachTrips(bookings)
	s.attachPassengers(bookings)
	return bookings, nil
}

// lockBookingTx loads the booking, then its trip under FOR UPDATE. The
// trip lock is the serialization point for all transitions touching the
// same trip.
func (s *BookingService) lockBookingTx(tx *sqlx.Tx, bookingID int64) (*models.Booking, *models.Trip, error) {
	booking, err := s.bookingRepo.GetByIDTx(tx, bookingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, NewNotFoundError("booking")
		}
		return nil, nil, err
	}

	trip, err := s.tripRepo.GetByIDForUpdateTx(tx, booking.TripID)
	if err != nil {
		return nil, nil, err
	}

	return booking, trip, nil
}

// confirmTx performs the pending to confirmed transition inside the
// caller's transaction: status flip, occupancy recompute, booking CO2
// and the passenger's lifetime CO2 total.
func (s *BookingService) confirmTx(tx *sqlx.Tx, booking *models.Booking, trip *models.Trip) error {
	if err := s.bookingRepo.UpdateStatusTx(tx, booking.ID, models.BookingStatusConfirmed); err != nil {
		return err
	}
	booking.Status = models.BookingStatusConfirmed

	if err := s.tripService.RecomputeOccupancyTx(tx, trip); err != nil {
		return err
	}

	booking.CO2Saved = booking.CalculateCO2Saved(trip.DistanceKm)
	if err := s.bookingRepo.SetCO2SavedTx(tx, booking.ID, booking.CO2Saved); err != nil {
		return err
	}

	return s.userRepo.AddCO2SavedTx(tx, booking.PassengerID, booking.CO2Saved)
}

// afterConfirm emits the post-commit side effects of a confirmation
func (s *BookingService) afterConfirm(booking *models.Booking, trip *models.Trip) {
	if s.metrics != nil {
		s.metrics.BookingsConfirmed.Inc()
	}
	if s.events != nil {
		s.events.BookingConfirmed(booking, trip)
	}
}

func (s *BookingService) attachTrips(bookings []models.Booking) {
	for i := range bookings {
		trip, err := s.tripRepo.GetByID(bookings[i].TripID)
		if err != nil {
			s.logger.WithError(err).WithField("trip_id", bookings[i].TripID).Warn("Failed to load trip for booking")
			continue
		}
		bookings[i].Trip = trip
	}
}

func (s *BookingService) attachPassengers(bookings []models.Booking) {
	for i := range bookings {
		passenger, err := s.userRepo.GetByID(bookings[i].PassengerID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", bookings[i].PassengerID).Warn("Failed to load passenger for booking")
			continue
		}
		passenger.PasswordHash = ""
		bookings[i].Passenger = passenger
	}
}
