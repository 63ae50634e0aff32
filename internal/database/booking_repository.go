package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/cocesi/carpool-backend/internal/models"
)

const bookingColumns = `id, trip_id, passenger_id, seats_booked, message, status,
	driver_rated, passenger_rated, co2_saved, created_at, updated_at`

// BookingRepository handles database operations for the bookings table
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// CreateTx inserts a new booking within the given transaction and
// populates the generated id and timestamps
func (r *BookingRepository) CreateTx(tx *sqlx.Tx, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (trip_id, passenger_id, seats_booked, message, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, driver_rated, passenger_rated, co2_saved, created_at, updated_at
	`

	err := tx.QueryRow(
		query,
		booking.TripID, booking.PassengerID, booking.SeatsBooked, booking.Message, booking.Status,
	).Scan(
		&booking.ID, &booking.DriverRated, &booking.PassengerRated,
		&booking.CO2Saved, &booking.CreatedAt, &booking.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking by id
func (r *BookingRepository) GetByID(bookingID int64) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	if err := r.db.Get(booking, query, bookingID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch booking: %w", err)
	}

	return booking, nil
}

// GetByIDTx retrieves a booking by id within the given transaction
func (r *BookingRepository) GetByIDTx(tx *sqlx.Tx, bookingID int64) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	if err := tx.Get(booking, query, bookingID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch booking: %w", err)
	}

	return booking, nil
}

// ExistsForTripAndPassengerTx reports whether the passenger already has a
// booking on this trip, regardless of its status
func (r *BookingRepository) ExistsForTripAndPassengerTx(tx *sqlx.Tx, tripID, passengerID int64) (bool, error) {
	var count int
	err := tx.Get(&count,
		`SELECT COUNT(*) FROM bookings WHERE trip_id = $1 AND passenger_id = $2`,
		tripID, passengerID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check existing booking: %w", err)
	}
	return count > 0, nil
}

// GetByPassenger retrieves all bookings made by a passenger, newest first
func (r *BookingRepository) GetByPassenger(passengerID int64) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE passenger_id = $1
		ORDER BY created_at DESC`

	if err := r.db.Select(&bookings, query, passengerID); err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %w", err)
	}

	return bookings, nil
}

// GetPendingByTripDriver retrieves pending bookings on trips offered by
// the given driver, newest first
func (r *BookingRepository) GetPendingByTripDriver(driverID int64) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT b.` + bookingColumnsQualified("b") + ` FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE t.driver_id = $1 AND b.status = $2
		ORDER BY b.created_at DESC`

	if err := r.db.Select(&bookings, query, driverID, models.BookingStatusPending); err != nil {
		return nil, fmt.Errorf("failed to fetch pending bookings: %w", err)
	}

	return bookings, nil
}

// CountPendingByTripDriver counts pending bookings across the driver's trips
func (r *BookingRepository) CountPendingByTripDriver(driverID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE t.driver_id = $1 AND b.status = $2`

	if err := r.db.Get(&count, query, driverID, models.BookingStatusPending); err != nil {
		return 0, fmt.Errorf("failed to count pending bookings: %w", err)
	}

	return count, nil
}

// GetUpcomingConfirmedByPassenger retrieves confirmed bookings on trips
// that have not departed yet
func (r *BookingRepository) GetUpcomingConfirmedByPassenger(passengerID int64, now time.Time) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT b.` + bookingColumnsQualified("b") + ` FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.passenger_id = $1 AND b.status = $2 AND t.departure_time > $3
		ORDER BY b.created_at DESC`

	if err := r.db.Select(&bookings, query, passengerID, models.BookingStatusConfirmed, now); err != nil {
		return nil, fmt.Errorf("failed to fetch upcoming bookings: %w", err)
	}

	return bookings, nil
}

// SumConfirmedSeatsTx sums seats_booked over the trip's confirmed
// bookings. This is the source the occupancy engine derives
// occupied_seats from.
func (r *BookingRepository) SumConfirmedSeatsTx(tx *sqlx.Tx, tripID int64) (int, error) {
	var total int
	err := tx.Get(&total,
		`SELECT COALESCE(SUM(seats_booked), 0) FROM bookings WHERE trip_id = $1 AND status = $2`,
		tripID, models.BookingStatusConfirmed,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sum confirmed seats: %w", err)
	}
	return total, nil
}

// UpdateStatusTx sets the booking status within the given transaction
func (r *BookingRepository) UpdateStatusTx(tx *sqlx.Tx, bookingID int64, status models.BookingStatus) error {
	result, err := tx.Exec(
		`UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`,
		bookingID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("booking not found")
	}

	return nil
}

// SetCO2SavedTx stores the booking's own CO2 contribution
func (r *BookingRepository) SetCO2SavedTx(tx *sqlx.Tx, bookingID int64, co2Saved float64) error {
	_, err := tx.Exec(
		`UPDATE bookings SET co2_saved = $2, updated_at = NOW() WHERE id = $1`,
		bookingID, co2Saved,
	)
	if err != nil {
		return fmt.Errorf("failed to set booking co2: %w", err)
	}
	return nil
}

// SetRatedFlagTx flips the rated flag for the side that was just rated.
// A passenger-side rating scores the driver, so it sets driver_rated.
func (r *BookingRepository) SetRatedFlagTx(tx *sqlx.Tx, bookingID int64, role models.RaterRole) error {
	column := "passenger_rated"
	if role == models.RaterRolePassenger {
		column = "driver_rated"
	}

	_, err := tx.Exec(
		`UPDATE bookings SET `+column+` = TRUE, updated_at = NOW() WHERE id = $1`,
		bookingID,
	)
	if err != nil {
		return fmt.Errorf("failed to set rated flag: %w", err)
	}
	return nil
}

// GetPendingRatingAsPassenger retrieves confirmed, departed bookings
// where the user is the passenger and has not rated the driver yet
func (r *BookingRepository) GetPendingRatingAsPassenger(userID int64, now time.Time) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT b.` + bookingColumnsQualified("b") + ` FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.passenger_id = $1 AND b.status = $2
		  AND b.driver_rated = FALSE AND t.departure_time < $3
		ORDER BY t.departure_time DESC`

	if err := r.db.Select(&bookings, query, userID, models.BookingStatusConfirmed, now); err != nil {
		return nil, fmt.Errorf("failed to fetch pending ratings: %w", err)
	}

	return bookings, nil
}

// GetPendingRatingAsDriver retrieves confirmed, departed bookings on the
// user's trips where the passenger has not been rated yet
func (r *BookingRepository) GetPendingRatingAsDriver(userID int64, now time.Time) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT b.` + bookingColumnsQualified("b") + ` FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE t.driver_id = $1 AND b.status = $2
		  AND b.passenger_rated = FALSE AND t.departure_time < $3
		ORDER BY t.departure_time DESC`

	if err := r.db.Select(&bookings, query, userID, models.BookingStatusConfirmed, now); err != nil {
		return nil, fmt.Errorf("failed to fetch pending ratings: %w", err)
	}

	return bookings, nil
}

// bookingColumnsQualified prefixes every booking column with the table alias
func bookingColumnsQualified(alias string) string {
	return `id, ` + alias + `.trip_id, ` + alias + `.passenger_id, ` + alias + `.seats_booked, ` +
		alias + `.message, ` + alias + `.status, ` + alias + `.driver_rated, ` +
		alias + `.passenger_rated, ` + alias + `.co2_saved, ` + alias + `.created_at, ` + alias + `.updated_at`
}
