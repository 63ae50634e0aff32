package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/cocesi/carpool-backend/internal/models"
)

const tripColumns = `id, driver_id, departure_address, departure_lat, departure_lng,
	arrival_address, arrival_lat, arrival_lng, departure_time, arrival_time,
	is_round_trip, return_departure_time, return_arrival_time,
	is_recurring, recurring_days, recurring_end_date,
	available_seats, occupied_seats, status,
	smoker_allowed, music_allowed, chattiness_preference,
	auto_validation, distance_km, estimated_co2_saved, created_at, updated_at`

// searchRadiusDegrees is the fixed half-width of the bounding box used
// for geographic trip search, in degrees of latitude/longitude.
const searchRadiusDegrees = 0.1

// searchPageSize is the number of trips returned per search page
const searchPageSize = 20

// TripRepository handles database operations for the trips table
type TripRepository struct {
	db DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db DB) *TripRepository {
	return &TripRepository{db: db}
}

// Create inserts a new trip and populates the generated id and timestamps
func (r *TripRepository) Create(trip *models.Trip) error {
	query := `
		INSERT INTO trips (
			driver_id, departure_address, departure_lat, departure_lng,
			arrival_address, arrival_lat, arrival_lng, departure_time, arrival_time,
			is_round_trip, return_departure_time, return_arrival_time,
			is_recurring, recurring_days, recurring_end_date,
			available_seats, status, smoker_allowed, music_allowed,
			chattiness_preference, auto_validation, distance_km
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		RETURNING id, occupied_seats, estimated_co2_saved, created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		trip.DriverID, trip.DepartureAddress, trip.DepartureLat, trip.DepartureLng,
		trip.ArrivalAddress, trip.ArrivalLat, trip.ArrivalLng, trip.DepartureTime, trip.ArrivalTime,
		trip.IsRoundTrip, trip.ReturnDepartureTime, trip.ReturnArrivalTime,
		trip.IsRecurring, trip.RecurringDays, trip.RecurringEndDate,
		trip.AvailableSeats, trip.Status, trip.SmokerAllowed, trip.MusicAllowed,
		trip.ChattinessPreference, trip.AutoValidation, trip.DistanceKm,
	).Scan(&trip.ID, &trip.OccupiedSeats, &trip.EstimatedCO2Saved, &trip.CreatedAt, &trip.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}

	return nil
}

// GetByID retrieves a trip by id
func (r *TripRepository) GetByID(tripID int64) (*models.Trip, error) {
	trip := &models.Trip{}
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	if err := r.db.Get(trip, query, tripID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch trip: %w", err)
	}

	return trip, nil
}

// GetByIDForUpdateTx locks the trip row for the duration of the
// transaction. Every seat-capacity check-and-write goes through this
// lock so concurrent confirmations serialize per trip.
func (r *TripRepository) GetByIDForUpdateTx(tx *sqlx.Tx, tripID int64) (*models.Trip, error) {
	trip := &models.Trip{}
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE`

	if err := tx.Get(trip, query, tripID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock trip: %w", err)
	}

	return trip, nil
}

// Search returns active future trips matching the filters, ordered by
// departure time, paginated. Geographic filters use a +-0.1 degree
// bounding box around the query point.
func (r *TripRepository) Search(q *models.TripSearchQuery, now time.Time) ([]models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE status = $1 AND departure_time > $2`
	args := []interface{}{models.TripStatusActive, now}

	addArg := func(clause string, value interface{}) {
		args = append(args, value)
		query += fmt.Sprintf(clause, len(args))
	}

	if q.DepartureLat != nil && q.DepartureLng != nil {
		addArg(" AND departure_lat BETWEEN $%d", *q.DepartureLat-searchRadiusDegrees)
		addArg(" AND $%d", *q.DepartureLat+searchRadiusDegrees)
		addArg(" AND departure_lng BETWEEN $%d", *q.DepartureLng-searchRadiusDegrees)
		addArg(" AND $%d", *q.DepartureLng+searchRadiusDegrees)
	}
	if q.ArrivalLat != nil && q.ArrivalLng != nil {
		addArg(" AND arrival_lat BETWEEN $%d", *q.ArrivalLat-searchRadiusDegrees)
		addArg(" AND $%d", *q.ArrivalLat+searchRadiusDegrees)
		addArg(" AND arrival_lng BETWEEN $%d", *q.ArrivalLng-searchRadiusDegrees)
		addArg(" AND $%d", *q.ArrivalLng+searchRadiusDegrees)
	}
	if q.Date != nil {
		day, err := time.Parse("2006-01-02", *q.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date filter: %w", err)
		}
		addArg(" AND departure_time >= $%d", day)
		addArg(" AND departure_time < $%d", day.AddDate(0, 0, 1))
	}
	if q.MinSeats != nil {
		addArg(" AND (available_seats - occupied_seats) >= $%d", *q.MinSeats)
	}
	if q.Smoker != nil {
		addArg(" AND smoker_allowed = $%d", *q.Smoker)
	}
	if q.Music != nil {
		addArg(" AND music_allowed = $%d", *q.Music)
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	query += " ORDER BY departure_time"
	addArg(" LIMIT $%d", searchPageSize)
	addArg(" OFFSET $%d", (page-1)*searchPageSize)

	trips := []models.Trip{}
	if err := r.db.Select(&trips, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search trips: %w", err)
	}

	return trips, nil
}

// GetByDriver retrieves all trips offered by a driver, newest departure first
func (r *TripRepository) GetByDriver(driverID int64) ([]models.Trip, error) {
	trips := []models.Trip{}
	query := `SELECT ` + tripColumns + ` FROM trips WHERE driver_id = $1 ORDER BY departure_time DESC`

	if err := r.db.Select(&trips, query, driverID); err != nil {
		return nil, fmt.Errorf("failed to fetch trips: %w", err)
	}

	return trips, nil
}

// GetUpcomingByDriver retrieves the driver's trips that have not departed yet
func (r *TripRepository) GetUpcomingByDriver(driverID int64, now time.Time) ([]models.Trip, error) {
	trips := []models.Trip{}
	query := `SELECT ` + tripColumns + ` FROM trips
		WHERE driver_id = $1 AND departure_time > $2
		ORDER BY departure_time`

	if err := r.db.Select(&trips, query, driverID, now); err != nil {
		return nil, fmt.Errorf("failed to fetch upcoming trips: %w", err)
	}

	return trips, nil
}

// Update persists the editable trip fields
func (r *TripRepository) Update(trip *models.Trip) error {
	query := `
		UPDATE trips
		SET departure_time = $2, arrival_time = $3, available_seats = $4,
			auto_validation = $5, smoker_allowed = $6, music_allowed = $7,
			chattiness_preference = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		query,
		trip.ID, trip.DepartureTime, trip.ArrivalTime, trip.AvailableSeats,
		trip.AutoValidation, trip.SmokerAllowed, trip.MusicAllowed,
		trip.ChattinessPreference,
	).Scan(&trip.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}

	return nil
}

// UpdateStatus sets the trip status
func (r *TripRepository) UpdateStatus(tripID int64, status models.TripStatus) error {
	result, err := r.db.Exec(
		`UPDATE trips SET status = $2, updated_at = NOW() WHERE id = $1`,
		tripID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update trip status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("trip not found")
	}

	return nil
}

// UpdateOccupancyTx writes the recomputed occupancy, status and CO2
// estimate. Only the occupancy engine calls this.
func (r *TripRepository) UpdateOccupancyTx(tx *sqlx.Tx, tripID int64, occupiedSeats int, status models.TripStatus, estimatedCO2Saved float64) error {
	_, err := tx.Exec(
		`UPDATE trips
		 SET occupied_seats = $2, status = $3, estimated_co2_saved = $4, updated_at = NOW()
		 WHERE id = $1`,
		tripID, occupiedSeats, status, estimatedCO2Saved,
	)
	if err != nil {
		return fmt.Errorf("failed to update trip occupancy: %w", err)
	}
	return nil
}
