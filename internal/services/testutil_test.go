package services

import (
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/cocesi/carpool-backend/internal/database"
	"github.com/cocesi/carpool-backend/internal/models"
)

func newTestDB(t *testing.T) (database.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &database.PostgresDB{DB: sqlx.NewDb(db, "postgres")}, mock
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var tripRows = []string{
	"id", "driver_id", "departure_address", "departure_lat", "departure_lng",
	"arrival_address", "arrival_lat", "arrival_lng", "departure_time", "arrival_time",
	"is_round_trip", "return_departure_time", "return_arrival_time",
	"is_recurring", "recurring_days", "recurring_end_date",
	"available_seats", "occupied_seats", "status",
	"smoker_allowed", "music_allowed", "chattiness_preference",
	"auto_validation", "distance_km", "estimated_co2_saved", "created_at", "updated_at",
}

type tripFixture struct {
	ID             int64
	DriverID       int64
	DepartureTime  time.Time
	AvailableSeats int
	OccupiedSeats  int
	Status         string
	AutoValidation bool
	DistanceKm     float64
}

func tripRow(f tripFixture) *sqlmock.Rows {
	created := f.DepartureTime.Add(-48 * time.Hour)
	return sqlmock.NewRows(tripRows).AddRow(
		f.ID, f.DriverID, "25 avenue de la République, Lyon", 45.7578, 4.8320,
		"Campus CESI, Écully", 45.7772, 4.7654, f.DepartureTime, nil,
		false, nil, nil,
		false, nil, nil,
		f.AvailableSeats, f.OccupiedSeats, f.Status,
		false, true, nil,
		f.AutoValidation, f.DistanceKm, 0.0, created, created,
	)
}

var bookingRows = []string{
	"id", "trip_id", "passenger_id", "seats_booked", "message", "status",
	"driver_rated", "passenger_rated", "co2_saved", "created_at", "updated_at",
}

type bookingFixture struct {
	ID          int64
	TripID      int64
	PassengerID int64
	SeatsBooked int
	Status      string
	CO2Saved    float64
}

func bookingRow(f bookingFixture) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(bookingRows).AddRow(
		f.ID, f.TripID, f.PassengerID, f.SeatsBooked, nil, f.Status,
		false, false, f.CO2Saved, now, now,
	)
}

var userRows = []string{
	"id", "email", "password", "first_name", "last_name", "photo", "field_of_study",
	"year", "bio", "profile_type", "smoker", "music", "chattiness",
	"vehicle_brand", "vehicle_model", "vehicle_color", "vehicle_seats",
	"average_rating", "total_trips", "total_co2_saved", "created_at", "updated_at",
}

func userRow(id int64, totalTrips int, averageRating float64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userRows).AddRow(
		id, "camille.durand@etudiant.cesi.fr", "hashed", "Camille", "Durand", nil, "Informatique",
		3, nil, "both", false, true, "normal",
		"Renault", "Clio", "bleue", 4,
		averageRating, totalTrips, 0.0, now, now,
	)
}

func testDriver(id int64) *models.User {
	return &models.User{
		ID:           id,
		Email:        "driver@etudiant.cesi.fr",
		ProfileType:  models.ProfileTypeBoth,
		VehicleBrand: models.NullString{NullString: sql.NullString{String: "Renault", Valid: true}},
		VehicleModel: models.NullString{NullString: sql.NullString{String: "Clio", Valid: true}},
		VehicleSeats: models.NullInt64{NullInt64: sql.NullInt64{Int64: 4, Valid: true}},
	}
}

func testPassenger(id int64) *models.User {
	return &models.User{
		ID:          id,
		Email:       "passenger@etudiant.cesi.fr",
		ProfileType: models.ProfileTypePassenger,
	}
}
