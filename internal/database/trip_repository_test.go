package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/cocesi/carpool-backend/internal/models"
)

var tripRows = []string{
	"id", "driver_id", "departure_address", "departure_lat", "departure_lng",
	"arrival_address", "arrival_lat", "arrival_lng", "departure_time", "arrival_time",
	"is_round_trip", "return_departure_time", "return_arrival_time",
	"is_recurring", "recurring_days", "recurring_end_date",
	"available_seats", "occupied_seats", "status",
	"smoker_allowed", "music_allowed", "chattiness_preference",
	"auto_validation", "distance_km", "estimated_co2_saved", "created_at", "updated_at",
}

func addTripRow(rows *sqlmock.Rows, id, driverID int64, seats, occupied int, status string, departure time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, driverID, "25 avenue de la République, Lyon", 45.7578, 4.8320,
		"Campus CESI, Écully", 45.7772, 4.7654, departure, nil,
		false, nil, nil,
		false, nil, nil,
		seats, occupied, status,
		false, true, nil,
		true, 14.2, 0.0, departure.Add(-24*time.Hour), departure.Add(-24*time.Hour),
	)
}

func TestTripRepositoryGetByID(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewTripRepository(db)

	t.Run("Success", func(t *testing.T) {
		departure := time.Now().Add(48 * time.Hour)

		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1`).
			WithArgs(int64(3)).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRows), 3, 7, 4, 1, "active", departure))

		trip, err := repo.GetByID(3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), trip.ID)
		assert.Equal(t, int64(7), trip.DriverID)
		assert.Equal(t, 4, trip.AvailableSeats)
		assert.Equal(t, 1, trip.OccupiedSeats)
		assert.Equal(t, models.TripStatusActive, trip.Status)
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE id = \$1`).
			WithArgs(int64(999)).
			WillReturnError(sql.ErrNoRows)

		trip, err := repo.GetByID(999)
		assert.Nil(t, trip)
		assert.Equal(t, sql.ErrNoRows, err)
	})
}

func TestTripRepositorySearch(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewTripRepository(db)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("No Filters", func(t *testing.T) {
		departure := now.Add(24 * time.Hour)

		mock.ExpectQuery(`SELECT (.+) FROM trips WHERE status = \$1 AND departure_time > \$2 ORDER BY departure_time LIMIT \$3 OFFSET \$4`).
			WithArgs("active", now, 20, 0).
			WillReturnRows(addTripRow(sqlmock.NewRows(tripRows), 1, 7, 4, 0, "active", departure))

		trips, err := repo.Search(&models.TripSearchQuery{Page: 1}, now)
		require.NoError(t, err)
		require.Len(t, trips, 1)
		assert.Equal(t, int64(1), trips[0].ID)
	})

	t.Run("Bounding Box On Departure", func(t *testing.T) {
		lat, lng := 45.7578, 4.8320

		mock.ExpectQuery(`departure_lat BETWEEN \$3 AND \$4 AND departure_lng BETWEEN \$5 AND \$6`).
			WithArgs("active", now, lat-0.1, lat+0.1, lng-0.1, lng+0.1, 20, 0).
			WillReturnRows(sqlmock.NewRows(tripRows))

		q := &models.TripSearchQuery{DepartureLat: &lat, DepartureLng: &lng, Page: 1}
		trips, err := repo.Search(q, now)
		require.NoError(t, err)
		assert.Empty(t, trips)
	})

	t.Run("Date Day Window", func(t *testing.T) {
		date := "2026-03-12"
		dayStart := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`departure_time >= \$3 AND departure_time < \$4`).
			WithArgs("active", now, dayStart, dayStart.AddDate(0, 0, 1), 20, 0).
			WillReturnRows(sqlmock.NewRows(tripRows))

		q := &models.TripSearchQuery{Date: &date, Page: 1}
		_, err := repo.Search(q, now)
		require.NoError(t, err)
	})

	t.Run("Invalid Date", func(t *testing.T) {
		date := "12/03/2026"
		q := &models.TripSearchQuery{Date: &date, Page: 1}

		_, err := repo.Search(q, now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid date filter")
	})

	t.Run("Second Page Offset", func(t *testing.T) {
		mock.ExpectQuery(`LIMIT \$3 OFFSET \$4`).
			WithArgs("active", now, 20, 20).
			WillReturnRows(sqlmock.NewRows(tripRows))

		_, err := repo.Search(&models.TripSearchQuery{Page: 2}, now)
		require.NoError(t, err)
	})

	t.Run("Min Seats And Preferences", func(t *testing.T) {
		minSeats := 2
		smoker := false

		mock.ExpectQuery(`\(available_seats - occupied_seats\) >= \$3 AND smoker_allowed = \$4`).
			WithArgs("active", now, minSeats, smoker, 20, 0).
			WillReturnRows(sqlmock.NewRows(tripRows))

		q := &models.TripSearchQuery{MinSeats: &minSeats, Smoker: &smoker, Page: 1}
		_, err := repo.Search(q, now)
		require.NoError(t, err)
	})
}

func TestTripRepositoryUpdateOccupancyTx(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewTripRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trips SET occupied_seats = \$2, status = \$3, estimated_co2_saved = \$4`).
		WithArgs(int64(3), 4, "full", 12.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateOccupancyTx(tx, 3, 4, models.TripStatusFull, 12.0))
	require.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepositoryUpdateStatus(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewTripRepository(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE trips SET status = \$2`).
			WithArgs(int64(3), "cancelled").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateStatus(3, models.TripStatusCancelled))
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE trips SET status = \$2`).
			WithArgs(int64(99), "cancelled").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(99, models.TripStatusCancelled)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "trip not found")
	})
}
