package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/cocesi/carpool-backend/internal/database"
	"github.com/cocesi/carpool-backend/internal/metrics"
	"github.com/cocesi/carpool-backend/internal/models"
)

func newRatingService(db database.DB) *RatingService {
	logger := newTestLogger()
	return NewRatingService(
		db,
		database.NewRatingRepository(db),
		database.NewBookingRepository(db),
		database.NewTripRepository(db),
		database.NewUserRepository(db),
		nil,
		metrics.New(),
		logger,
	)
}

func intPtr(v int) *int { return &v }

func TestRatingServiceCreate(t *testing.T) {
	now := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	departed := now.Add(-24 * time.Hour)

	t.Run("Passenger Rates Driver", func(t *testing.T) {
		db, mock := newTestDB(t)
		service := newRatingService(db)

		mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
			WithArgs(int64(11)).
			WillReturnRows(bookingRow(bookingFixture{ID: 11, TripID: 1, PassengerID: 5, SeatsBooked: 2, Status: "confirmed", CO2Saved: 6.0}))
		mock.ExpectQuery(`FROM trips WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(tripFixture{
				ID: 1, DriverID: 2, DepartureTime: departed,
				AvailableSeats: 4, OccupiedSeats: 2, Status: "completed", DistanceKm: 20,
			}))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ratings WHERE booking_id = \$1 AND rater_id = \$2`).
			WithArgs(int64(11), int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(2)).
			WillReturnRows(userRow(2, 7, 4.2))
		mock.ExpectQuery(`INSERT INTO ratings`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(21, now, now))
		mock.ExpectQuery(`SELECT COALESCE\(ROUND\(AVG\(overall_rating\)`).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4.33))
		mock.ExpectExec(`UPDATE users SET average_rating = \$2, total_trips = \$3`).
			WithArgs(int64(2), 4.33, 8).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE bookings SET driver_rated = TRUE`).
			WithArgs(int64(11)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		req := &models.CreateRatingRequest{
			DrivingRating:     intPtr(5),
			PunctualityRating: intPtr(4),
			VehicleRating:     intPtr(4),
		}
		rating, err := service.Create(testPassenger(5), 11, req, now)

		require.NoError(t, err)
		assert.Equal(t, models.RaterRolePassenger, rating.RaterRole)
		assert.Equal(t, int64(2), rating.RatedID)
		assert.InDelta(t, 4.33, rating.OverallRating, 0.001)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Driver Rates Passenger", func(t *testing.T) {
		db, mock := newTestDB(t)
		service := newRatingService(db)

		mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
			WithArgs(int64(11)).
			WillReturnRows(bookingRow(bookingFixture{ID: 11, TripID: 1, PassengerID: 5, SeatsBooked: 2, Status: "confirmed"}))
		mock.ExpectQuery(`FROM trips WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(tripFixture{
				ID: 1, DriverID: 2, DepartureTime: departed,
				AvailableSeats: 4, OccupiedSeats: 2, Status: "completed", DistanceKm: 20,
			}))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ratings`).
			WithArgs(int64(11), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(5)).
			WillReturnRows(userRow(5, 3, 0))
		mock.ExpectQuery(`INSERT INTO ratings`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(22, now, now))
		mock.ExpectQuery(`SELECT COALESCE\(ROUND\(AVG\(overall_rating\)`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4.5))
		mock.ExpectExec(`UPDATE users SET average_rating = \$2, total_trips = \$3`).
			WithArgs(int64(5), 4.5, 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE bookings SET passenger_rated = TRUE`).
			WithArgs(int64(11)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		req := &models.CreateRatingRequest{
			PassengerPunctualityRating: intPtr(5),
			RespectRating:              intPtr(4),
		}
		rating, err := service.Create(testDriver(2), 11, req, now)

		require.NoError(t, err)
		assert.Equal(t, models.RaterRoleDriver, rating.RaterRole)
		assert.Equal(t, int64(5), rating.RatedID)
		assert.InDelta(t, 4.5, rating.OverallRating, 0.001)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Trip Not Departed Yet", func(t *testing.T) {
		db, mock := newTestDB(t)
		service := newRatingService(db)

		mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
			WithArgs(int64(11)).
			WillReturnRows(bookingRow(bookingFixture{ID: 11, TripID: 1, PassengerID: 5, SeatsBooked: 2, Status: "confirmed"}))
		mock.ExpectQuery(`FROM trips WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(tripFixture{
				ID: 1, DriverID: 2, DepartureTime: now.Add(12 * time.Hour),
				AvailableSeats: 4, OccupiedSeats: 2, Status: "active", DistanceKm: 20,
			}))

		req := &models.CreateRatingRequest{DrivingRating: intPtr(5), PunctualityRating: intPtr(5), VehicleRating: intPtr(5)}
		_, err := service.Create(testPassenger(5), 11, req, now)

		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
	})

	t.Run("Pending Booking Cannot Be Rated", func(t *testing.T) {
		db, mock := newTestDB(t)
		service := newRatingService(db)

		mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
			WithArgs(int64(11)).
			WillReturnRows(bookingRow(bookingFixture{ID: 11, TripID: 1, PassengerID: 5, SeatsBooked: 2, Status: "pending"}))
		mock.ExpectQuery(`FROM trips WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(tripFixture{
				ID: 1, DriverID: 2, DepartureTime: departed,
				AvailableSeats: 4, Status: "completed", DistanceKm: 20,
			}))

		req := &models.CreateRatingRequest{DrivingRating: intPtr(5), PunctualityRating: intPtr(5), VehicleRating: intPtr(5)}
		_, err := service.Create(testPassenger(5), 11, req, now)

		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
	})

	t.Run("Duplicate Rating", func(t *testing.T) {
		db, mock := newTestDB(t)
		service := newRatingService(db)

		mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
			WithArgs(int64(11)).
			WillReturnRows(bookingRow(bookingFixture{ID: 11, TripID: 1, PassengerID: 5, SeatsBooked: 2, Status: "confirmed"}))
		mock.ExpectQuery(`FROM trips WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(tripFixture{
				ID: 1, DriverID: 2, DepartureTime: departed,
				AvailableSeats: 4, Status: "completed", DistanceKm: 20,
			}))
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ratings`).
			WithArgs(int64(11), int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		req := &models.CreateRatingRequest{DrivingRating: intPtr(5), PunctualityRating: intPtr(5), VehicleRating: intPtr(5)}
		_, err := service.Create(testPassenger(5), 11, req, now)

		var conflictErr *ConflictError
		require.ErrorAs(t, err, &conflictErr)
	})

	t.Run("Stranger Is Rejected", func(t *testing.T) {
		db, mock := newTestDB(t)
		service := newRatingService(db)

		mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
			WithArgs(int64(11)).
			WillReturnRows(bookingRow(bookingFixture{ID: 11, TripID: 1, PassengerID: 5, SeatsBooked: 2, Status: "confirmed"}))
		mock.ExpectQuery(`FROM trips WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(tripFixture{
				ID: 1, DriverID: 2, DepartureTime: departed,
				AvailableSeats: 4, Status: "completed", DistanceKm: 20,
			}))

		req := &models.CreateRatingRequest{DrivingRating: intPtr(5), PunctualityRating: intPtr(5), VehicleRating: intPtr(5)}
		_, err := service.Create(testPassenger(9), 11, req, now)

		var authErr *AuthorizationError
		require.ErrorAs(t, err, &authErr)
	})

	t.Run("Missing Criteria For Role", func(t *testing.T) {
		db, mock := newTestDB(t)
		service := newRatingService(db)

		mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
			WithArgs(int64(11)).
			WillReturnRows(bookingRow(bookingFixture{ID: 11, TripID: 1, PassengerID: 5, SeatsBooked: 2, Status: "confirmed"}))
		mock.ExpectQuery(`FROM trips WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(tripRow(tripFixture{
				ID: 1, DriverID: 2, DepartureTime: departed,
				AvailableSeats: 4, Status: "completed", DistanceKm: 20,
			}))

		_, err := service.Create(testPassenger(5), 11, &models.CreateRatingRequest{}, now)

		var valErr *ValidationError
		require.ErrorAs(t, err, &valErr)
	})
}

func TestRatingServiceUserRatings(t *testing.T) {
	t.Run("Second Page Offset", func(t *testing.T) {
		db, mock := newTestDB(t)
		service := newRatingService(db)

		mock.ExpectQuery(`FROM users WHERE id = \$1`).
			WithArgs(int64(2)).
			WillReturnRows(userRow(2, 12, 4.6))
		mock.ExpectQuery(`FROM ratings\s+WHERE rated_id = \$1\s+ORDER BY created_at DESC\s+LIMIT \$2 OFFSET \$3`).
			WithArgs(int64(2), 20, 20).
			WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "rater_id", "rated_id", "rater_type",
				"driving_rating", "punctuality_rating", "vehicle_rating",
				"passenger_punctuality_rating", "respect_rating",
				"overall_rating", "comment", "created_at", "updated_at"}))
		mock.ExpectQuery(`AS average_rating`).
			WithArgs(int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"average_rating", "total_ratings"}).AddRow(4.6, 25))

		ratings, stats, err := service.UserRatings(2, 2)

		require.NoError(t, err)
		assert.Empty(t, ratings)
		assert.InDelta(t, 4.6, stats.AverageRating, 0.001)
		assert.Equal(t, 25, stats.TotalRatings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown User", func(t *testing.T) {
		db, mock := newTestDB(t)
		service := newRatingService(db)

		mock.ExpectQuery(`FROM users WHERE id = \$1`).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows(userRows))

		_, _, err := service.UserRatings(99, 1)

		var notFoundErr *NotFoundError
		require.ErrorAs(t, err, &notFoundErr)
	})
}
