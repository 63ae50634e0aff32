package database

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/cocesi/carpool-backend/internal/models"
)

const ratingColumns = `id, booking_id, rater_id, rated_id, rater_type,
	driving_rating, punctuality_rating, vehicle_rating,
	passenger_punctuality_rating, respect_rating,
	overall_rating, comment, created_at, updated_at`

// RatingRepository handles database operations for the ratings table
type RatingRepository struct {
	db DB
}

// NewRatingRepository creates a new RatingRepository
func NewRatingRepository(db DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// CreateTx inserts a new rating within the given transaction. The
// overall rating must already be computed by the caller.
func (r *RatingRepository) CreateTx(tx *sqlx.Tx, rating *models.Rating) error {
	query := `
		INSERT INTO ratings (
			booking_id, rater_id, rated_id, rater_type,
			driving_rating, punctuality_rating, vehicle_rating,
			passenger_punctuality_rating, respect_rating,
			overall_rating, comment
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(
		query,
		rating.BookingID, rating.RaterID, rating.RatedID, rating.RaterRole,
		rating.DrivingRating, rating.PunctualityRating, rating.VehicleRating,
		rating.PassengerPunctualityRating, rating.RespectRating,
		rating.OverallRating, rating.Comment,
	).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create rating: %w", err)
	}

	return nil
}

// ExistsForBookingAndRaterTx reports whether the rater already rated
// this booking
func (r *RatingRepository) ExistsForBookingAndRaterTx(tx *sqlx.Tx, bookingID, raterID int64) (bool, error) {
	var count int
	err := tx.Get(&count,
		`SELECT COUNT(*) FROM ratings WHERE booking_id = $1 AND rater_id = $2`,
		bookingID, raterID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check existing rating: %w", err)
	}
	return count > 0, nil
}

// GetByRated retrieves the ratings received by a user, newest first,
// paginated
func (r *RatingRepository) GetByRated(ratedID int64, limit, offset int) ([]models.Rating, error) {
	ratings := []models.Rating{}
	query := `SELECT ` + ratingColumns + ` FROM ratings
		WHERE rated_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.Select(&ratings, query, ratedID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to fetch ratings: %w", err)
	}

	return ratings, nil
}

// GetRecentByRated retrieves the most recent ratings received by a user
func (r *RatingRepository) GetRecentByRated(ratedID int64, limit int) ([]models.Rating, error) {
	return r.GetByRated(ratedID, limit, 0)
}

// StatsForUser returns the mean overall rating and the rating count for
// a user
func (r *RatingRepository) StatsForUser(userID int64) (*models.RatingStats, error) {
	stats := &models.RatingStats{}
	query := `SELECT COALESCE(ROUND(AVG(overall_rating)::numeric, 2), 0) AS average_rating,
		COUNT(*) AS total_ratings
		FROM ratings WHERE rated_id = $1`

	if err := r.db.Get(stats, query, userID); err != nil {
		return nil, fmt.Errorf("failed to fetch rating stats: %w", err)
	}

	return stats, nil
}

// AverageForUserTx computes the mean overall rating over all ratings the
// user has received, rounded to 2 decimals, within the transaction. A
// user with no ratings averages 0.
func (r *RatingRepository) AverageForUserTx(tx *sqlx.Tx, userID int64) (float64, error) {
	var avg float64
	err := tx.Get(&avg,
		`SELECT COALESCE(ROUND(AVG(overall_rating)::numeric, 2), 0) FROM ratings WHERE rated_id = $1`,
		userID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to compute average rating: %w", err)
	}
	return avg, nil
}
