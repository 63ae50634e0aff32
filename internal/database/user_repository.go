package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/cocesi/carpool-backend/internal/models"
)

const userColumns = `id, email, password, first_name, last_name, photo, field_of_study,
	year, bio, profile_type, smoker, music, chattiness,
	vehicle_brand, vehicle_model, vehicle_color, vehicle_seats,
	average_rating, total_trips, total_co2_saved, created_at, updated_at`

// UserRepository handles database operations for the users table
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and populates the generated id and timestamps
func (r *UserRepository) Create(user *models.User) error {
	query := `
		INSERT INTO users (
			email, password, first_name, last_name, field_of_study,
			year, profile_type, smoker, music, chattiness
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.FieldOfStudy,
		user.Year, user.ProfileType, user.Smoker, user.Music, user.Chattiness,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return fmt.Errorf("email already registered")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(userID int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	if err := r.db.Get(user, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	if err := r.db.Get(user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return user, nil
}

// UpdateProfile persists the mutable profile fields
func (r *UserRepository) UpdateProfile(user *models.User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, bio = $4, field_of_study = $5,
			year = $6, profile_type = $7, smoker = $8, music = $9, chattiness = $10,
			vehicle_brand = $11, vehicle_model = $12, vehicle_color = $13,
			vehicle_seats = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		query,
		user.ID, user.FirstName, user.LastName, user.Bio, user.FieldOfStudy,
		user.Year, user.ProfileType, user.Smoker, user.Music, user.Chattiness,
		user.VehicleBrand, user.VehicleModel, user.VehicleColor, user.VehicleSeats,
	).Scan(&user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(userID int64, passwordHash string) error {
	result, err := r.db.Exec(
		`UPDATE users SET password = $2, updated_at = NOW() WHERE id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// GetByIDForUpdateTx locks the user row for the duration of the
// transaction. Used to serialize aggregate recomputation.
func (r *UserRepository) GetByIDForUpdateTx(tx *sqlx.Tx, userID int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	if err := tx.Get(user, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	return user, nil
}

// UpdateRatingStatsTx writes the recomputed rating aggregates
func (r *UserRepository) UpdateRatingStatsTx(tx *sqlx.Tx, userID int64, averageRating float64, totalTrips int) error {
	_, err := tx.Exec(
		`UPDATE users SET average_rating = $2, total_trips = $3, updated_at = NOW() WHERE id = $1`,
		userID, averageRating, totalTrips,
	)
	if err != nil {
		return fmt.Errorf("failed to update rating stats: %w", err)
	}
	return nil
}

// AddCO2SavedTx adjusts the accumulated CO2 savings by delta (kg, may be
// negative when a confirmed booking is cancelled)
func (r *UserRepository) AddCO2SavedTx(tx *sqlx.Tx, userID int64, delta float64) error {
	_, err := tx.Exec(
		`UPDATE users SET total_co2_saved = ROUND((total_co2_saved + $2)::numeric, 2), updated_at = NOW() WHERE id = $1`,
		userID, delta,
	)
	if err != nil {
		return fmt.Errorf("failed to update co2 savings: %w", err)
	}
	return nil
}
