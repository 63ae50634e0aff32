package database

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/cocesi/carpool-backend/internal/models"
)

var userRows = []string{
	"id", "email", "password", "first_name", "last_name", "photo", "field_of_study",
	"year", "bio", "profile_type", "smoker", "music", "chattiness",
	"vehicle_brand", "vehicle_model", "vehicle_color", "vehicle_seats",
	"average_rating", "total_trips", "total_co2_saved", "created_at", "updated_at",
}

func addUserRow(rows *sqlmock.Rows, id int64, email string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(
		id, email, "hashed", "Camille", "Durand", nil, "Informatique",
		3, nil, "both", false, true, "normal",
		"Renault", "Clio", "bleue", 4,
		4.2, 12, 86.4, now, now,
	)
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewUserRepository(db)

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		user := &models.User{
			Email:        "camille.durand@etudiant.cesi.fr",
			PasswordHash: "hashed",
			FirstName:    "Camille",
			LastName:     "Durand",
			FieldOfStudy: "Informatique",
			Year:         3,
			ProfileType:  models.ProfileTypeBoth,
			Music:        true,
			Chattiness:   "normal",
		}

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(
				user.Email, user.PasswordHash, user.FirstName, user.LastName, user.FieldOfStudy,
				user.Year, string(user.ProfileType), user.Smoker, user.Music, user.Chattiness,
			).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(7), now, now))

		err := repo.Create(user)
		require.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Email", func(t *testing.T) {
		user := &models.User{Email: "taken@etudiant.cesi.fr"}

		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(fmt.Errorf("duplicate key value violates unique constraint"))

		err := repo.Create(user)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "email already registered")

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		user := &models.User{Email: "new@etudiant.cesi.fr"}

		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(fmt.Errorf("connection reset"))

		err := repo.Create(user)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create user")
	})
}

func TestUserRepositoryGetByEmail(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewUserRepository(db)

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		email := "camille.durand@etudiant.cesi.fr"

		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
			WithArgs(email).
			WillReturnRows(addUserRow(sqlmock.NewRows(userRows), 7, email, now))

		user, err := repo.GetByEmail(email)
		require.NoError(t, err)
		assert.Equal(t, int64(7), user.ID)
		assert.Equal(t, email, user.Email)
		assert.Equal(t, models.ProfileTypeBoth, user.ProfileType)
		assert.Equal(t, 12, user.TotalTrips)
		assert.True(t, user.VehicleSeats.Valid)
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
			WithArgs("ghost@etudiant.cesi.fr").
			WillReturnError(sql.ErrNoRows)

		user, err := repo.GetByEmail("ghost@etudiant.cesi.fr")
		assert.Nil(t, user)
		assert.Equal(t, sql.ErrNoRows, err)
	})
}

func TestUserRepositoryUpdatePassword(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewUserRepository(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE users SET password = \$2`).
			WithArgs(int64(7), "newhash").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdatePassword(7, "newhash"))
	})

	t.Run("User Not Found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE users SET password = \$2`).
			WithArgs(int64(99), "newhash").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdatePassword(99, "newhash")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user not found")
	})
}

func TestUserRepositoryAddCO2SavedTx(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewUserRepository(db)

	t.Run("Positive Delta", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users SET total_co2_saved = ROUND`).
			WithArgs(int64(7), 6.0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Beginx()
		require.NoError(t, err)
		require.NoError(t, repo.AddCO2SavedTx(tx, 7, 6.0))
		require.NoError(t, tx.Commit())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Negative Delta On Cancellation", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users SET total_co2_saved = ROUND`).
			WithArgs(int64(7), -6.0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Beginx()
		require.NoError(t, err)
		require.NoError(t, repo.AddCO2SavedTx(tx, 7, -6.0))
		require.NoError(t, tx.Commit())
	})
}
