package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/cocesi/carpool-backend/internal/models"
)

// RefreshToken represents a persisted refresh token. Only the SHA-256
// hash of the token is stored.
type RefreshToken struct {
	ID         uuid.UUID         `db:"id"`
	UserID     int64             `db:"user_id"`
	TokenHash  string            `db:"token_hash"`
	DeviceType models.NullString `db:"device_type"`
	IPAddress  models.NullString `db:"ip_address"`
	UserAgent  models.NullString `db:"user_agent"`
	CreatedAt  time.Time         `db:"created_at"`
	ExpiresAt  time.Time         `db:"expires_at"`
	Revoked    bool              `db:"revoked"`
	RevokedAt  models.NullTime   `db:"revoked_at"`
}

// RefreshTokenRepository handles refresh token database operations
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// hashToken creates a SHA-256 hash of the token for storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Store persists a refresh token with optional device metadata
func (r *RefreshTokenRepository) Store(userID int64, token, deviceType, ipAddress, userAgent string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, device_type, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var deviceTypeVal, ipVal, userAgentVal interface{}
	if deviceType != "" {
		deviceTypeVal = deviceType
	}
	if ipAddress != "" {
		ipVal = ipAddress
	}
	if userAgent != "" {
		userAgentVal = userAgent
	}

	_, err := r.db.Exec(query, uuid.New(), userID, hashToken(token), deviceTypeVal, ipVal, userAgentVal, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

// Get retrieves a refresh token record by the raw token value. Returns
// nil when the token is unknown.
func (r *RefreshTokenRepository) Get(token string) (*RefreshToken, error) {
	var refreshToken RefreshToken
	query := `
		SELECT id, user_id, token_hash, device_type, ip_address, user_agent,
		       created_at, expires_at, revoked, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	err := r.db.Get(&refreshToken, query, hashToken(token))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return &refreshToken, nil
}

// Revoke marks a refresh token as revoked
func (r *RefreshTokenRepository) Revoke(token string) error {
	_, err := r.db.Exec(
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = NOW() WHERE token_hash = $1`,
		hashToken(token),
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every active refresh token of a user
func (r *RefreshTokenRepository) RevokeAllForUser(userID int64) error {
	_, err := r.db.Exec(
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = NOW() WHERE user_id = $1 AND revoked = FALSE`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}
