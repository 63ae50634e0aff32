package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"github.com/cocesi/carpool-backend/internal/config"
	"github.com/cocesi/carpool-backend/internal/database"
	"github.com/cocesi/carpool-backend/internal/middleware"
	"github.com/cocesi/carpool-backend/internal/models"
	"github.com/cocesi/carpool-backend/pkg/jwt"
	"github.com/cocesi/carpool-backend/pkg/validator"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	jwtService       *jwt.Service
	emailValidator   *validator.EmailValidator
	userRepo         *database.UserRepository
	refreshTokenRepo *database.RefreshTokenRepository
	config           *config.Config
	logger           *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	jwtService *jwt.Service,
	emailValidator *validator.EmailValidator,
	userRepo *database.UserRepository,
	refreshTokenRepo *database.RefreshTokenRepository,
	cfg *config.Config,
	logger *logrus.Logger,
) *AuthHandler {
	return &AuthHandler{
		jwtService:       jwtService,
		emailValidator:   emailValidator,
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		config:           cfg,
		logger:           logger,
	}
}

// TokenResponse represents the token pair returned on login and refresh
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in_seconds"`
	User         *models.User `json:"user,omitempty"`
}

// RefreshRequest represents the payload to refresh tokens
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	email := validator.Normalize(req.Email)
	if err := h.emailValidator.Validate(email); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_email",
			Message: err.Error(),
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.config.Security.BcryptCost)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		FieldOfStudy: req.FieldOfStudy,
		Year:         req.Year,
		ProfileType:  models.ProfileType(req.ProfileType),
		Music:        true,
		Chattiness:   models.ChattinessNormal,
	}
	if req.Smoker != nil {
		user.Smoker = *req.Smoker
	}
	if req.Music != nil {
		user.Music = *req.Music
	}
	if req.Chattiness != nil {
		user.Chattiness = *req.Chattiness
	}

	if err := h.userRepo.Create(user); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: err.Error(),
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User registered")

	tokens, err := h.issueTokens(c, user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, tokens)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	user, err := h.userRepo.GetByEmail(validator.Normalize(req.Email))
	if err != nil {
		if err == sql.ErrNoRows {
			h.unauthorized(c)
			return
		}
		respondError(c, h.logger, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.unauthorized(c)
		return
	}

	tokens, err := h.issueTokens(c, user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		h.unauthorized(c)
		return
	}

	stored, err := h.refreshTokenRepo.Get(req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if stored == nil || stored.Revoked || stored.UserID != claims.UserID || time.Now().After(stored.ExpiresAt) {
		h.unauthorized(c)
		return
	}

	user, err := h.userRepo.GetByID(claims.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			h.unauthorized(c)
			return
		}
		respondError(c, h.logger, err)
		return
	}

	// Rotate: revoke the presented token, issue a fresh pair
	if err := h.refreshTokenRepo.Revoke(req.RefreshToken); err != nil {
		respondError(c, h.logger, err)
		return
	}

	tokens, err := h.issueTokens(c, user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	tokens.User = nil

	c.JSON(http.StatusOK, tokens)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	if err := h.refreshTokenRepo.RevokeAllForUser(userCtx.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	user, err := h.userRepo.GetByID(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// issueTokens builds an access/refresh pair and persists the refresh
// token with the caller's device info
func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (*TokenResponse, error) {
	accessToken, err := h.jwtService.GenerateAccessToken(user.ID, user.Email, string(user.ProfileType))
	if err != nil {
		return nil, err
	}
	refreshToken, err := h.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	ua := user_agent.New(c.Request.UserAgent())
	deviceType := "desktop"
	if ua.Mobile() {
		deviceType = "mobile"
	}

	expiresAt := time.Now().Add(h.config.JWT.RefreshTokenExpiry)
	if err := h.refreshTokenRepo.Store(user.ID, refreshToken, deviceType, c.ClientIP(), c.Request.UserAgent(), expiresAt); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(h.config.JWT.AccessTokenExpiry / time.Second),
		User:         user,
	}, nil
}

func (h *AuthHandler) unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{
		Error:   "invalid_credentials",
		Message: "Invalid credentials",
	})
}
