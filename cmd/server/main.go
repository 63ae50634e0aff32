package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/cocesi/carpool-backend/internal/config"
	"github.com/cocesi/carpool-backend/internal/database"
	"github.com/cocesi/carpool-backend/internal/events"
	"github.com/cocesi/carpool-backend/internal/handlers"
	"github.com/cocesi/carpool-backend/internal/metrics"
	"github.com/cocesi/carpool-backend/internal/middleware"
	"github.com/cocesi/carpool-backend/internal/services"
	"github.com/cocesi/carpool-backend/pkg/jwt"
	"github.com/cocesi/carpool-backend/pkg/validator"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting CoCESI Carpool Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Redis backs the rate limiter; the service runs without it
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("Redis unavailable, rate limiting disabled: %v", err)
			rdb = nil
		}
		cancel()
	}

	// Event publisher is best effort as well
	var publisher *events.Publisher
	if cfg.Events.Enabled && cfg.Events.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.Events.AMQPURL, logger)
		if err != nil {
			logger.Warnf("RabbitMQ unavailable, domain events disabled: %v", err)
			publisher = nil
		} else {
			defer publisher.Close()
			logger.Info("Event publisher connected")
		}
	}

	// Metrics
	appMetrics := metrics.New()
	registry := prometheus.NewRegistry()
	if err := appMetrics.Register(registry); err != nil {
		logger.Fatalf("Failed to register metrics: %v", err)
	}

	// Initialize repositories
	userRepo := database.NewUserRepository(db)
	tripRepo := database.NewTripRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	ratingRepo := database.NewRatingRepository(db)
	messageRepo := database.NewMessageRepository(db)
	refreshTokenRepo := database.NewRefreshTokenRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	emailValidator := validator.NewEmailValidator(cfg.Security.AllowedEmailDomain)
	tripService := services.NewTripService(tripRepo, bookingRepo, appMetrics, logger)

	// The nil-interface dance: a typed nil *events.Publisher must not end
	// up in a non-nil services.EventPublisher.
	var eventPublisher services.EventPublisher
	if publisher != nil {
		eventPublisher = publisher
	}

	bookingService := services.NewBookingService(db, bookingRepo, tripRepo, userRepo, tripService, eventPublisher, appMetrics, logger)
	ratingService := services.NewRatingService(db, ratingRepo, bookingRepo, tripRepo, userRepo, eventPublisher, appMetrics, logger)
	messageService := services.NewMessageService(messageRepo, bookingRepo, tripRepo, userRepo, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(jwtService, emailValidator, userRepo, refreshTokenRepo, cfg, logger)
	userHandler := handlers.NewUserHandler(userRepo, tripRepo, bookingRepo, ratingRepo, messageRepo, cfg, logger)
	tripHandler := handlers.NewTripHandler(tripService, userRepo, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, userRepo, logger)
	ratingHandler := handlers.NewRatingHandler(ratingService, userRepo, logger)
	messageHandler := handlers.NewMessageHandler(messageService, userRepo, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health and metrics endpoints
	router.GET("/health", healthCheckHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	rateLimiter := middleware.RateLimit(cfg.RateLimit, rdb, logger)
	authRequired := middleware.AuthMiddleware(jwtService)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Authentication routes (public, rate limited)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", rateLimiter, authHandler.Register)
			auth.POST("/login", rateLimiter, authHandler.Login)
			auth.POST("/refresh", rateLimiter, authHandler.Refresh)
			auth.POST("/logout", authRequired, authHandler.Logout)
			auth.GET("/me", authRequired, authHandler.Me)
		}

		// User routes
		users := v1.Group("/users", authRequired)
		{
			users.GET("/:id", userHandler.Show)
			users.GET("/:id/ratings", ratingHandler.ForUser)
			users.PUT("/me", userHandler.UpdateProfile)
			users.PUT("/me/password", userHandler.UpdatePassword)
			users.GET("/me/dashboard", userHandler.Dashboard)
		}

		// Trip routes
		trips := v1.Group("/trips", authRequired)
		{
			trips.GET("", tripHandler.Search)
			trips.POST("", tripHandler.Create)
			trips.GET("/mine", tripHandler.MyTrips)
			trips.GET("/:id", tripHandler.Show)
			trips.PUT("/:id", tripHandler.Update)
			trips.DELETE("/:id", tripHandler.Cancel)
		}

		// Booking routes
		bookings := v1.Group("/bookings", authRequired)
		{
			bookings.POST("", bookingHandler.Create)
			bookings.GET("/mine", bookingHandler.MyBookings)
			bookings.GET("/requests", bookingHandler.PendingRequests)
			bookings.GET("/:id", bookingHandler.Show)
			bookings.POST("/:id/confirm", bookingHandler.Confirm)
			bookings.POST("/:id/refuse", bookingHandler.Refuse)
			bookings.POST("/:id/cancel", bookingHandler.Cancel)
			bookings.POST("/:id/rating", ratingHandler.Create)
			bookings.GET("/:id/messages", messageHandler.List)
			bookings.POST("/:id/messages", messageHandler.Send)
			bookings.GET("/:id/messages/templates", messageHandler.Templates)
		}

		// Rating routes
		ratings := v1.Group("/ratings", authRequired)
		{
			ratings.GET("/pending", ratingHandler.Pending)
		}

		// Message routes
		messages := v1.Group("/messages", authRequired)
		{
			messages.GET("/unread-count", messageHandler.UnreadCount)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbStatus := "healthy"
		httpStatus := http.StatusOK
		if err := db.Ping(); err != nil {
			dbStatus = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":    dbStatus,
			"version":   version,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
