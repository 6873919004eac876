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
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tripmark/tour-marketplace-backend/internal/cache"
	"github.com/tripmark/tour-marketplace-backend/internal/config"
	"github.com/tripmark/tour-marketplace-backend/internal/database"
	"github.com/tripmark/tour-marketplace-backend/internal/events"
	"github.com/tripmark/tour-marketplace-backend/internal/handlers"
	"github.com/tripmark/tour-marketplace-backend/internal/middleware"
	"github.com/tripmark/tour-marketplace-backend/internal/models"
	"github.com/tripmark/tour-marketplace-backend/internal/services"
	"github.com/tripmark/tour-marketplace-backend/pkg/jwt"
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

	logger.Info("Starting TripMark Tour Marketplace Backend")
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
	logger.Info("Database connection established")

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize redis client for webhook idempotency claims. A failed ping
	// is tolerated; the webhook handler falls back to the database transition
	// guard when redis is down.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warnf("Redis ping failed, webhook dedup will rely on database guard: %v", err)
	} else {
		logger.Info("Redis connection established")
	}
	pingCancel()
	defer redisClient.Close()
	idempotencyGuard := cache.NewIdempotencyGuard(redisClient, cfg.Booking.ConfirmClaimTTL)

	// Initialize kafka publisher for booking lifecycle events
	publisher := events.NewPublisher(cfg.Kafka, logger)
	defer publisher.Close()

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	// Initialize repositories
	userRepository := database.NewUserRepository(db)
	sessionRepository := database.NewSessionRepository(db)
	tourRepository := database.NewTourRepository(db)
	customTourRepository := database.NewCustomTourRepository(db)
	guideRepository := database.NewGuideRepository(db)
	paymentRepository := database.NewPaymentRepository(db)

	// Initialize domain services
	capacityService := services.NewCapacityService(tourRepository, logger)
	matcherService := services.NewGuideMatcherService(guideRepository, logger)
	gatewayService := services.NewGatewayService(&cfg.Payment, logger)
	paymentService := services.NewPaymentService(
		paymentRepository,
		capacityService,
		gatewayService,
		publisher,
		cfg.Payment.Currency,
		logger,
	)
	bookingService := services.NewBookingService(
		tourRepository,
		customTourRepository,
		matcherService,
		paymentService,
		logger,
	)
	authService := services.NewAuthService(
		userRepository,
		sessionRepository,
		jwtService,
		cfg.Security.BcryptCost,
		cfg.JWT.RefreshTokenExpiry,
		logger,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, logger)
	tourHandler := handlers.NewTourHandler(tourRepository, logger)
	guideHandler := handlers.NewGuideHandler(guideRepository, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, idempotencyGuard, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

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

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Authentication routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Tour catalog routes
		tours := v1.Group("/tours")
		{
			tours.GET("", tourHandler.ListTours)
			tours.GET("/:id", tourHandler.GetTour)

			// Seller routes (protected)
			sellerTours := tours.Group("")
			sellerTours.Use(middleware.AuthMiddleware(jwtService))
			sellerTours.Use(middleware.RequireRole(models.RoleSeller, models.RoleAdmin))
			{
				sellerTours.POST("", tourHandler.CreateTour)
				sellerTours.PATCH("/:id/availability", tourHandler.UpdateAvailability)
			}
		}

		// Booking routes (protected, tourists)
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("/tours", bookingHandler.BookFixedTour)
			bookings.POST("/custom", bookingHandler.BookCustomTour)
		}

		// Payment routes
		payments := v1.Group("/payments")
		{
			// Gateway webhook (public, called by the payment provider)
			payments.POST("/webhook", paymentHandler.Webhook)

			paymentsProtected := payments.Group("")
			paymentsProtected.Use(middleware.AuthMiddleware(jwtService))
			{
				paymentsProtected.GET("/:id", paymentHandler.GetPayment)
				paymentsProtected.POST("/:id/refund",
					middleware.RequireRole(models.RoleAdmin), paymentHandler.Refund)
			}
		}

		// Guide routes (protected, admin dashboard)
		guides := v1.Group("/guides")
		guides.Use(middleware.AuthMiddleware(jwtService))
		guides.Use(middleware.RequireRole(models.RoleAdmin))
		{
			guides.GET("", guideHandler.ListGuides)
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

	// Graceful shutdown with timeout
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
		}

		if len(c.Errors) > 0 {
			logger.WithFields(fields).Error(c.Errors.String())
			return
		}

		switch {
		case c.Writer.Status() >= 500:
			logger.WithFields(fields).Error("Request completed")
		case c.Writer.Status() >= 400:
			logger.WithFields(fields).Warn("Request completed")
		default:
			logger.WithFields(fields).Info("Request completed")
		}
	}
}

// healthCheckHandler verifies database connectivity
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
