package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"poolmate/internal/config"
	"poolmate/internal/handlers"
	"poolmate/internal/middleware"
	"poolmate/internal/repositories/mongodb"
	"poolmate/internal/services"
	"poolmate/pkg/cache"
	"poolmate/pkg/database"
	"poolmate/pkg/logger"
	"poolmate/pkg/maps"
	"poolmate/pkg/sms"
	"poolmate/pkg/websocket"
	"poolmate/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  cfg.App.LogOutput,
		Caller:  cfg.App.Debug,
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer db.Close()

	if err := database.NewMigrator(db.Database, appLogger).Up(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to run migrations")
	}

	healthChecks := map[string]handlers.Pinger{"mongodb": db}

	// Redis is optional; without it the ride cache and login limiter are off
	var store services.CacheStore
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			appLogger.WithError(err).Warn("Redis unavailable, continuing without cache")
		} else {
			defer redisCache.Close()
			store = redisCache
			healthChecks["redis"] = redisCache
		}
	}

	geocoder, err := maps.NewGeocoder(maps.ProviderConfig{
		Provider:          cfg.Maps.Provider,
		Timeout:           cfg.Maps.Timeout,
		GoogleAPIKey:      cfg.Maps.GoogleMaps.APIKey,
		MapboxAccessToken: cfg.Maps.Mapbox.AccessToken,
		MapboxBaseURL:     cfg.Maps.Mapbox.BaseURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to configure geocoder")
	}

	smsProvider, err := newSMSProvider(ctx, cfg.SMS, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to configure SMS provider")
	}

	events := websocket.NewHandler(ctx, websocket.Options{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		PingInterval:    cfg.WebSocket.PingInterval,
		PongTimeout:     cfg.WebSocket.PongTimeout,
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
	}, appLogger)

	// Services
	userRepo := mongodb.NewUserRepository(db.Database)
	rideRepo := mongodb.NewRideRepository(db.Database)

	cacheService := services.NewCacheService(store, appLogger, cfg.Redis.RideTTL)
	notifier := services.NewSMSNotifier(smsProvider, cfg.SMS.DefaultCountryCode, appLogger)

	authService := services.NewAuthService(userRepo, cacheService, cfg.Security, appLogger)
	rideService := services.NewRideService(rideRepo, userRepo, geocoder, cacheService, events, notifier, appLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, cfg.Security, appLogger)
	rideHandler := handlers.NewRideHandler(rideService, events, appLogger)
	healthHandler := handlers.NewHealthHandler(cfg.App.Version, healthChecks)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		appLogger.WithError(err).Warn("Invalid trusted proxies")
	}

	// Global middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))
	router.Use(middleware.RecoveryMiddleware(appLogger))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	// API routes
	v1 := router.Group("/api/v1")
	{
		routes.SetupAuthRoutes(v1, authHandler, cfg.Security.JWTSecret)
		routes.SetupRideRoutes(v1, rideHandler, cfg.Security.JWTSecret)
	}

	router.GET("/health", healthHandler.Health)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithField("addr", server.Addr).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Graceful shutdown failed")
	}
}

func newSMSProvider(ctx context.Context, cfg *config.SMSConfig, log *logger.Logger) (sms.SMSProvider, error) {
	switch cfg.Provider {
	case "twilio":
		return sms.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber), nil
	case "sns":
		return sms.NewAWSSNSProvider(ctx, cfg.AWS.Region, cfg.AWS.SenderID)
	case "", "none":
		return sms.NewLogProvider(log), nil
	default:
		return nil, errors.New("unsupported sms provider " + cfg.Provider)
	}
}
