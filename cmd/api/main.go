package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dennis1984/BYWebApp/internal/api/handlers"
	"github.com/dennis1984/BYWebApp/internal/cache/redis"
	"github.com/dennis1984/BYWebApp/internal/derived"
	"github.com/dennis1984/BYWebApp/internal/matcher"
	"github.com/dennis1984/BYWebApp/internal/metrics"
	"github.com/dennis1984/BYWebApp/internal/middleware/ratelimit"
	"github.com/dennis1984/BYWebApp/internal/middleware/security"
	"github.com/dennis1984/BYWebApp/internal/middleware/validation"
	"github.com/dennis1984/BYWebApp/internal/points"
	"github.com/dennis1984/BYWebApp/internal/storage/sqlite"
	"github.com/dennis1984/BYWebApp/pkg/circuitbreaker"
	"github.com/dennis1984/BYWebApp/pkg/config"
	appLogger "github.com/dennis1984/BYWebApp/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting BYWebApp API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	breaker := circuitbreaker.NewCircuitBreaker("relational-store", circuitbreaker.Config{
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         time.Duration(cfg.Breaker.IntervalSec) * time.Second,
		Timeout:          time.Duration(cfg.Breaker.TimeoutSec) * time.Second,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		IsSuccessful:     derived.BreakerSuccess,
		Logger:           appLogger.Named("breaker"),
	})

	cacheCfg := derived.DefaultConfig()
	cacheCfg.TTL = time.Duration(cfg.Cache.TTLHours) * time.Hour
	cacheCfg.BuildTimeout = time.Duration(cfg.Cache.BuildTimeoutSec) * time.Second
	cache := derived.New(redisClient, sqliteClient, breaker, cacheCfg)

	tagMatcher := matcher.New(cache, matcher.Config{
		CoefficientFallback: cfg.Matcher.CoefficientFallback,
		BetaNormalization:   cfg.Matcher.BetaNormalization,
		Workers:             cfg.Matcher.ScoringWorkers,
	})

	pointsService := points.NewService(redisClient, sqliteClient, cacheCfg.TTL)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		Logger:            appLogger.Named("ratelimit"),
	})
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Server.Environment == "development",
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	handlers.Register(app, handlers.Routes{
		Match:      handlers.NewMatchHandler(tagMatcher),
		Resources:  handlers.NewResourceHandler(cache),
		Dimensions: handlers.NewDimensionHandler(cache),
		Points:     handlers.NewPointsHandler(pointsService),
		Middleware: []fiber.Handler{
			limiter.Middleware(),
			validation.Middleware(validation.Config{
				Logger: appLogger.Named("validation"),
			}),
			metrics.RequestMiddleware(),
		},
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
