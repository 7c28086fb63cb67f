package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/bidflow/auction-engine/internal/adapters/api"
	"github.com/bidflow/auction-engine/internal/adapters/cache"
	"github.com/bidflow/auction-engine/internal/adapters/database"
	"github.com/bidflow/auction-engine/internal/adapters/events"
	"github.com/bidflow/auction-engine/internal/domain/auctions"
	"github.com/bidflow/auction-engine/internal/domain/bids"
	"github.com/bidflow/auction-engine/internal/outbox"
	pkgdb "github.com/bidflow/auction-engine/pkg/database"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	ctx := context.Background()

	// 1. Initialize Postgres Connection Pool
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}

	dbConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. Connect to RabbitMQ for the in-process outbox relay
	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}

	amqpConn, err := amqp.Dial(rabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	rabbitPublisher, err := events.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer rabbitPublisher.Close()

	// 3. Redis view cache (optional; reads fall through to Postgres without it)
	var viewCache *cache.AuctionViewCache
	redisURL := os.Getenv("REDIS_URL")
	if redisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, serving reads from Postgres", "error", err)
		} else {
			viewCache = cache.NewAuctionViewCache(rdb, 5*time.Second)
			logger.Info("Redis Connected")
		}
	}

	// 4. Admin auth material
	jwtSecret := os.Getenv("JWT_SECRET")
	adminHash := os.Getenv("ADMIN_PASSPHRASE_HASH")
	if jwtSecret == "" || adminHash == "" {
		logger.Error("JWT_SECRET and ADMIN_PASSPHRASE_HASH must be set")
		os.Exit(1)
	}

	// 5. Initialize Repositories (Infrastructure Layer)
	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	watcherRepo := database.NewPostgresWatcherRepository(pool)

	// 6. Initialize Services (Domain Layer)
	registry := auctions.NewService(txManager, auctionRepo, bidRepo, watcherRepo, outboxRepo)
	ledger := bids.NewService(txManager, bidRepo, auctionRepo, outboxRepo)

	// 7. Start Outbox Relay
	relay := outbox.NewRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		10,              // batch size
		1*time.Second,   // interval
		events.Exchange, // exchange
		logger,
	)

	go func() {
		logger.Info("Starting Outbox Relay...")
		if err := relay.Run(ctx); err != nil {
			logger.Error("Outbox Relay stopped", "error", err)
		}
	}()

	// 8. Start HTTP Server
	handler := api.NewHandler(registry, ledger, viewCache, api.Config{
		JWTSecret:           []byte(jwtSecret),
		AdminPassphraseHash: adminHash,
		Logger:              logger,
	})

	e := echo.New()
	handler.SetupRoutes(e)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	logger.Info("Starting Auction Engine API", "addr", addr)

	if err := e.Start(addr); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
