package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/auth"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/cache"
	bookshophttp "github.com/Cyb3rKotl3Ta/bookshop/internal/http"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/publisher"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/repository"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/service"
)

type Config struct {
	HTTPPort        string
	RedisAddr       string
	KafkaBrokers    []string
	TokenSecret     string
	TokenTTL        time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	DB              repository.Credentials
}

func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, errors.New("invalid DB_PORT")
	}

	tokenTTLMinutes, err := strconv.Atoi(getEnv("ACCESS_TOKEN_EXPIRE_MINUTES", "30"))
	if err != nil {
		return nil, errors.New("invalid ACCESS_TOKEN_EXPIRE_MINUTES")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		TokenSecret:     getEnv("SECRET_KEY", "a_very_secret_key"),
		TokenTTL:        time.Duration(tokenTTLMinutes) * time.Minute,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		DB: repository.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "bookshop"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "bookshop").Logger()

	// Monetary fields render as JSON numbers, matching the API contract.
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	repo, err := repository.NewRepository(&cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer repo.Close()

	if err := repo.RunMigrations(&cfg.DB); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	logger.Info().Msg("database migrations completed")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cartCache := cache.NewRedisCache(redisClient)

	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)

	cartService := service.NewCartService(repo, repo, cartCache)
	checkoutService := service.NewCheckoutService(repo, repo, cartCache)
	catalogService := service.NewCatalogService(repo)
	userService := service.NewUserService(repo, repo)

	router := bookshophttp.NewRouter(bookshophttp.RouterDeps{
		Users:    bookshophttp.NewUserHandler(userService, catalogService, tokens),
		Books:    bookshophttp.NewBookHandler(catalogService),
		Cart:     bookshophttp.NewCartHandler(cartService),
		Checkout: bookshophttp.NewCheckoutHandler(checkoutService),
		Tokens:   tokens,
		Loader:   userService,
		Timeout:  cfg.RequestTimeout,
	})

	pollerCtx, cancelPoller := context.WithCancel(context.Background())
	defer cancelPoller()
	outboxPoller := publisher.NewOutboxPoller(repo, logger, cfg.KafkaBrokers...)
	go outboxPoller.Run(pollerCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "bookshop"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("bookshop backend starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	cancelPoller()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
