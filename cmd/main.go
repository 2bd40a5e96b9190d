package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/cart"
	h "github.com/victor-jaber/cara-pt-ecom-sub000/internal/http"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/mailer"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/outbox"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/payment"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/pending"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/repository"
	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/snapshot"
)

type Config struct {
	HTTPPort          string
	JWTSecret         string
	PostgresHost      string
	PostgresPort      int
	PostgresUser      string
	PostgresPassword  string
	PostgresDB        string
	MigrationsDirPath string
	MongoURI          string
	MongoDBName       string
	RedisAddr         string
	KafkaBrokers      []string
	StaleOrderMaxAge  time.Duration
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		PostgresHost:      getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:      getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:      getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:  getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:        getEnv("POSTGRES_DB", "storefront"),
		MigrationsDirPath: getEnv("MIGRATIONS_DIR", "internal/repository/migrations"),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:       getEnv("MONGO_DB_NAME", "cartdb"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:      strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		// 0 disables the sweep; abandoned Multibanco references can stay
		// payable for days.
		StaleOrderMaxAge: getEnvDuration("STALE_ORDER_MAX_AGE", 0),
		RequestTimeout:   30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	creds := &repository.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDirPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Printf("Connected to Postgres at %s:%d", cfg.PostgresHost, cfg.PostgresPort)

	ctx := context.Background()
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	cartService := cart.NewService(cart.NewMongoRepository(mongoDB), cart.NewRedisCache(redisClient))

	registry := pending.NewRegistry()
	defer registry.Close()

	builder := snapshot.NewBuilder(repo, cartService)
	paymentService := payment.NewService(
		repo,
		repo,
		repo,
		builder,
		cartService,
		registry,
		payment.NewClientCache(),
	)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	poller := outbox.NewPoller(repo, cfg.StaleOrderMaxAge, cfg.KafkaBrokers...)
	go poller.Run(workerCtx)

	mailConsumer := mailer.NewConsumer(mailer.LogSender{}, cfg.KafkaBrokers...)
	defer mailConsumer.Close()
	go mailConsumer.Run(workerCtx)

	router := h.NewRouter(
		h.RouterConfig{
			JWTSecret:      []byte(cfg.JWTSecret),
			RequestTimeout: cfg.RequestTimeout,
		},
		h.NewCheckoutHandler(paymentService, cfg.RequestTimeout),
		h.NewOrdersHandler(repo, cfg.RequestTimeout),
		h.NewCartHandler(cartService, cfg.RequestTimeout),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Storefront API starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	stopWorkers()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
