package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andressep95/verification-service/internal/config"
	"github.com/andressep95/verification-service/internal/handler"
	"github.com/andressep95/verification-service/internal/handler/middleware"
	"github.com/andressep95/verification-service/internal/repository"
	"github.com/andressep95/verification-service/internal/repository/memory"
	"github.com/andressep95/verification-service/internal/repository/postgres"
	"github.com/andressep95/verification-service/internal/service"
	"github.com/andressep95/verification-service/pkg/apikeycache"
	"github.com/andressep95/verification-service/pkg/email"
	"github.com/andressep95/verification-service/pkg/jwt"
	"github.com/andressep95/verification-service/pkg/logging"
	"github.com/andressep95/verification-service/pkg/storage"
	"github.com/andressep95/verification-service/pkg/validator"
	"github.com/andressep95/verification-service/pkg/webhook"
)

type repositories struct {
	sessions   repository.VerificationSessionRepository
	clients    repository.APIClientRepository
	deliveries repository.WebhookDeliveryRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Log.Level, cfg.Log.Pretty)

	checks := map[string]handler.Pinger{}
	var (
		repos    repositories
		keyCache service.APIKeyCache
	)

	switch cfg.StorageType {
	case config.StorageMemory:
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		repos = repositories{
			sessions:   memory.NewVerificationSessionRepository(),
			clients:    memory.NewAPIClientRepository(),
			deliveries: memory.NewWebhookDeliveryRepository(),
		}
	default:
		db, err := initDB(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database")
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("error closing database connection")
			}
		}()
		log.Info().Msg("database connection established")
		checks["database"] = db

		redisClient, err := initRedis(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize redis")
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis connection")
			}
		}()
		log.Info().Msg("redis connection established")
		checks["cache"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})

		repos = repositories{
			sessions:   postgres.NewVerificationSessionRepository(db),
			clients:    postgres.NewAPIClientRepository(db),
			deliveries: postgres.NewWebhookDeliveryRepository(db),
		}
		keyCache = apikeycache.New(redisClient, cfg.Redis.APIKeyTTL)
	}

	privateKey, publicKey, err := loadRSAKeys(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RSA keys")
	}
	tokenService, err := jwt.NewTokenService(privateKey, publicKey, cfg.JWT.Issuer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token service")
	}

	store, err := storage.NewDiskStore(cfg.Verification.UploadDir, cfg.Verification.MaxUploadSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize artifact storage")
	}

	var mailer email.Notifier = email.NoopNotifier{}
	if cfg.Email.Enabled {
		resendNotifier, err := email.NewResendNotifier(email.Config{
			APIKey:    cfg.Email.APIKey,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
		})
		if err != nil {
			log.Warn().Err(err).Msg("email notifications disabled")
		} else {
			mailer = resendNotifier
			log.Info().Msg("email notifications enabled (resend)")
		}
	}

	if cfg.Webhook.Secret == "" {
		log.Warn().Msg("WEBHOOK_SECRET is empty, webhook signatures are not secret")
	}
	dispatcher := service.NewWebhookDispatcher(
		webhook.NewNotifier(cfg.Webhook.Secret, cfg.Webhook.Timeout),
		repos.deliveries,
		mailer,
	)

	verificationService := service.NewVerificationService(repos.sessions, tokenService, store, dispatcher, cfg.Verification)
	apiClientService := service.NewAPIClientService(repos.clients, keyCache)

	validate := validator.NewValidator()

	app := fiber.New(fiber.Config{
		AppName:      "Identity Verification Service v1.0",
		ErrorHandler: customErrorHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    int(cfg.Verification.MaxUploadSize) + 1<<20,
	})

	app.Use(middleware.RecoveryMiddleware())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	handler.SetupRoutes(
		app,
		handler.NewVerificationHandler(verificationService, validate),
		handler.NewAPIClientHandler(apiClientService, dispatcher, validate),
		handler.NewHealthHandler(checks),
		handler.NewJWKSHandler(tokenService.PublicKey(), tokenService.KeyID()),
		middleware.APIKeyMiddleware(apiClientService),
		middleware.SessionTokenMiddleware(tokenService),
		middleware.RequireAdminToken(cfg.Admin.Token),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Info().Str("addr", addr).Str("environment", cfg.Server.Environment).Msg("server starting")
		if err := app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// initDB initializes PostgreSQL database connection with retry logic
func initDB(cfg *config.Config) (*sqlx.DB, error) {
	dsn := cfg.Database.DSN()

	var db *sqlx.DB
	var err error

	maxRetries := 5
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			break
		}

		log.Warn().Err(err).Int("attempt", i+1).Int("max", maxRetries).Msg("failed to connect to database")
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}

	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to database after %d attempts", maxRetries)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return db, nil
}

// initRedis initializes Redis client and verifies connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to ping redis")
	}

	return client, nil
}

// loadRSAKeys loads RSA private and public keys from files
func loadRSAKeys(cfg *config.Config) ([]byte, []byte, error) {
	privateKey, err := os.ReadFile(cfg.JWT.PrivateKeyPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read private key file")
	}

	publicKey, err := os.ReadFile(cfg.JWT.PublicKeyPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read public key file")
	}

	if len(privateKey) == 0 || len(publicKey) == 0 {
		return nil, nil, errors.New("key file is empty")
	}

	return privateKey, publicKey, nil
}

// customErrorHandler catches errors no handler answered, e.g. unknown
// routes or oversized bodies
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("unhandled error")
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
