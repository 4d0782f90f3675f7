package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"relm/internal/config"
	"relm/internal/handlers"
	"relm/internal/middleware"
	"relm/internal/repositories"
	"relm/internal/services"
	"relm/pkg/avatar"
	"relm/pkg/mailer"
	"relm/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// --- Mongo ---
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Error().Err(err).Msg("error disconnecting MongoDB")
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelPing()
	if err := mongoClient.Ping(pingCtx, readpref.Primary()); err != nil {
		logger.Fatal().Err(err).Msg("MongoDB is unreachable")
	}
	db := mongoClient.Database(cfg.MongoDB)

	// --- RabbitMQ (optional: activity events are best-effort) ---
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			logger.Warn().Err(err).Msg("RabbitMQ unavailable, activity events disabled")
			mqClient = nil
		} else {
			defer mqClient.Close()
		}
	}

	// --- Mailer ---
	otpMailer, err := mailer.NewMailer(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure mailer")
	}

	// --- Avatar storage ---
	avatarStore, err := avatar.NewStore(cfg.UploadDir, "/uploads")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	// --- Repositories ---
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelIndex()
	userRepo, err := repositories.NewMongoUserRepository(indexCtx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize user repository")
	}
	postRepo := repositories.NewMongoPostRepository(db)

	// --- Services ---
	tokenService := services.NewTokenService(cfg.JWTSecret)
	otpService := services.NewOTPService(userRepo, otpMailer, logger)
	authService := services.NewAuthService(userRepo, otpService, tokenService, mqClient, logger)
	postService := services.NewPostService(postRepo, userRepo, mqClient, logger)
	profileService := services.NewProfileService(userRepo, postRepo)

	// --- Handlers ---
	cookies := middleware.CookieManager{Production: cfg.Production}
	authHandler := handlers.NewAuthHandler(authService, tokenService, avatarStore, cookies, logger)
	postHandler := handlers.NewPostHandler(postService, logger)
	profileHandler := handlers.NewProfileHandler(profileService, avatarStore, logger)

	// --- Fiber app ---
	app := fiber.New()

	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigin,
		AllowCredentials: true,
	}))
	app.Static("/uploads", cfg.UploadDir)

	api := app.Group("/api")

	// Public routes.
	authHandler.RegisterRoutes(api)

	// Protected routes behind the session verifier.
	protected := api.Group("", middleware.SessionRequired(tokenService, cookies))
	postHandler.RegisterRoutes(protected)
	profileHandler.RegisterRoutes(protected)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Activity event consumer ---
	// Drains the activity queue so notification fan-out can hang off it.
	if mqClient != nil {
		handler := func(msg amqp.Delivery) error {
			logger.Info().
				Str("event", msg.Type).
				RawJSON("payload", msg.Body).
				Msg("activity event")
			return nil
		}
		if err := mqClient.ConsumeActivityEvents(handler); err != nil {
			logger.Error().Err(err).Msg("failed to start activity consumer")
		}
	}

	// --- Start HTTP server ---
	logger.Info().Str("port", cfg.AppPort).Msg("starting server")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-quit
	logger.Info().Msg("shutting down server")

	if err := app.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}

	logger.Info().Msg("server stopped")
}
