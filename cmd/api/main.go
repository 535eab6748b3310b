package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/aster/config"
	"github.com/Ramsey-B/aster/internal/repositories/destination"
	"github.com/Ramsey-B/aster/internal/repositories/destinationlink"
	"github.com/Ramsey-B/aster/internal/repositories/submission"
	"github.com/Ramsey-B/aster/pkg/aggregation"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/destinations"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/middleware"
	"github.com/Ramsey-B/aster/pkg/redis"
	"github.com/Ramsey-B/aster/pkg/refresh"
	destinationroutes "github.com/Ramsey-B/aster/pkg/routes/destination"
	"github.com/Ramsey-B/aster/pkg/routes/health"
	searchroutes "github.com/Ramsey-B/aster/pkg/routes/search"
	submissionroutes "github.com/Ramsey-B/aster/pkg/routes/submission"
	"github.com/Ramsey-B/aster/pkg/tracing"
	"github.com/Ramsey-B/aster/pkg/tracing/exporters"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	logger.WithFields(map[string]any{"app": cfg.AppName, "version": version}).Info("Starting service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			fatal(logger, err, "Failed to set up tracing")
		}
		defer shutdown(context.Background())
	}

	db, sqlxDB, err := connectDatabase(cfg, logger)
	if err != nil {
		fatal(logger, err, "Failed to connect to database")
	}
	defer db.Close()

	if err := runMigrations(cfg, logger, sqlxDB); err != nil {
		fatal(logger, err, "Failed to run migrations")
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		fatal(logger, err, "Failed to connect to Redis")
	}
	defer redisClient.Close()

	streams := redis.NewStreams(redisClient)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	emitter := events.NewEmitter(producer, logger)

	submissionRepo := submission.NewRepository(db, logger)
	destinationRepo := destination.NewRepository(db, logger)
	linkRepo := destinationlink.NewRepository(db, logger)

	engine := aggregation.NewEngine(logger, submissionRepo, cfg.ExperienceExcerpts, cfg.FetchTimeout)
	queue := refresh.NewQueue(redisClient, streams, logger, cfg.RefreshStream, cfg.RefreshDedupWindow)
	service := destinations.NewService(logger, db, engine, destinationRepo, linkRepo, queue, emitter, cfg.StaleAfter)

	processorConfig := refresh.DefaultProcessorConfig()
	processorConfig.Stream = cfg.RefreshStream
	processorConfig.ConsumerGroup = cfg.RefreshConsumerGroup
	processorConfig.WorkerCount = cfg.RefreshWorkerCount
	processor := refresh.NewProcessor(streams, service, processorConfig, logger)
	if err := processor.Start(ctx); err != nil {
		fatal(logger, err, "Failed to start refresh processor")
	}
	defer processor.Stop(context.Background())

	var consumerHealth health.ConsumerHealth
	if cfg.KafkaConsumerEnabled {
		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaInputTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, events.SubmissionHandler(logger, service))
		if err := consumer.Start(ctx); err != nil {
			fatal(logger, err, "Failed to start Kafka consumer")
		}
		defer consumer.Stop()
		consumerHealth = consumer
	}

	container, err := buildContainer(logger, service, submissionRepo, destinationRepo, linkRepo)
	if err != nil {
		fatal(logger, err, "Failed to build DI container")
	}

	e := newServer(cfg, logger, container)

	checker := health.NewChecker(db, redisClient, consumerHealth, version)
	checker.RegisterRoutes(e)
	checker.SetReady(true)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			fatal(logger, err, "Server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down server cleanly")
	}
}

func fatal(logger ectologger.Logger, err error, msg string) {
	logger.WithError(err).Error(msg)
	os.Exit(1)
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func connectDatabase(cfg config.Config, logger ectologger.Logger) (database.DB, *sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName,
		cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode,
	)

	var sqlxDB *sqlx.DB
	var err error
	for attempt := 1; attempt <= cfg.StartupMaxAttempts; attempt++ {
		sqlxDB, err = sqlx.Connect(cfg.DatabaseDriver, dsn)
		if err == nil {
			break
		}
		logger.WithError(err).WithFields(map[string]any{"attempt": attempt}).Warn("Database connection failed, retrying")
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	if err != nil {
		return nil, nil, err
	}

	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	return database.NewDatabaseInstance(sqlxDB, logger), sqlxDB, nil
}

func runMigrations(cfg config.Config, logger ectologger.Logger, sqlxDB *sqlx.DB) error {
	driver, err := postgres.WithInstance(sqlxDB.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	migrationService := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})

	return migrationService.Migrate(cfg.DatabaseName, driver)
}

func buildContainer(
	logger ectologger.Logger,
	service *destinations.Service,
	submissionRepo *submission.Repository,
	destinationRepo *destination.Repository,
	linkRepo *destinationlink.Repository,
) (ectocontainer.DIContainer, error) {
	container, err := ectoinject.NewDIContainer(ectocontainer.DIContainerConfig{ID: "aster"})
	if err != nil {
		return nil, err
	}

	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[*destinations.Service](container, service); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[*submission.Repository](container, submissionRepo); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[*destination.Repository](container, destinationRepo); err != nil {
		return nil, err
	}
	if err := ectoinject.RegisterInstance[*destinationlink.Repository](container, linkRepo); err != nil {
		return nil, err
	}

	return container, nil
}

func newServer(cfg config.Config, logger ectologger.Logger, container ectocontainer.DIContainer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(injectContainer(container))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	destinationroutes.Register(api.Group("/destinations"))
	searchroutes.Register(api.Group("/search"))
	submissionroutes.Register(api.Group("/submissions"))

	return e
}

func injectContainer(container ectocontainer.DIContainer) echo.MiddlewareFunc {
	containerID := container.GetContainerID()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, err := ectoinject.SetActiveContainer(c.Request().Context(), containerID)
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func setupTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingEndpoint,
		Insecure: true,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(sdkresource.Default()),
	)
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return provider.Shutdown, nil
}
