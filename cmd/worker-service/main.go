package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/assessment-reports/internal/config"
	"github.com/cuongbtq/assessment-reports/internal/generation"
	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/objectstore"
	"github.com/cuongbtq/assessment-reports/internal/observability"
	"github.com/cuongbtq/assessment-reports/internal/orchestrator"
	"github.com/cuongbtq/assessment-reports/internal/render"
	"github.com/cuongbtq/assessment-reports/internal/report"
	"github.com/cuongbtq/assessment-reports/internal/worker"
	"github.com/cuongbtq/assessment-reports/internal/worker/storage"
	"github.com/cuongbtq/assessment-reports/shared/logger"
	"github.com/cuongbtq/assessment-reports/shared/postgresql"
	"github.com/cuongbtq/assessment-reports/shared/rabbitmq"
)

const serviceName = "report-worker-service"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	workerID := workerID()
	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("worker_id", workerID),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := initPostgreSQL(ctx, &cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if err := jobs.EnsureSchema(ctx, dbClient.GetDB(), cfg.Jobs.Table); err != nil {
		return err
	}

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		var metricsHandler http.Handler
		metrics, metricsHandler, err = observability.NewMetrics(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		metricsServer := startMetricsServer(cfg.Metrics.Port, metricsHandler, appLogger.Logger)
		defer metricsServer.Close()
	}

	store, err := objectstore.NewS3Store(ctx, cfg.Storage, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	runner, err := initOrchestrator(ctx, cfg, appLogger.Logger, metrics, store)
	if err != nil {
		return err
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            appLogger.Logger,
		Consumer:          rabbitClient,
		Replier:           rabbitClient,
		Store:             storage.NewStorage(dbClient.GetDB(), cfg.Jobs.Table, appLogger.Logger),
		Runner:            runner,
		Metrics:           metrics,
		Presigner:         store,
		PresignTTL:        cfg.Storage.PresignTTL,
		WorkerID:          workerID,
		Concurrency:       cfg.Worker.Concurrency,
		JobTimeout:        cfg.Worker.JobTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case amqpErr := <-rabbitClient.NotifyClose():
		runErr = fmt.Errorf("rabbitmq channel closed: %v", amqpErr)
		appLogger.Error("Worker lost its broker channel", slog.Any("error", amqpErr))
	case err := <-errChan:
		if err != nil {
			return err
		}
		appLogger.Warn("Worker stopped consuming")
	}

	cancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return runErr
}

// initOrchestrator wires generation, rendering and storage into the fan-out
func initOrchestrator(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, store objectstore.Uploader) (*orchestrator.Orchestrator, error) {
	// Left as an untyped nil when disabled so producers fall back directly.
	var gen report.Generator
	if !cfg.Generation.Disabled {
		client, err := generation.NewBedrockClient(ctx, generation.Config{
			Region:  cfg.Generation.Region,
			ModelID: cfg.Generation.ModelID,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize generation client: %w", err)
		}
		logger.Info("Generation client ready",
			slog.String("model_id", client.ModelID()),
			slog.String("region", cfg.Generation.Region),
		)
		gen = client
	}

	logger.Info("Report pipeline configured",
		slog.Bool("generation_disabled", cfg.Generation.Disabled),
		slog.String("bucket", cfg.Storage.Bucket),
		slog.String("completion_policy", cfg.Worker.CompletionPolicy),
	)

	return orchestrator.New(
		report.NewProducers(gen, cfg.Generation, cfg.Reports, logger),
		render.NewPDFRenderer(cfg.Reports.Branding, logger),
		store,
		orchestrator.Config{
			WorkDir:          cfg.Worker.WorkDir,
			Prefix:           cfg.Storage.Prefix,
			CompletionPolicy: cfg.Worker.CompletionPolicy,
			Logger:           logger,
			Metrics:          metrics,
		},
	), nil
}

// startMetricsServer serves /metrics on its own port
func startMetricsServer(port int, handler http.Handler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()

	logger.Info("Metrics server started", slog.String("address", srv.Addr))
	return srv
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(ctx, dbConfig, logger)
}

// initRabbitMQ initializes the consuming RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		ConsumerTag:        cfg.Consumer.Tag,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
