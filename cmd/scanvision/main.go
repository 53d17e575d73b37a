package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rox-lucas-sh/image-scan-vision/internal/api"
	"github.com/rox-lucas-sh/image-scan-vision/internal/api/service"
	"github.com/rox-lucas-sh/image-scan-vision/internal/auth"
	"github.com/rox-lucas-sh/image-scan-vision/internal/config"
	"github.com/rox-lucas-sh/image-scan-vision/internal/data/mongo"
	"github.com/rox-lucas-sh/image-scan-vision/internal/data/postgres"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/entrystore"
	"github.com/rox-lucas-sh/image-scan-vision/internal/imaging"
	"github.com/rox-lucas-sh/image-scan-vision/internal/intake"
	"github.com/rox-lucas-sh/image-scan-vision/internal/logger"
	"github.com/rox-lucas-sh/image-scan-vision/internal/pipeline"
	"github.com/rox-lucas-sh/image-scan-vision/internal/platform/messaging/consumers"
	"github.com/rox-lucas-sh/image-scan-vision/internal/platform/messaging/producers"
	"github.com/rox-lucas-sh/image-scan-vision/internal/platform/persistence"
	"github.com/rox-lucas-sh/image-scan-vision/internal/polling"
	"github.com/rox-lucas-sh/image-scan-vision/internal/snapshot"
	"github.com/rox-lucas-sh/image-scan-vision/internal/upstream"
	"github.com/rox-lucas-sh/image-scan-vision/internal/validation"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("scanvision")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)
	log.Info("Starting scan vision service",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"persistence", cfg.Persistence.Backend,
	)

	store := entrystore.New(log.With("component", "entrystore"))
	images := snapshot.NewRegistry()

	// Snapshot persistence
	backend, err := openSnapshotBackend(appCtx, log, cfg)
	if err != nil {
		log.Error("Failed to initialize snapshot persistence", "error", err)
		os.Exit(1)
	}
	adapter := snapshot.NewAdapter(log.With("component", "snapshot"), backend.repo, images, cfg.Persistence.SaveTimeout)
	restored, err := adapter.Load(appCtx)
	if err != nil {
		log.Error("Failed to load snapshot", "error", err)
		os.Exit(1)
	}
	store.Replace(restored)
	store.Subscribe(adapter.OnChange)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		adapter.Run(appCtx)
	}()

	// Entry events and submission intake
	var (
		eventProducer *producers.EntryEventProducer
		dlqProducer   *producers.DLQProducer
		kafkaConsumer *consumers.KafkaConsumer
		notifier      pipeline.PointsTimeoutNotifier
	)
	if cfg.Kafka.Enabled {
		eventProducer, err = producers.NewEntryEventProducer(appCtx, log.With("component", "entry_events"), &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize entry event producer", "error", err)
			os.Exit(1)
		}
		store.Subscribe(eventProducer.OnChange)
		notifier = eventProducer

		dlqProducer, err = producers.NewDLQProducer(appCtx, log.With("component", "dlq"), &cfg.Kafka)
		if err != nil {
			log.Error("Failed to initialize DLQ Kafka producer", "error", err)
			os.Exit(1)
		}
	}

	// Pipeline
	validator, err := validation.NewValidator(cfg.Validation.Mode)
	if err != nil {
		log.Error("Failed to initialize validator", "error", err)
		os.Exit(1)
	}
	tokens := auth.NewTokenStore(log.With("component", "auth"), cfg.Auth.Token)

	orchestrator, err := pipeline.NewOrchestrator(log.With("component", "pipeline"), &cfg.Polling, &cfg.WorkerPool, pipeline.Dependencies{
		Store:      store,
		Upstream:   upstream.NewClient(log.With("component", "upstream"), &cfg.Upstream),
		Validator:  validator,
		Normalizer: imaging.NewNormalizer(&cfg.Image),
		Images:     images,
		Tokens:     tokens,
		Scheduler:  polling.NewScheduler(log.With("component", "polling")),
		Notifier:   notifier,
	})
	if err != nil {
		log.Error("Failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	if resumed := orchestrator.Resume(appCtx); resumed > 0 {
		log.Info("Resumed restored entries", "count", resumed)
	}

	errChan := make(chan error, 2)

	if cfg.Kafka.Enabled && cfg.Kafka.SubmissionTopic != "" {
		var dlq producers.DeadLetterPublisher
		if dlqProducer != nil {
			dlq = dlqProducer
		}
		submissions := intake.NewSubmissionHandler(log.With("component", "intake"), orchestrator, dlq)
		kafkaConsumer = consumers.NewKafkaConsumer(log.With("component", "consumer"), &cfg.Kafka)
		if _, err := kafkaConsumer.Subscribe(appCtx, submissions.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}

	// HTTP API
	entryService := service.NewEntryService(log, orchestrator, orchestrator.Controller(), store, images)
	authService := service.NewAuthService(log, tokens)
	server := api.NewServer(log, cfg, entryService, authService, backend.health...)

	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var runErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case runErr = <-errChan:
		log.Error("Service error occurred", "error", runErr)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Close(); err != nil {
			log.Error("Error closing Kafka consumer", "error", err)
		}
	}

	orchestrator.Shutdown(cfg.Server.ShutdownTimeout)

	cancelAppCtx()
	wg.Wait()
	if err := adapter.Flush(shutdownCtx); err != nil {
		log.Error("Error writing final snapshot", "error", err)
	}
	if err := backend.close(shutdownCtx); err != nil {
		log.Error("Error closing snapshot persistence", "error", err)
	}

	if eventProducer != nil {
		if err := eventProducer.Close(); err != nil {
			log.Error("Error closing entry event producer", "error", err)
		}
	}
	if err := dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ producer", "error", err)
	}

	if runErr != nil {
		log.Error("Shutdown completed with errors", "error", runErr)
		os.Exit(1)
	}
	log.Info("Shutdown completed successfully")
}

// snapshotBackend is the configured snapshot repository and what it holds open
type snapshotBackend struct {
	repo   entry.SnapshotRepository
	close  func(context.Context) error
	health []api.HealthCheck
}

// openSnapshotBackend connects the configured snapshot backend
func openSnapshotBackend(ctx context.Context, log *slog.Logger, cfg *config.Config) (*snapshotBackend, error) {
	switch cfg.Persistence.Backend {
	case config.PersistencePostgres:
		db, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return &snapshotBackend{
			repo: postgres.NewSnapshotRepository(log, db),
			close: func(context.Context) error {
				db.Close()
				return nil
			},
			health: []api.HealthCheck{{Name: "postgres", Check: db.Ping}},
		}, nil

	case config.PersistenceMongo:
		db, err := persistence.NewMongoDB(ctx, log, &cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		repo := mongo.NewSnapshotRepository(log, db.Database())
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = db.Close(ctx)
			return nil, err
		}
		return &snapshotBackend{
			repo:   repo,
			close:  db.Close,
			health: []api.HealthCheck{{Name: "mongo", Check: db.Ping}},
		}, nil

	default:
		return &snapshotBackend{
			repo:  snapshot.NewFileStore(log, cfg.Persistence.SnapshotFile),
			close: func(context.Context) error { return nil },
		}, nil
	}
}
