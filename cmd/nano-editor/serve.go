package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/api/handlers/catalog"
	exporthandler "github.com/aliskhannn/nano-editor/internal/api/handlers/export"
	"github.com/aliskhannn/nano-editor/internal/api/handlers/project"
	"github.com/aliskhannn/nano-editor/internal/api/handlers/session"
	"github.com/aliskhannn/nano-editor/internal/api/router"
	"github.com/aliskhannn/nano-editor/internal/api/server"
	"github.com/aliskhannn/nano-editor/internal/config"
	"github.com/aliskhannn/nano-editor/internal/editor"
	"github.com/aliskhannn/nano-editor/internal/export"
	"github.com/aliskhannn/nano-editor/internal/generation"
	"github.com/aliskhannn/nano-editor/internal/history"
	"github.com/aliskhannn/nano-editor/internal/infra/kafka/consumer"
	"github.com/aliskhannn/nano-editor/internal/infra/kafka/producer"
	exportmsg "github.com/aliskhannn/nano-editor/internal/kafka/handlers/export"
	"github.com/aliskhannn/nano-editor/internal/notify"
	"github.com/aliskhannn/nano-editor/internal/processor"
	imagerepo "github.com/aliskhannn/nano-editor/internal/repository/image"
	"github.com/aliskhannn/nano-editor/internal/repository/migrations"
	editorsvc "github.com/aliskhannn/nano-editor/internal/service/editor"
	"github.com/aliskhannn/nano-editor/internal/storage/file"
	"github.com/aliskhannn/nano-editor/internal/store"
)

// serve runs the HTTP API, the export queue and the Kafka batch consumer
// until SIGINT or SIGTERM.
func serve(configPath string) {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad(configPath)

	// Retry strategy for Kafka and other external calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Connect to PostgreSQL (master and slaves) when configured.
	var (
		db   *dbpg.DB
		repo *imagerepo.Repository
	)
	if cfg.Database.Master.Host != "" {
		var err error
		db, err = openDB(&cfg.Database)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		if cfg.Database.AutoMigrate {
			if err := migrations.Up(db.Master); err != nil {
				zlog.Logger.Fatal().Err(err).Msg("failed to migrate database")
			}
		}
		repo = imagerepo.NewRepository(db)
	} else {
		zlog.Logger.Warn().Msg("database not configured, images are not recorded")
	}

	// Initialize object storage (MinIO) when configured.
	var storage *file.Storage
	if cfg.Storage.Endpoint != "" {
		var err error
		storage, err = file.NewStorage(ctx, file.Options{
			Endpoint:   cfg.Storage.Endpoint,
			AccessKey:  cfg.Storage.AccessKey,
			SecretKey:  cfg.Storage.SecretKey,
			BucketName: cfg.Storage.BucketName,
			UseSSL:     cfg.Storage.UseSSL,
			PublicURL:  cfg.Storage.PublicURL,
			URLExpiry:  cfg.Storage.URLExpiry,
		})
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
	} else {
		zlog.Logger.Warn().Msg("storage not configured, images are kept as data urls")
	}

	// Image generation: Gemini with retries, or the mock without an API key.
	var gen generation.Generator = generation.Mock{}
	if cfg.Generation.APIKey != "" {
		gemini, err := generation.NewGemini(ctx, generation.GeminiOptions{
			APIKey:  cfg.Generation.APIKey,
			Model:   cfg.Generation.Model,
			BaseURL: cfg.Generation.BaseURL,
		})
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to create generation client")
		}
		gen = gemini
	} else {
		zlog.Logger.Warn().Msg("GEMINI_API_KEY not set, using the mock generator")
	}
	gen = generation.NewRetrying(gen, retry.Strategy{
		Attempts: cfg.Generation.Retry.Attempts,
		Delay:    cfg.Generation.Retry.Delay,
		Backoff:  cfg.Generation.Retry.Backoff,
	})

	// Export pipeline: renderer, optional storage sink, notifications.
	client := &http.Client{Timeout: time.Minute}
	notices := notify.New(notify.DefaultCapacity, nil)
	queueOpts := export.Options{
		JobTimeout:       cfg.Export.JobTimeout,
		FilenameTemplate: cfg.Export.FilenameTemplate,
	}

	var (
		imageProcessor *processor.Processor
		queue          *export.Queue
	)
	if storage != nil {
		imageProcessor = processor.New(storage, client, cfg.Storage.Hosts()...)
		queue = export.NewQueue(imageProcessor, storage, notices, queueOpts)
	} else {
		imageProcessor = processor.New(nil, client, cfg.Storage.Hosts()...)
		queue = export.NewQueue(imageProcessor, nil, notices, queueOpts)
	}

	// Local project cache.
	projects, err := store.NewJSONStore(cfg.Cache.Path, cfg.Cache.MaxRevisions, nil)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open project cache")
	}

	sessions := editor.NewManager(history.Options{
		MaxDepth:    cfg.History.MaxDepth,
		MinInterval: cfg.History.MinInterval,
	}, nil)

	deps := editorsvc.Deps{
		Sessions:  sessions,
		Generator: gen,
		Fetcher:   imageProcessor,
		Projects:  projects,
		Queue:     queue,
		Notices:   notices,
	}
	if storage != nil {
		deps.Storage = storage
	}
	if repo != nil {
		deps.Images = repo
	}

	// Kafka producer and consumer for export batches when brokers are configured.
	var (
		p  *producer.Producer
		c  *consumer.Consumer
		wg sync.WaitGroup
	)
	if len(cfg.Kafka.Brokers) > 0 {
		p = producer.New(&cfg.Kafka, strategy)
		deps.Publisher = p
	}

	service := editorsvc.NewService(deps, editorsvc.Options{GenerationTimeout: cfg.Generation.Timeout})

	if len(cfg.Kafka.Brokers) > 0 {
		c = consumer.New(&cfg.Kafka, strategy, exportmsg.NewBatchHandler(service))

		wg.Add(1)
		go c.Consume(ctx, &wg)
	} else {
		zlog.Logger.Warn().Msg("kafka not configured, export batches run in-process")
	}

	// Start HTTP server in a separate goroutine.
	r := router.Setup(router.Handlers{
		Session: session.NewHandler(service),
		Export:  exporthandler.NewHandler(service),
		Project: project.NewHandler(service),
		Catalog: catalog.NewHandler(service),
	})
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Stop background exports.
	service.Close()

	// Close master and slave databases.
	if db != nil {
		if err := db.Master.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close master DB")
		}
		for i, s := range db.Slaves {
			if err := s.Close(); err != nil {
				zlog.Logger.Error().Err(err).Int("slave", i).Msg("failed to close slave DB")
			}
		}
	}

	// Close Kafka producer and consumer clients.
	if p != nil {
		if err := p.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
		}
	}
	if c != nil {
		if err := c.Client.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
		}
	}
}
