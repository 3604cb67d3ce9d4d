package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bananaslides/internal/assembler"
	rediscache "bananaslides/internal/cache/redis"
	"bananaslides/internal/config"
	"bananaslides/internal/extractor"
	"bananaslides/internal/handler"
	"bananaslides/internal/inpaint"
	"bananaslides/internal/logging"
	"bananaslides/internal/notify/noop"
	"bananaslides/internal/notify/ses"
	"bananaslides/internal/port"
	"bananaslides/internal/repository/postgres"
	"bananaslides/internal/router"
	"bananaslides/internal/service"
	s3storage "bananaslides/internal/storage/s3"
	"bananaslides/internal/style"
	"bananaslides/internal/style/ai"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "bananaslides"})
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	taskRepo := postgres.NewTaskRepo(db)

	// Initialize storage
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Optional status mirror
	var cache port.StatusCache
	var mirror handler.Pinger
	if cfg.Redis.Addr != "" {
		m, err := rediscache.NewStatusMirror(&cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer m.Close()
		cache, mirror = m, m
		log.Info().Str("addr", cfg.Redis.Addr).Msg("status mirror enabled")
	}

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}

	// Pipeline stages
	var styleAI port.StyleInferrer
	if cfg.Providers.Style.Configured() || cfg.Providers.Style.APIKey != "" {
		styleAI = ai.NewInferrer(&cfg.Providers.Style)
	}
	styles := style.NewInferrer(styleAI, log)
	pipeline := service.Pipeline{
		Extractor:     extractor.NewFromConfig(&cfg.Providers, &cfg.Conversion, log),
		Reconstructor: inpaint.NewFromConfig(&cfg.Providers, &cfg.Conversion, log),
		Assembler:     assembler.New(styles, log),
		Styles:        styles,
	}

	queue := service.NewTaskQueueWorker(service.TaskQueueConfig{
		Concurrency: cfg.Queue.MaxTasks,
		Backlog:     cfg.Queue.Backlog,
	}, log)

	conversionSvc := service.NewConversionService(taskRepo, cache, s3Client, notifier, pipeline, queue, service.OrchestratorConfig{
		PageBucket:      cfg.S3.PageBucket,
		ArtifactBucket:  cfg.S3.ArtifactBucket,
		PageConcurrency: cfg.Queue.PageConcurrency,
		Retention:       cfg.Queue.Retention,
		PresignExpiry:   cfg.S3.PresignExpiry,
		Defaults:        cfg.Conversion.Defaults(),
	}, log)

	if _, err := conversionSvc.Recover(context.Background()); err != nil {
		return fmt.Errorf("recovering interrupted tasks: %w", err)
	}

	// Initialize handlers
	conversionH := handler.NewConversionHandler(conversionSvc)
	healthH := handler.NewHealthHandler(db, mirror)

	// Setup router
	r := router.Setup(log, cfg.CORS.AllowedOrigins, conversionH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Start(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		wg.Wait()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	wg.Wait()
	if err := conversionSvc.Flush(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("task state flush")
	}
	return nil
}

func newNotifier(cfg *config.Config, log zerolog.Logger) (port.Notifier, error) {
	switch cfg.Notify.Provider {
	case "ses":
		n, err := ses.NewSESNotifier(&cfg.Notify)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SES notifier: %w", err)
		}
		return n, nil
	case "", "noop":
		return noop.NewNoopNotifier(log), nil
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Notify.Provider)
	}
}
