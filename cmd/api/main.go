package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/healthwave/internal/application"
	appanalysis "github.com/bryanwahyu/healthwave/internal/application/analysis"
	appchat "github.com/bryanwahyu/healthwave/internal/application/chat"
	"github.com/bryanwahyu/healthwave/internal/config"
	"github.com/bryanwahyu/healthwave/internal/domain/analysis"
	"github.com/bryanwahyu/healthwave/internal/domain/conversation"
	"github.com/bryanwahyu/healthwave/internal/infra/ai/openai"
	"github.com/bryanwahyu/healthwave/internal/infra/ai/prompt"
	"github.com/bryanwahyu/healthwave/internal/infra/classifier"
	"github.com/bryanwahyu/healthwave/internal/infra/classifier/tfserving"
	"github.com/bryanwahyu/healthwave/internal/infra/db"
	mysqlp "github.com/bryanwahyu/healthwave/internal/infra/db/mysql"
	"github.com/bryanwahyu/healthwave/internal/infra/db/postgres"
	"github.com/bryanwahyu/healthwave/internal/infra/extract"
	"github.com/bryanwahyu/healthwave/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/healthwave/internal/infra/storage"
	"github.com/bryanwahyu/healthwave/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, analyses, turns, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	// models must be reachable before the service accepts traffic
	loader := tfserving.NewClient(cfg.Models.ServingURL, &http.Client{Timeout: cfg.Models.InferenceTimeout})
	models, err := classifier.Load(ctx, loader, map[analysis.ImageDomain]string{
		analysis.DomainLung:  cfg.Models.Lung,
		analysis.DomainBrain: cfg.Models.Brain,
	}, classifier.Options{
		Slots:   cfg.Models.InferenceSlots,
		Timeout: cfg.Models.InferenceTimeout,
		MaxEdge: cfg.Models.MaxImageEdge,
	})
	if err != nil {
		return fmt.Errorf("load models: %w", err)
	}
	logger.Info("models ready", "lung", cfg.Models.Lung, "brain", cfg.Models.Brain)

	var archive analysis.ImageArchive
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		archive = store
	} else {
		logger.Warn("minio endpoint not configured, scans are not archived")
	}

	scanScratch, err := application.NewScratch(cfg.Analysis.UploadDir, logger)
	if err != nil {
		return err
	}
	chatScratch, err := application.NewScratch(cfg.Chat.UploadDir, logger)
	if err != nil {
		return err
	}

	analysisSvc := &appanalysis.Service{
		Repo:           analyses,
		Classifier:     models,
		Detector:       analysis.FilenameDetector{},
		Archive:        archive,
		Scratch:        scanScratch,
		Clock:          application.SystemClock{},
		Logger:         logger.With("component", "analysis"),
		MaxUploadBytes: cfg.Analysis.MaxUploadBytes,
	}

	systemPrompt := cfg.Chat.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = prompt.GetSystemPrompt()
	}
	chatSvc := &appchat.Service{
		Repo:              turns,
		Client:            openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens),
		Extractors:        extract.Default(),
		Scratch:           chatScratch,
		Clock:             application.SystemClock{},
		Logger:            logger.With("component", "chat"),
		SystemPrompt:      systemPrompt,
		HistoryWindow:     cfg.Chat.HistoryWindow,
		MaxMessageChars:   cfg.Chat.MaxMessageChars,
		MaxExtractedChars: cfg.Chat.MaxExtractedChars,
		MaxUploadBytes:    cfg.Chat.MaxUploadBytes,
		Timeout:           cfg.Chat.Timeout,
	}

	maxUpload := max(cfg.Analysis.MaxUploadBytes, cfg.Chat.MaxUploadBytes)
	handler := httpserver.NewRouter(httpserver.Deps{
		Analysis: analysisSvc,
		Chat:     chatSvc,
		Metrics:  middleware.NewMetrics(),
		Logger:   logger,
		Checkers: map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: conn},
			"models":   models,
		},
		APIKeys:        cfg.Auth.APIKeys,
		Limiter:        middleware.NewRateLimiter(ctx, cfg.RateLimit.RequestsPerMinute),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxUploadBytes: maxUpload,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// graceful shutdown
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, analysis.Repository, conversation.Repository, error) {
	pool := db.Pool{MaxOpenConns: cfg.Database.MaxOpenConns, MaxIdleConns: cfg.Database.MaxIdleConns}

	switch cfg.Database.Driver {
	case "postgres":
		conn, err := postgres.Connect(ctx, cfg.PostgresDSN(), pool)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.EnsureSchema(ctx, conn); err != nil {
				conn.Close()
				return nil, nil, nil, err
			}
		}
		return conn, postgres.NewAnalysisRepository(conn), postgres.NewTurnRepository(conn), nil
	default:
		conn, err := mysqlp.Connect(ctx, cfg.MySQLDSN(), pool)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := mysqlp.EnsureSchema(ctx, conn); err != nil {
				conn.Close()
				return nil, nil, nil, err
			}
		}
		return conn, mysqlp.NewAnalysisRepository(conn), mysqlp.NewTurnRepository(conn), nil
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
