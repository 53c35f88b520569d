// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dagaz/internal/api"
	"github.com/starford/dagaz/internal/diary"
	"github.com/starford/dagaz/internal/inbox"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/llm"
	"github.com/starford/dagaz/internal/notion"
	"github.com/starford/dagaz/internal/sse"
	"github.com/starford/dagaz/internal/transcribe"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("timezone", cfg.Diary.Timezone),
		slog.String("journal_path", cfg.Journal.Path),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Processing journal.
	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	defer db.Close()

	// SSE broker for the activity stream.
	broker := sse.NewBroker()
	defer broker.Close()

	// Build the diary pipeline.
	svc := newService(cfg, db, broker, logger)

	var transcriber transcribe.Transcriber
	if cfg.Transcribe.Enabled() {
		transcriber = transcribe.NewHTTPClient(transcribe.Config{
			Endpoint: cfg.Transcribe.Endpoint,
			APIKey:   cfg.Transcribe.APIKey,
			Model:    cfg.Transcribe.Model,
			Timeout:  cfg.Transcribe.Timeout(),
		})
	}

	apiRouter := api.NewRouter(svc, transcriber, cfg.Transcribe.Language,
		cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start inbox watcher.
	if cfg.Inbox.Enabled {
		provider, err := inbox.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		g.Go(func() error {
			return inbox.Watch(gCtx, provider, provider.Root(), svc, logger)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunDedupe runs one deduplication batch and exits.
func RunDedupe(ctx context.Context, cfg *Config) error {
	logger := newCLILogger(cfg)
	svc := newService(cfg, nil, nil, logger)
	res, err := svc.Dedupe(ctx)
	if err != nil {
		return err
	}
	logger.Info("dedupe finished",
		slog.Int("merged_count", res.MergedCount),
		slog.Int("deleted_count", res.DeletedCount))
	return nil
}

// RunRepair resyncs date properties with canonical titles and exits.
func RunRepair(ctx context.Context, cfg *Config) error {
	logger := newCLILogger(cfg)
	svc := newService(cfg, nil, nil, logger)
	fixed, err := svc.RepairDates(ctx)
	if err != nil {
		return err
	}
	logger.Info("repair finished", slog.Int("fixed_count", fixed))
	return nil
}

func newService(cfg *Config, db *journal.DB, events diary.EventPublisher, logger *slog.Logger) *diary.Service {
	store := notion.NewClient(notion.Config{
		BaseURL:    cfg.Notion.BaseURL,
		Token:      cfg.Notion.Token,
		DatabaseID: cfg.Notion.DatabaseID,
		Version:    cfg.Notion.Version,
		Timeout:    cfg.Notion.Timeout(),
	})
	client := llm.NewHTTPClient(llm.Config{
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout(),
	})

	opts := []diary.ServiceOption{}
	if db != nil {
		opts = append(opts, diary.WithJournal(db))
	}
	if events != nil {
		opts = append(opts, diary.WithEvents(events))
	}
	return diary.NewService(store, client, cfg.Diary.Location(), logger, opts...)
}

func newCLILogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}
