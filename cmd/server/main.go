package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sujalbistaa/whispr/internal/config"
	routes "github.com/sujalbistaa/whispr/internal/http"
	"github.com/sujalbistaa/whispr/internal/inbox"
	"github.com/sujalbistaa/whispr/internal/logger"
	"github.com/sujalbistaa/whispr/internal/metrics"
	"github.com/sujalbistaa/whispr/internal/persist"
	"github.com/sujalbistaa/whispr/internal/store"
	"github.com/sujalbistaa/whispr/internal/suggest"
	"github.com/sujalbistaa/whispr/internal/ws"
)

func main() {
	// 1. Load configuration (.env is optional in production)
	cfg, foundEnv := config.Load()

	zl, err := logger.New(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	if !foundEnv {
		zl.Info("No .env file found, reading from environment")
	}

	// 2. Open storage
	ctx := context.Background()
	adapter, closeStorage, err := persist.Open(ctx, cfg.DatabaseURL, zl)
	if err != nil {
		zl.Fatal("Failed to open storage", zap.Error(err))
	}

	// 3. Load the store
	collector := metrics.NewCollector("whispr")
	st := store.New(persist.NewRepository(adapter),
		store.WithLogger(zl),
		store.WithMetrics(collector),
		store.WithLikeSessionTTL(cfg.LikeSessionTTL),
	)
	if err := st.Init(ctx); err != nil {
		zl.Fatal("Failed to load store", zap.Error(err))
	}

	// 4. Collaborators
	var collaborator suggest.Collaborator = suggest.Static{}
	if cfg.GeminiAPIKey != "" {
		collaborator = suggest.NewGeminiClient(suggest.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Logger:  zl,
			Metrics: collector,
		})
	} else {
		zl.Warn("API_KEY not set, suggestions and refinement are disabled")
	}

	streamer := ws.NewStreamer(ws.Config{
		Feed:          st,
		Interval:      cfg.WhisperInterval,
		HideDelay:     cfg.WhisperHideDelay,
		AllowedOrigin: cfg.CORSOrigin,
		Logger:        zl,
		Metrics:       collector,
	})

	// 5. Initialize Gin Router
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	stopRoutes := routes.SetupRoutes(router, routes.Deps{
		Store:      st,
		Inbox:      inbox.NewRouter(st, clock.New(), cfg.SentConfirmation),
		Suggest:    collaborator,
		Streamer:   streamer,
		Metrics:    collector,
		Logger:     zl,
		CORSOrigin: cfg.CORSOrigin,
	})

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		zl.Info("Server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("listen", zap.Error(err))
		}
	}()

	<-quit
	zl.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}
	stopRoutes()

	// Retry anything a failed write left behind before closing storage.
	if err := st.Flush(shutdownCtx); err != nil {
		zl.Error("Final flush failed", zap.Error(err))
	}
	st.Teardown()
	if err := closeStorage(); err != nil {
		zl.Warn("Failed to close storage", zap.Error(err))
	}

	zl.Info("Server exiting")
}
