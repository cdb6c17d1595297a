package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/policy-api/internal/config"
	"github.com/rpattn/policy-api/internal/db"
	"github.com/rpattn/policy-api/internal/ingestion"
	"github.com/rpattn/policy-api/internal/insights"
	appmiddleware "github.com/rpattn/policy-api/internal/middleware"
	"github.com/rpattn/policy-api/internal/policies"
	"github.com/rpattn/policy-api/internal/repository"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.InitLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Create repositories
	policyRepo := repository.NewPolicyRepository(conn.Pool)
	opRepo := repository.NewOperationRepository(conn.Pool)

	// Create services and handlers
	ingestionHandler := ingestion.NewHTTPHandler(ingestion.NewService(policyRepo, opRepo, logger))
	policyHandler := policies.NewHandler(policyRepo, opRepo, logger)

	var modelClient insights.ModelClient
	if cfg.Anthropic.Key != "" {
		modelClient = insights.NewAnthropicClient(cfg.Anthropic.Key, cfg.Anthropic.Model, int64(cfg.Anthropic.MaxTokens))
		logger.Info("insight generation backed by model", zap.String("model", cfg.Anthropic.Model))
	} else {
		logger.Info("no model key configured, insights use the deterministic fallback")
	}
	insightsHandler := insights.NewHTTPHandler(insights.NewService(policyRepo, modelClient, logger), logger)

	// Router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(appmiddleware.Logging(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := conn.Pool.Ping(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodPost, "/upload", ingestionHandler)
	router.Get("/policies", policyHandler.List)
	router.Get("/policies/summary", policyHandler.Summary)
	router.Get("/policies/export", policyHandler.Export)
	router.Get("/operations/{operationID}", policyHandler.GetOperation)
	router.Method(http.MethodGet, "/insights", insightsHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
