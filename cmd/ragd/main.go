package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/main-salman/haqnow-sub003/internal/chunker"
	"github.com/main-salman/haqnow-sub003/internal/config"
	dbRedis "github.com/main-salman/haqnow-sub003/internal/db/redis"
	logpkg "github.com/main-salman/haqnow-sub003/internal/logger"
	"github.com/main-salman/haqnow-sub003/internal/metrics"
	analyticsrepo "github.com/main-salman/haqnow-sub003/internal/repository/analytics"
	chunksrepo "github.com/main-salman/haqnow-sub003/internal/repository/chunks"
	documentsrepo "github.com/main-salman/haqnow-sub003/internal/repository/documents"
	"github.com/main-salman/haqnow-sub003/internal/repository/embcache"
	chiTransport "github.com/main-salman/haqnow-sub003/internal/transport/chi"
	openaiTransport "github.com/main-salman/haqnow-sub003/internal/transport/openai"
	analyticsuc "github.com/main-salman/haqnow-sub003/internal/usecase/analytics"
	answeruc "github.com/main-salman/haqnow-sub003/internal/usecase/answer"
	askuc "github.com/main-salman/haqnow-sub003/internal/usecase/ask"
	embeddinguc "github.com/main-salman/haqnow-sub003/internal/usecase/embedding"
	healthuc "github.com/main-salman/haqnow-sub003/internal/usecase/health"
	ingestuc "github.com/main-salman/haqnow-sub003/internal/usecase/ingest"
	retrievaluc "github.com/main-salman/haqnow-sub003/internal/usecase/retrieval"
	"github.com/main-salman/haqnow-sub003/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting RAG engine",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("embedding_model", cfg.Models.Embedding.Model),
		zap.String("generation_model", cfg.Models.Generation.Model),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Store not ready", zap.Error(err))
	}
	logger.Info("Connected to store")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRAGMetrics()

	// Repositories
	backoff := time.Duration(cfg.Database.RetryBackoffMS) * time.Millisecond
	chunkRepo := chunksrepo.New(store, cfg.Models.Embedding.Dimensions, backoff)
	docRepo := documentsrepo.New(store)
	statsRepo := analyticsrepo.New(store)

	if err := chunkRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to create chunk index", zap.Error(err))
	}

	// Embedder chain: OpenAI runtime -> cache -> concurrency-gated service
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Models.APIKey,
		BaseURL:    cfg.Models.BaseURL,
		Model:      cfg.Models.Embedding.Model,
		Dimensions: cfg.Models.Embedding.Dimensions,
		Logger:     logger,
	})
	cachedEmbedder := embcache.New(
		baseEmbedder, store, cfg.Models.Embedding.Model, metrics.EmbeddingCacheTotal, logger,
	)
	embeddingSvc := embeddinguc.New(embeddingProvider{cachedEmbedder, baseEmbedder}, embeddinguc.Config{
		Timeout:       time.Duration(cfg.Models.Embedding.TimeoutSec) * time.Second,
		MaxConcurrent: cfg.Models.Embedding.MaxConcurrent,
		MaxBatchSize:  cfg.Models.Embedding.MaxBatchSize,
	}, logger)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.Models.APIKey,
		BaseURL:     cfg.Models.BaseURL,
		Model:       cfg.Models.Generation.Model,
		Timeout:     time.Duration(cfg.Models.Generation.TimeoutSec) * time.Second,
		MaxTokens:   cfg.Models.Generation.MaxTokens,
		Temperature: cfg.Models.Generation.Temperature,
		Logger:      logger,
	})

	// Use case services
	chk := chunker.New(cfg.Chunking.TargetChars, cfg.Chunking.OverlapPercent, cfg.Chunking.ToleranceChars)

	ingestSvc := ingestuc.New(
		docRepo, chk, embeddingSvc, chunkRepo,
		cfg.Models.Embedding.Model, cfg.Ingest.Workers, logger,
	)
	retrievalSvc := retrievaluc.New(embeddingSvc, chunkRepo, retrievaluc.Config{
		DefaultTopK:   cfg.Retrieval.DefaultTopK,
		MaxTopK:       cfg.Retrieval.MaxTopK,
		MinSimilarity: cfg.Retrieval.MinSimilarity,
	})
	answerSvc := answeruc.New(generator, logger)
	statsSvc := analyticsuc.New(statsRepo, cfg.Analytics.RecentLimit, cfg.Analytics.MostCitedLimit, logger)

	healthSvc := healthuc.New(
		store, embeddingSvc, generator,
		time.Duration(cfg.Health.CheckIntervalSec)*time.Second,
		time.Duration(cfg.Health.ProbeTimeoutSec)*time.Second,
		logger,
	)
	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go healthSvc.Run(healthCtx)

	askSvc := askuc.New(healthSvc, retrievalSvc, answerSvc, statsSvc, logger)

	// HTTP server
	server := chiTransport.NewServer(askSvc, ingestSvc, docRepo, chunkRepo, healthSvc, statsSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stopHealth()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embeddingProvider pairs the cached embedder with the base runtime's health
// probe: the cache never answers a health check.
type embeddingProvider struct {
	*embcache.CachedEmbedder
	health *openaiTransport.Embedder
}

func (p embeddingProvider) HealthCheck(ctx context.Context) error {
	return p.health.HealthCheck(ctx)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
