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

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/domain"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	passagerepo "github.com/kailas-cloud/ragdex/internal/repository/passage"
	"github.com/kailas-cloud/ragdex/internal/repository/vectorindex"
	chiTransport "github.com/kailas-cloud/ragdex/internal/transport/chi"
	"github.com/kailas-cloud/ragdex/internal/usecase/lexical"
	"github.com/kailas-cloud/ragdex/internal/usecase/provider"
	raguc "github.com/kailas-cloud/ragdex/internal/usecase/rag"
	"github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
	"github.com/kailas-cloud/ragdex/internal/version"
)

func main() {
	// Load configuration based on ENV
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

	logger.Info("Starting ragdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_dir", cfg.Index.Dir),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	// Register domain metrics explicitly (no init())
	metrics.RegisterProviderMetrics()
	metrics.RegisterPipelineMetrics()

	// Vector index — loads persisted state or starts empty
	index, err := vectorindex.Open(cfg.Index.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to open vector index", zap.Error(err))
	}
	index.WithOverfetch(cfg.Index.OverfetchFactor)

	// Passage corpus — optional snapshot load
	corpus := passagerepo.New()
	if cfg.Corpus.SnapshotPath != "" {
		n, err := corpus.LoadSnapshot(cfg.Corpus.SnapshotPath)
		if err != nil {
			logger.Fatal("Failed to load corpus snapshot", zap.Error(err))
		}
		logger.Info("Loaded corpus snapshot",
			zap.String("path", cfg.Corpus.SnapshotPath),
			zap.Int("passages", n),
		)
	}

	gateway := provider.NewGateway(cfg, logger)

	// Vectorize snapshot passages the index has not seen yet. Needs a
	// configured key for the embedding vendor; skipped otherwise.
	ctx := logpkg.ContextWithLogger(context.Background(), logger)
	if err := syncIndex(ctx, gateway, corpus, index, logger); err != nil {
		logger.Fatal("Failed to index corpus", zap.Error(err))
	}

	// Use case services
	lexicalSvc := lexical.NewService(corpus)
	retrievalSvc := retrieval.New(index, lexicalSvc, corpus, cfg.RAG)
	ragSvc := raguc.New(retrievalSvc, cfg.RAG)

	// Create chi server
	server := chiTransport.NewServer(ragSvc, retrievalSvc, &gatewayClients{gateway}, cfg.RAG, logger).
		WithHealth(func() map[string]any {
			return map[string]any{
				"status":   "healthy",
				"vectors":  index.Count(),
				"passages": corpus.Count(),
			}
		})

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// gatewayClients adapts the provider gateway to the transport's client
// factory interface.
type gatewayClients struct {
	gw *provider.Gateway
}

func (g *gatewayClients) Client(ctx context.Context, vendor, apiKey string) (chiTransport.ProviderClient, error) {
	return g.gw.Client(ctx, vendor, apiKey)
}

func (g *gatewayClients) EmbeddingClient(ctx context.Context, apiKey string) (chiTransport.ProviderClient, error) {
	return g.gw.EmbeddingClient(ctx, apiKey)
}

// syncIndex embeds and indexes corpus passages missing from the vector index.
func syncIndex(ctx context.Context, gateway *provider.Gateway, corpus *passagerepo.Repo, index *vectorindex.Store, logger *zap.Logger) error {
	var missing []domain.Passage
	for _, p := range corpus.All(ctx) {
		if !index.Contains(p.ID) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	embedder, err := gateway.EmbeddingClient(ctx, "")
	if err != nil {
		// No configured key for the embedding vendor — serve what the
		// persisted index already has.
		logger.Warn("Skipping corpus indexing, no embedding credentials",
			zap.Int("unindexed", len(missing)), zap.Error(err))
		return nil
	}

	texts := make([]string, len(missing))
	ids := make([]string, len(missing))
	metadata := make([]map[string]any, len(missing))
	for i, p := range missing {
		texts[i] = p.Title + "\n" + p.Description + "\n" + p.Content
		ids[i] = p.ID
		metadata[i] = p.Metadata
	}

	vectors, err := embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}
	if err := index.Add(vectors, ids, metadata); err != nil {
		return fmt.Errorf("index corpus: %w", err)
	}

	logger.Info("Indexed corpus passages", zap.Int("count", len(missing)))
	return nil
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

			// Set X-Request-ID in response header
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
