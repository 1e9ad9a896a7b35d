package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/cadvault/internal/handler"
	"github.com/yourorg/cadvault/internal/infrastructure/logger"
	"github.com/yourorg/cadvault/internal/infrastructure/redis"
	"github.com/yourorg/cadvault/internal/observability/metrics"
	"github.com/yourorg/cadvault/internal/observability/tracing"
	"github.com/yourorg/cadvault/internal/repository"
	"github.com/yourorg/cadvault/internal/security"
	"github.com/yourorg/cadvault/internal/security/audit"
	"github.com/yourorg/cadvault/internal/security/auth"
	"github.com/yourorg/cadvault/internal/security/credentials"
	"github.com/yourorg/cadvault/internal/security/middleware"
	"github.com/yourorg/cadvault/internal/security/ratelimit"
	"github.com/yourorg/cadvault/internal/service"
	"github.com/yourorg/cadvault/internal/worker"
	"github.com/yourorg/cadvault/pkg/cache"
	"github.com/yourorg/cadvault/pkg/config"
	"github.com/yourorg/cadvault/pkg/database"
	"github.com/yourorg/cadvault/pkg/database/migrations"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting cadvault server",
		slog.String("environment", cfg.Environment),
		slog.String("resource_root", cfg.ResourceRoot),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, log, "cadvault", cfg.Environment)
	if err != nil {
		log.Warn("tracing disabled", slog.String("error", err.Error()))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer shutdownTracing(context.Background())

	// 4. Connect to PostgreSQL and run migrations
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.MigrateUp(pool.GetDB()); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Make sure the resource root exists
	if err := os.MkdirAll(cfg.ResourceRoot, 0o755); err != nil {
		log.Error("failed to create resource root", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Extraction result cache: Redis when configured, in-memory otherwise
	var (
		redisClient *redis.Client
		resultCache service.ResultCache
	)
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		resultCache = service.NewRedisResultCache(redisClient, log)
	} else {
		resultCache = service.NewMemoryResultCache(cache.New())
	}

	// 7. Initialize repositories
	userRepo := repository.NewPostgresUserRepository(pool.GetDB(), log)
	folderRepo := repository.NewPostgresFolderRepository(pool.GetDB(), log)

	// 8. Initialize security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	hasher := credentials.NewHasher()
	authorizer := security.NewAuthorizer(log)
	rateLimiter := ratelimit.NewLimiter(100, time.Minute)
	auditLogger := audit.NewLogger(log)

	// 9. Initialize services
	reconciler := service.NewReconciler(userRepo, folderRepo, cfg.ResourceRoot, log)
	folderService := service.NewFolderService(folderRepo, cfg.ResourceRoot, authorizer, log)
	fileService := service.NewFileService(cfg.ResourceRoot, resultCache, log)
	authService := service.NewAuthService(userRepo, hasher, tokenManager, log)
	userService := service.NewUserService(userRepo, folderRepo, folderService, reconciler, hasher, authorizer, log)

	// 10. Initialize handlers
	authHandler := handler.NewAuthHandler(authService, rateLimiter, log)
	folderHandler := handler.NewFolderHandler(folderService, log)
	userFolderHandler := handler.NewUserFolderHandler(folderService, fileService, log)
	fileHandler := handler.NewFileHandler(fileService, cfg.MaxUploadMB, log)
	userHandler := handler.NewUserHandler(userService, log)

	// 11. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/signup", authHandler.Signup)
	mux.HandleFunc("GET /api/auth/me", authHandler.Me)

	mux.HandleFunc("GET /api/folders", folderHandler.List)
	mux.HandleFunc("POST /api/folders", folderHandler.Create)
	mux.HandleFunc("GET /api/folders/{id}", folderHandler.Get)
	mux.HandleFunc("PUT /api/folders/{id}", folderHandler.Rename)
	mux.HandleFunc("DELETE /api/folders/{id}", folderHandler.Delete)

	mux.HandleFunc("GET /api/user-folder", userFolderHandler.Status)
	mux.HandleFunc("POST /api/user-folder", userFolderHandler.Create)
	mux.HandleFunc("GET /api/user-folder/files", userFolderHandler.Files)
	mux.HandleFunc("GET /api/user-folder/tree", userFolderHandler.Tree)
	mux.HandleFunc("POST /api/user-folder/extract-data-from-file", userFolderHandler.ExtractStored)

	mux.HandleFunc("POST /api/upload", fileHandler.Upload)
	mux.HandleFunc("POST /api/extract-data", fileHandler.Extract)
	mux.HandleFunc("POST /api/transfer-files", fileHandler.Transfer)

	// Registration order matters: the literal segment must come before the
	// {id} routes match it.
	mux.HandleFunc("GET /api/users/users-with-folders", userHandler.UsersWithFolders)
	mux.HandleFunc("GET /api/users", userHandler.List)
	mux.HandleFunc("POST /api/users", userHandler.Create)
	mux.HandleFunc("GET /api/users/{id}", userHandler.Get)
	mux.HandleFunc("PUT /api/users/{id}", userHandler.Update)
	mux.HandleFunc("DELETE /api/users/{id}", userHandler.Delete)
	mux.HandleFunc("PUT /api/users/{id}/password", authHandler.ChangePassword)

	mux.Handle("/metrics", promhttp.Handler())

	// Health and readiness endpoints (no auth required)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> audit -> rate limit -> JWT -> CORS
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.AuditMiddleware(auditLogger)(
				middleware.RateLimitMiddleware(rateLimiter, log)(
					middleware.JWTMiddleware(tokenManager, log)(handlerWithCORS),
				),
			),
		),
		log,
	)
	instrumented := otelhttp.NewHandler(rootHandler, "cadvault")

	// 12. Start reconcile worker in background
	reconcileWorker := worker.NewReconcileWorker(
		reconciler,
		log,
		time.Duration(cfg.ReconcileIntervalMinutes)*time.Minute,
	)
	go reconcileWorker.Start(ctx)

	// 13. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      instrumented,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("reconcile_interval_minutes", cfg.ReconcileIntervalMinutes),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop reconcile worker
	rateLimiter.Stop()
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
