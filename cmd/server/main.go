// AgustoGPT research gateway server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agustogpt/research-gateway/internal/agent"
	"github.com/agustogpt/research-gateway/internal/api"
	"github.com/agustogpt/research-gateway/internal/cache"
	"github.com/agustogpt/research-gateway/internal/chatsocket"
	"github.com/agustogpt/research-gateway/internal/clientapi"
	"github.com/agustogpt/research-gateway/internal/config"
	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/agustogpt/research-gateway/internal/middleware"
	"github.com/agustogpt/research-gateway/internal/session"
	"github.com/agustogpt/research-gateway/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"storage", cfg.Storage.Backend,
		"client_api", cfg.ClientAPIBase(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	chats, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize chat storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := chats.Close(); closeErr != nil {
			slog.Error("Failed to close chat storage", "error", closeErr)
		}
	}()

	if _, disabled := chats.(store.Disabled); disabled {
		slog.Info("Chat persistence disabled")
	} else if err := chats.Ping(ctx); err != nil {
		slog.Warn("Chat storage health check failed", "error", err)
	} else {
		slog.Info("Chat storage connected", "backend", cfg.Storage.Backend)
	}

	profileCache := openCache(ctx, cfg.Cache)
	if closer, ok := profileCache.(interface{ Close() error }); ok {
		defer func() {
			if closeErr := closer.Close(); closeErr != nil {
				slog.Warn("Failed to close profile cache", "error", closeErr)
			}
		}()
	}

	// Initialize services.
	profiles := clientapi.NewResolver(
		clientapi.NewClient(cfg.ClientAPIBase(), cfg.HTTPTimeout),
		profileCache, cfg.Cache.ProfileTTL, logger,
	)
	svc := agent.NewService(agent.NewClient(cfg.AgentAPIURL, cfg.HTTPTimeout), profiles, chats, agent.Options{
		IncludeHistory: cfg.IncludeChatHistory,
		DebugQueries:   cfg.DebugQueries,
		QueryLog:       cfg.Storage.QueryLogEnabled,
	})
	sessions := session.NewManager()
	sockets := chatsocket.NewRegistry()

	// Initialize handlers.
	chatHandler := agent.NewHandler(svc, cfg)
	defer chatHandler.Close()
	baseHandler := api.NewHandler(cfg, chats, profiles)
	wsOrigin := cfg.FrontendURL
	if wsOrigin == "" {
		wsOrigin = "*"
	}
	wsHandler := chatsocket.NewHandler(svc, chatHandler.RateLimiter(), sockets, wsOrigin, cfg.IsDevelopment(), cfg.MaxRequestBodySize)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(sessions.Middleware(cfg.IsDevelopment()))
	r.Use(credential.Middleware(credential.MiddlewareOptions{
		Override: session.ManualOverride,
		EnvToken: cfg.FallbackToken,
		IsDev:    cfg.IsDevelopment(),
	}))

	baseHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	// WriteTimeout must exceed the agent call timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		interval := sweepInterval(cfg.SessionTTL)
		slog.Info("Session sweeper started", "session_ttl", cfg.SessionTTL, "interval", interval)
		sessions.StartSweeper(gctx, cfg.SessionTTL, interval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		sockets.CloseAll("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// openCache prefers Redis when configured and falls back to the in-process cache.
func openCache(ctx context.Context, cfg config.CacheConfig) cache.ProfileCache {
	if cfg.RedisAddr == "" {
		return cache.NewMemory()
	}
	rc, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory profile cache", "addr", cfg.RedisAddr, "error", err)
		return cache.NewMemory()
	}
	slog.Info("Profile cache connected", "addr", cfg.RedisAddr)
	return rc
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}
