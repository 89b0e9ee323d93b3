package app

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

	"github.com/redis/go-redis/v9"

	"course-portal/internal/config"
	"course-portal/internal/database"
	"course-portal/internal/event"
	"course-portal/internal/flags"
	"course-portal/internal/handler"
	"course-portal/internal/middleware"
	"course-portal/internal/repository"
	"course-portal/internal/router"
	"course-portal/internal/service"
	"course-portal/internal/storage"
	"course-portal/internal/websocket"
)

const (
	durableNamespace = "portal:"
	sessionNamespace = "portal:session:"
	sessionRecordTTL = 24 * time.Hour
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.cleanup()
		}
	}()

	stores, err := a.openStores(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	hasher, err := service.NewPasswordHasher(cfg.PasswordHashScheme, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	flagProvider := flags.NewFileProvider(cfg.FlagsFile)
	bus := event.NewBus()

	auditService := service.NewAuditService(repository.NewAuditRepository(stores.durable), nil)
	ledgerService := service.NewLedgerService(
		repository.NewLedgerRepository(stores.durable),
		auditService,
		service.LedgerPolicy{Threshold: cfg.LockoutThreshold, Window: cfg.LockoutWindow, Duration: cfg.LockoutDuration},
		nil,
	)
	sessionService := service.NewSessionService(
		repository.NewSessionRepository(stores.sessions, stores.durable),
		service.SessionPolicy{IdleTimeout: cfg.IdleTimeout, ActivityThrottle: cfg.ActivityThrottle},
		nil,
	)
	credentialService, err := service.NewCredentialService(repository.NewUserRepository(stores.durable), hasher, auditService, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential service: %w", err)
	}

	authService := service.NewAuthService(service.AuthDeps{
		Credentials: credentialService,
		Ledger:      ledgerService,
		Sessions:    sessionService,
		Audit:       auditService,
		Flags:       flagProvider,
		Bus:         bus,
	})

	catalogService := service.NewCatalogService(
		service.NewCatalogFetcher(cfg.CatalogSource, &http.Client{Timeout: cfg.CatalogTimeout}),
		repository.NewCatalogRepository(stores.durable),
		flagProvider,
		service.CatalogPolicy{Timeout: cfg.CatalogTimeout, CacheTTL: cfg.CatalogCacheTTL},
		nil,
	)

	issuer := service.NewTokenIssuer(cfg.TokenSecret, cfg.RememberTTL, nil)
	hub := websocket.NewHub(bus, cfg.CORSOrigins)
	watchdog := service.NewWatchdog(authService, sessionService, cfg.IdleCheckInterval)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	a.cleanupFuncs = append(a.cleanupFuncs, bgCancel)

	go hub.Run(bgCtx)
	go watchdog.Run(bgCtx)
	go func() {
		if err := flagProvider.Watch(bgCtx); err != nil {
			slog.Warn("feature flag watcher stopped", "error", err)
		}
	}()

	appRouter := router.New(cfg, issuer, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Security: handler.NewSecurityHandler(authService),
		Catalog:  handler.NewCatalogHandler(catalogService),
		Session:  handler.NewSessionHandler(authService),
		Flags:    handler.NewFlagsHandler(flagProvider),
		WS:       handler.NewWSHandler(hub),
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	slog.Info("application ready",
		"durable_store", cfg.DurableStore,
		"session_store", cfg.SessionStore,
		"hash_scheme", cfg.PasswordHashScheme,
		"catalog_source", cfg.CatalogSource,
	)

	ok = true
	return a, nil
}

type stores struct {
	durable  storage.Store
	sessions storage.Store
}

// openStores builds the durable and session scopes. A single redis client
// is shared when both scopes use redis.
func (a *App) openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	var (
		out         stores
		redisClient *redis.Client
	)

	getRedis := func() (*redis.Client, error) {
		if redisClient != nil {
			return redisClient, nil
		}
		client, err := storage.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisClient = client
		a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = client.Close() })
		return client, nil
	}

	switch cfg.DurableStore {
	case config.StoreFile:
		fileStore, err := storage.NewFileStore(cfg.StateDir)
		if err != nil {
			return out, fmt.Errorf("failed to initialize file store: %w", err)
		}
		out.durable = fileStore
	case config.StoreSQLite:
		sqliteStore, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return out, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = sqliteStore.Close() })
		out.durable = sqliteStore
	case config.StoreRedis:
		client, err := getRedis()
		if err != nil {
			return out, err
		}
		out.durable = storage.NewRedisStore(client, durableNamespace, 0)
	case config.StorePostgres:
		slog.Info("connecting to PostgreSQL")
		db, err := database.Open(ctx, database.Options{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			return out, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.cleanupFuncs = append(a.cleanupFuncs, db.Close)
		out.durable = storage.NewPostgresStore(db.Pool)
	default:
		return out, fmt.Errorf("unsupported durable store %q", cfg.DurableStore)
	}

	switch cfg.SessionStore {
	case config.StoreRedis:
		client, err := getRedis()
		if err != nil {
			return out, err
		}
		out.sessions = storage.NewRedisStore(client, sessionNamespace, sessionRecordTTL)
	default:
		out.sessions = storage.NewMemoryStore()
	}

	return out, nil
}

// Handler exposes the routed handler without starting the listener.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.cleanup()
	slog.Info("server stopped")
	return nil
}

// Close releases background workers and store connections.
func (a *App) Close() {
	a.cleanup()
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}
