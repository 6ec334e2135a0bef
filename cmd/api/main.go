package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/BradenHooton/gatehouse/internal/auth"
	"github.com/BradenHooton/gatehouse/internal/background"
	"github.com/BradenHooton/gatehouse/internal/config"
	"github.com/BradenHooton/gatehouse/internal/counterstore"
	"github.com/BradenHooton/gatehouse/internal/database"
	"github.com/BradenHooton/gatehouse/internal/handlers"
	"github.com/BradenHooton/gatehouse/internal/middleware"
	"github.com/BradenHooton/gatehouse/internal/models"
	"github.com/BradenHooton/gatehouse/internal/observability"
	"github.com/BradenHooton/gatehouse/internal/repositories"
	"github.com/BradenHooton/gatehouse/internal/routes"
	"github.com/BradenHooton/gatehouse/internal/services"
	pkgauth "github.com/BradenHooton/gatehouse/pkg/auth"
	pkghttp "github.com/BradenHooton/gatehouse/pkg/http"
	pkglogger "github.com/BradenHooton/gatehouse/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// principalStore is what main needs from either principal repository
type principalStore interface {
	services.PrincipalRepository
	handlers.Pinger
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)
}

// counterStore is what main needs from any counter store
type counterStore interface {
	services.CounterStore
	handlers.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := pkglogger.New(os.Stdout, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("db_engine", cfg.Database.Engine),
		slog.String("counter_store", cfg.Counter.Store),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Principal store (and the pgx pool when running on postgres)
	principals, pgDB, closeDB, err := openPrincipalStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	// Attempt counters
	counters, purger, closeCounters, err := openCounterStore(ctx, cfg, pgDB)
	if err != nil {
		return err
	}
	defer closeCounters()

	hasher := pkgauth.NewHasher(cfg.Login.BcryptCost)
	logger.Info("password hasher ready", slog.Int("bcrypt_cost", hasher.Cost()))
	auditLogger := pkglogger.NewAuditLogger(logger)

	if err := ensureBootstrapPrincipal(ctx, cfg.Bootstrap, cfg.Server.Env, principals, hasher, auditLogger, logger); err != nil {
		logger.Error("failed to ensure bootstrap principal", slog.Any("error", err))
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	if sized, ok := counters.(interface{ Len() int }); ok {
		metrics.ObserveCounterEntries(sized.Len)
	}

	tracker := services.NewAttemptTracker(counters, services.AttemptTrackerConfig{
		Limit:     cfg.Login.AttemptLimit,
		Lockout:   cfg.Login.LockoutDuration,
		KeyPrefix: cfg.Counter.KeyPrefix,
	})
	authenticator := services.NewAuthenticator(principals, hasher, logger)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Login.TimingBaseDelay,
		RandomDelay: cfg.Login.TimingRandomDelay,
	})
	loginService := services.NewLoginService(
		tracker,
		authenticator,
		timingDelay,
		logger,
		auditLogger,
		metrics,
		services.LoginServiceConfig{FailOpen: cfg.Login.FailOpen()},
	)

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	router := routes.NewRouter(routes.Dependencies{
		Logger:         logger,
		IPConfig:       ipConfig,
		Env:            cfg.Server.Env,
		LoginRateLimit: middleware.RateLimitConfig{RequestsPerMinute: cfg.Login.HTTPRequestsPerMin},
		RequestTimeout: 60 * time.Second,
		LoginHandler:   handlers.NewLoginHandler(loginService, ipConfig, logger),
		HealthHandler:  handlers.NewHealthHandler(principals, counters),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Expired-counter purge; redis expires keys natively
	var cleanupManager *background.CleanupManager
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	if purger != nil {
		cleanupManager = background.NewCleanupManager(purger, logger, cfg.Counter.CleanupInterval)
		go cleanupManager.Start(cleanupCtx)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	cleanupCancel()
	if cleanupManager != nil {
		cleanupManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

func openPrincipalStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (principalStore, *database.DB, func(), error) {
	switch cfg.Database.Engine {
	case config.DBEnginePostgres:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return repositories.NewPrincipalRepository(db), db, db.Close, nil

	default:
		sqlDB, err := database.OpenSQLite(cfg.Database.Path, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.Migrate(ctx, sqlDB, config.DBEngineSQLite, logger); err != nil {
			sqlDB.Close()
			return nil, nil, nil, err
		}
		return repositories.NewSQLitePrincipalRepository(sqlDB), nil, func() { sqlDB.Close() }, nil
	}
}

// openCounterStore returns the store, an optional purger for the cleanup
// manager, and a close func.
func openCounterStore(ctx context.Context, cfg *config.Config, pgDB *database.DB) (counterStore, background.Purger, func(), error) {
	switch cfg.Counter.Store {
	case config.CounterStoreRedis:
		client, err := counterstore.NewRedisClient(cfg.Counter.RedisURL, cfg.Counter.RedisPassword)
		if err != nil {
			return nil, nil, nil, err
		}
		store := counterstore.NewRedisStore(client)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return store, nil, func() { client.Close() }, nil

	case config.CounterStorePostgres:
		if pgDB == nil {
			return nil, nil, nil, errors.New("postgres counter store requires the postgres database engine")
		}
		repo := repositories.NewAttemptCounterRepository(pgDB)
		return repo, repo, func() {}, nil

	default:
		store, err := counterstore.NewMemoryStore(cfg.Counter.MemoryCapacity, nil)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, func() {}, nil
	}
}

// ensureBootstrapPrincipal creates the first staff principal if BOOTSTRAP_USERNAME
// and BOOTSTRAP_PASSWORD are set
func ensureBootstrapPrincipal(
	ctx context.Context,
	cfg config.BootstrapConfig,
	env string,
	principals principalStore,
	hasher *pkgauth.Hasher,
	auditLogger *pkglogger.AuditLogger,
	logger *slog.Logger,
) error {
	if !cfg.Enabled() {
		logger.Info("no BOOTSTRAP_USERNAME or BOOTSTRAP_PASSWORD set, skipping bootstrap principal")
		return nil
	}

	if err := pkgauth.ValidatePassword(cfg.Password); err != nil {
		return fmt.Errorf("bootstrap password rejected: %w", err)
	}

	_, err := principals.FindByEitherIdentifier(ctx, cfg.Username, cfg.Username)
	if err == nil {
		logger.Info("bootstrap principal already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check for bootstrap principal: %w", err)
	}

	hash, err := hasher.Hash(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	p := &models.Principal{
		Username:     cfg.Username,
		Nickname:     cfg.Username,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      true,
	}
	if cfg.QQ != "" {
		qq := cfg.QQ
		p.QQ = &qq
	}

	created, err := principals.Create(ctx, p)
	if errors.Is(err, models.ErrConflict) {
		logger.Info("bootstrap principal already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create bootstrap principal: %w", err)
	}

	auditLogger.LogAccountAction(ctx, "principal_bootstrapped", created.ID, map[string]string{
		"is_staff":  strconv.FormatBool(created.IsStaff),
		"qq_linked": strconv.FormatBool(created.QQValue() != ""),
	})
	logger.Info("bootstrap principal created",
		slog.Int64("principal_id", created.ID),
		pkglogger.RedactedAttr("username", created.Username, env),
	)
	return nil
}
