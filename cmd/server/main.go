package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/modelgrid/connecthub/internal/api"
	"github.com/modelgrid/connecthub/internal/app"
	iauth "github.com/modelgrid/connecthub/internal/auth"
	"github.com/modelgrid/connecthub/internal/cache"
	"github.com/modelgrid/connecthub/internal/connectors"
	"github.com/modelgrid/connecthub/internal/database"
	"github.com/modelgrid/connecthub/internal/monitoring"
	"github.com/modelgrid/connecthub/internal/realtime"
	"github.com/modelgrid/connecthub/internal/services"
	"github.com/modelgrid/connecthub/internal/sweep"
	"github.com/modelgrid/connecthub/internal/vault"
	"github.com/modelgrid/connecthub/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("connecthub-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithComponent("bootstrap")
	for key := range generated {
		log.Info("generated runtime secret", zap.String("key", key))
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	cacheStore, closeCache := initialiseCache(cfg, db, log)
	defer closeCache()

	vaultCrypto, err := vault.NewCrypto([]byte(cfg.Vault.EncryptionKey))
	if err != nil {
		return fmt.Errorf("initialise vault crypto: %w", err)
	}
	credentialStore, err := vault.NewStore(db, vaultCrypto)
	if err != nil {
		return fmt.Errorf("initialise credential store: %w", err)
	}

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWT.Secret,
		iauth.WithIssuer(cfg.Auth.JWT.Issuer),
		iauth.WithTokenTTL(cfg.Auth.JWT.TTL),
	)
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	auditSvc, err := services.NewAuditService(db)
	if err != nil {
		return fmt.Errorf("initialise audit service: %w", err)
	}

	catalogSvc, err := services.NewCatalogService(db)
	if err != nil {
		return fmt.Errorf("initialise catalog service: %w", err)
	}

	hub := realtime.NewHub()

	connectionSvc, err := services.NewConnectionService(services.ConnectionServiceDeps{
		DB:               db,
		Vault:            credentialStore,
		Registry:         connectors.DefaultRegistry(),
		OAuth:            connectors.NewOAuth2Driver(nil),
		Cache:            cacheStore,
		Audit:            auditSvc,
		Events:           hub,
		OAuthRedirectURL: cfg.OAuth.RedirectURL,
	})
	if err != nil {
		return fmt.Errorf("initialise connection service: %w", err)
	}

	var sweeper *sweep.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = sweep.NewSweeper(connectionSvc, auditSvc,
			sweep.WithHealthInterval(cfg.Sweep.Interval),
			sweep.WithAuditRetentionDays(cfg.Sweep.AuditRetentionDays),
		)
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("start health sweep: %w", err)
		}
		defer func() {
			<-sweeper.Stop().Done()
		}()
	}

	health := monitoring.NewHealthManager()
	health.Register("database", monitoring.DatabaseProbe(db))
	health.Register("cache", monitoring.CacheProbe(cacheStore))
	if sweeper != nil {
		staleAfter := 4 * cfg.Sweep.Interval
		if staleAfter <= 0 {
			staleAfter = 2 * time.Minute
		}
		health.Register("sweep", monitoring.RecencyProbe(sweeper.LastHealthSweep, staleAfter))
	}

	router, err := api.NewRouter(api.Dependencies{
		JWT:         jwtService,
		Connections: connectionSvc,
		Catalog:     catalogSvc,
		Audit:       auditSvc,
		Cache:       cacheStore,
		Hub:         hub,
		Health:      health,
		RateLimit:   cfg.Server.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.DatabaseSettings())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithComponent("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(cfg.Database.Driver))))

	return db, nil
}

// initialiseCache prefers Redis when configured and falls back to the SQL
// database so rate limits and OAuth state survive without extra services.
func initialiseCache(cfg *app.Config, db *gorm.DB, log *zap.Logger) (cache.Store, func()) {
	if cfg.Cache.Redis.Enabled {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Address:  cfg.Cache.Redis.Address,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TLS:      cfg.Cache.Redis.TLS,
			Timeout:  cfg.Cache.Redis.Timeout,
		})
		if err != nil {
			log.Warn("redis unavailable; falling back to database cache", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
			return client, func() { _ = client.Close() }
		}
	}
	return cache.NewDatabaseStore(db), func() {}
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to acquire sql connection for close", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
