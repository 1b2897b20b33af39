package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/LightDreamhs/MyPetShop3.0/internal/cache"
	"github.com/LightDreamhs/MyPetShop3.0/internal/config"
	"github.com/LightDreamhs/MyPetShop3.0/internal/httpapi"
	"github.com/LightDreamhs/MyPetShop3.0/internal/logging"
	"github.com/LightDreamhs/MyPetShop3.0/internal/service"
	"github.com/LightDreamhs/MyPetShop3.0/internal/store"
	"github.com/LightDreamhs/MyPetShop3.0/internal/store/memory"
	pgstore "github.com/LightDreamhs/MyPetShop3.0/internal/store/postgres"
	"github.com/LightDreamhs/MyPetShop3.0/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Development(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	deps, err := openBackends(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("open backends", zap.Error(err))
	}

	pinHash, err := service.HashPIN(cfg.ManagerPIN)
	if err != nil {
		logger.Fatal("hash manager pin", zap.Error(err))
	}

	client := upstream.New(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, logger)
	svc := service.New(client, deps.repo, deps.carts, deps.guard, logger, service.Options{
		GuardTTL:       cfg.GuardTTL,
		ManagerPINHash: pinHash,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), svc)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout*3 + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("console backend listening",
			zap.String("addr", cfg.Address()),
			zap.String("upstream", cfg.UpstreamBaseURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	deps.close(logger)
	logger.Info("server stopped")
}

type backends struct {
	repo    store.Repository
	carts   cache.CartStore
	guard   cache.SubmissionGuard
	closers []func() error
}

func (b backends) close(logger *zap.Logger) {
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}
}

// openBackends picks Postgres for the journal when DATABASE_URL is set and
// Redis for carts and submission keys when REDIS_ADDR is set, falling back
// to in-memory stores otherwise. A configured Postgres that cannot be
// reached is fatal; an unreachable Redis is not.
func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (backends, error) {
	var deps backends

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return backends{}, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return backends{}, fmt.Errorf("migrate journal schema: %w", err)
		}
		deps.repo = pg
		deps.closers = append(deps.closers, pg.Close)
		logger.Info("repository: postgres")
	} else {
		deps.repo = memory.New()
		logger.Info("repository: in-memory")
	}

	deps.carts = cache.NewMemoryCartStore()
	deps.guard = cache.NewMemoryGuard()
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		carts := cache.NewRedisCartStore(client, cfg.CartTTL)
		if err := carts.Ping(ctx); err != nil {
			_ = client.Close()
			logger.Warn("redis unavailable, using in-memory carts", zap.Error(err))
		} else {
			deps.carts = carts
			deps.guard = cache.NewRedisGuard(client)
			deps.closers = append(deps.closers, client.Close)
			logger.Info("cache: redis")
		}
	} else {
		logger.Info("cache: in-memory")
	}

	return deps, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.UpstreamBaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL must be set")
	}
	// The manager PIN is optional; when set it guards destructive deletes.
	if cfg.ManagerPIN == "" {
		return nil
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"121212": true, "112233": true, "123123": true, "520520": true,
		"888888": true, "666666": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
