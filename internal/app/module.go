package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nexushq/nexus/internal/api"
	"github.com/nexushq/nexus/internal/auth"
	"github.com/nexushq/nexus/internal/bus"
	"github.com/nexushq/nexus/internal/config"
	"github.com/nexushq/nexus/internal/lock"
	"github.com/nexushq/nexus/internal/logging"
	"github.com/nexushq/nexus/internal/session"
	"github.com/nexushq/nexus/internal/state"
	"github.com/nexushq/nexus/internal/store"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Console     bool // tee logs to stderr; off for the TUI
}

// Module returns the fx module for the client core, composing all
// providers and lifecycle hooks. The TUI (or a headless frontend) is
// layered on top by the binary.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideCache,
			provideAPIClient,
			provideAuthMachine,
			provideIdentityProvider,
			provideAuthManager,
			provideStateStore,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.Load(session.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName, p.Console)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideCache(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAPIClient(cfg *config.Config, logger *zap.Logger) *api.Client {
	return api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Version: cfg.API.Version,
		Timeout: cfg.API.Timeout.Duration,
	}, logger)
}

func provideAuthMachine(b *bus.Bus) *auth.Machine {
	return auth.NewMachine(b)
}

func provideIdentityProvider(cfg *config.Config, logger *zap.Logger) auth.Provider {
	return auth.NewIdentityProvider(cfg.Identity.APIKey, logger)
}

func provideAuthManager(m *auth.Machine, provider auth.Provider, client *api.Client, db *store.DB, b *bus.Bus, logger *zap.Logger) *auth.Manager {
	return auth.NewManager(m, provider, client, db, b, logger)
}

func provideStateStore(client *api.Client, db *store.DB, b *bus.Bus, logger *zap.Logger) *state.Store {
	return state.New(client, db, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, st *state.Store, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := st.Hydrate(); err != nil {
				logger.Warn("cache hydration failed", zap.Error(err))
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			st.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
