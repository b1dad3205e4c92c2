// Package boot assembles the client from its parts.
package boot

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/app"
	"github.com/matheus3301/matrixtui/internal/archive"
	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/config"
	"github.com/matheus3301/matrixtui/internal/control"
	"github.com/matheus3301/matrixtui/internal/lock"
	"github.com/matheus3301/matrixtui/internal/logging"
	"github.com/matheus3301/matrixtui/internal/matrix"
	"github.com/matheus3301/matrixtui/internal/profile"
	"github.com/matheus3301/matrixtui/internal/store"
	"github.com/matheus3301/matrixtui/internal/tui"
)

// Params holds the resolved profile passed to the fx module.
type Params struct {
	Profile    string
	LogLevel   string
	SocketPath string // optional override for testing; empty = use default
}

// Module returns the client's supporting services: logging, the profile
// lock, config, the archive, the control socket and the Matrix backend.
// The coordinator and the renderer come from app.Module and tui.Module.
func Module(p Params) fx.Option {
	return fx.Module("boot",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideConfig,
			provideStore,
			provideArchive,
			func(e *archive.Engine) app.Archive { return e },
			provideBackend,
			provideControl,
		),
		fx.Invoke(registerLifecycle),
	)
}

// Client is the full interactive application.
func Client(p Params) fx.Option {
	return fx.Options(
		Module(p),
		app.Module,
		tui.Module,
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	return logging.New(profile.LogPath(p.Profile), p.Profile, logging.ParseLevel(p.LogLevel))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile), p.Profile)
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideConfig(p Params, _ *lock.Lock, logger *zap.Logger) (*config.Store, error) {
	return config.OpenStore(profile.ConfigPath(p.Profile), logger.Named("config"))
}

func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.ArchivePath(p.Profile)
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
		logger.Info("archive schema migrated", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("archive schema up to date", zap.Uint("version", result.Version))
	}
	logger.Info("archive opened", zap.String("path", dbPath))
	return db, nil
}

func provideArchive(db *store.DB, b *bus.Bus, logger *zap.Logger) *archive.Engine {
	return archive.NewEngine(db, b, logger.Named("archive"))
}

func provideBackend(p Params, logger *zap.Logger) backend.ChatBackend {
	return matrix.New(matrix.Options{
		CryptoDir: func(userID string) string {
			return filepath.Join(profile.Dir(p.Profile), "crypto", CryptoDirName(userID))
		},
		Logger: logger.Named("matrix"),
	})
}

func provideControl(p Params, b *bus.Bus, logger *zap.Logger) (*control.Server, error) {
	path := p.SocketPath
	if path == "" {
		path = profile.SocketPath(p.Profile)
	}
	return control.NewServer(path, b, logger.Named("control"))
}

// CryptoDirName maps a user id to a directory name.
func CryptoDirName(userID string) string {
	return strings.NewReplacer("@", "", ":", "_", "/", "_").Replace(userID)
}

func registerLifecycle(lc fx.Lifecycle, srv *control.Server, lk *lock.Lock, db *store.DB, engine *archive.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			engine.Start(context.Background())
			srv.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing archive", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
