package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/config"
)

// Params are the coordinator's dependencies as provided by fx. Archive and
// Renderer are optional.
type Params struct {
	fx.In

	Backend  backend.ChatBackend
	Config   *config.Store
	Archive  Archive  `optional:"true"`
	Renderer Renderer `optional:"true"`
	Themes   []string `name:"themes" optional:"true"`
	Bus      *bus.Bus
	Logger   *zap.Logger
}

// Module provides the coordinator and runs its loop for the lifetime of the
// fx application. Quitting from the UI shuts the application down.
var Module = fx.Module("app",
	fx.Provide(provideCoordinator),
	fx.Invoke(registerLifecycle),
)

func provideCoordinator(p Params) (*Coordinator, error) {
	return New(Options{
		Backend:  p.Backend,
		Config:   p.Config,
		Archive:  p.Archive,
		Renderer: p.Renderer,
		Themes:   p.Themes,
		Tick:     time.Second,
		Bus:      p.Bus,
		Logger:   p.Logger.Named("app"),
	})
}

func registerLifecycle(lc fx.Lifecycle, c *Coordinator, sd fx.Shutdowner, logger *zap.Logger) {
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(done)
				err := c.Run(context.Background())
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("coordinator stopped", zap.Error(err))
				}
				_ = sd.Shutdown()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			c.Stop()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			logger.Info("coordinator stopped")
			return nil
		},
	})
}
