package tui

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/app"
	"github.com/matheus3301/matrixtui/internal/tui/ui"
)

// Module provides the terminal renderer and the theme list, and feeds
// terminal keys to the coordinator.
var Module = fx.Module("tui",
	fx.Provide(
		provideRenderer,
		func(r *Renderer) app.Renderer { return r },
		fx.Annotate(ui.ThemeNames, fx.ResultTags(`name:"themes"`)),
	),
	fx.Invoke(registerLifecycle),
)

func provideRenderer(logger *zap.Logger) *Renderer {
	return New(nil, logger.Named("tui"))
}

func registerLifecycle(lc fx.Lifecycle, r *Renderer, c *app.Coordinator, sd fx.Shutdowner, logger *zap.Logger) {
	r.Attach(c.Queue())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			r.Start(func(err error) {
				if err != nil {
					logger.Error("terminal stopped", zap.Error(err))
				}
				_ = sd.Shutdown()
			})
			return nil
		},
		OnStop: func(_ context.Context) error {
			r.Stop()
			return nil
		},
	})
}
