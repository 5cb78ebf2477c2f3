package configfx

import (
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/jacentio/salestrack/internal/config"
)

var Module = fx.Options(
	fx.Provide(provideConfig, provideLogger),
	fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
		return &fxevent.SlogLogger{Logger: logger}
	}),
)

func provideConfig() (config.Config, error) {
	return config.Load()
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger := cfg.Logger()
	slog.SetDefault(logger)
	return logger
}
