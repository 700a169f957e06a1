package bootstrap

import (
	"schedcore/internal/pkg/config"
	"schedcore/internal/usecase/queries"

	"go.uber.org/fx"
)

var ConfigModule = fx.Module("config",
	fx.Provide(
		config.LoadConfig,
		func(cfg config.Config) config.RedisConfig { return cfg.Redis },
		func(cfg config.Config) config.ProviderConfig { return cfg.Provider },
		func(cfg config.Config) config.CalDAVConfig { return cfg.CalDAV },
		func(cfg config.Config) config.SchedulingConfig { return cfg.Scheduling },
		// Policy is the per-request snapshot of the scheduling rules; building
		// it here fails fast on malformed hours or enforcement mode.
		queries.PolicyFromConfig,
	),
)
