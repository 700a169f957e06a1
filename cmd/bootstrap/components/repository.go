package components

import (
	"schedcore/internal/infra/cache"
	"schedcore/internal/infra/caldav"
	"schedcore/internal/infra/provider"
	repo_impl "schedcore/internal/infra/repository"
	"schedcore/internal/usecase/commands"
	"schedcore/internal/usecase/queries"

	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		fx.Annotate(
			repo_impl.NewBookingRepository,
			fx.As(new(commands.BookingRepository)),
			fx.As(new(queries.BookingReader)),
			fx.As(new(queries.BookingFinder)),
		),
		fx.Annotate(
			repo_impl.NewCatalogRepository,
			fx.As(new(queries.ServiceReader)),
		),
		fx.Annotate(
			repo_impl.NewBreakRepository,
			fx.As(new(queries.BreakReader)),
		),
		fx.Annotate(
			repo_impl.NewEventRepository,
			fx.As(new(commands.EventRecorder)),
		),
		// External staff directory: raw HTTP API wrapped by the window resolver.
		fx.Annotate(
			provider.NewHTTPScheduleAPI,
			fx.As(new(provider.RawScheduleAPI)),
		),
		fx.Annotate(
			provider.NewResolver,
			fx.As(new(queries.ScheduleProvider)),
		),
		fx.Annotate(
			caldav.NewClient,
			fx.As(new(commands.CalendarSync)),
		),
		fx.Annotate(
			cache.NewSlotCache,
			fx.As(new(queries.SlotCache)),
			fx.As(new(commands.CacheInvalidator)),
		),
	),
)
