package components

import (
	"schedcore/internal/handler"
	"schedcore/internal/handler/api"
	"schedcore/internal/handler/middleware"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewAvailabilityHandler,
		api.NewBookingHandler,
		middleware.NewManageAuthMiddleware,
	),
	fx.Invoke(handler.NewRouter),
)
