package bootstrap

import (
	"schedcore/internal/handler/middleware"
	"schedcore/internal/pkg/config"
	"schedcore/internal/pkg/token"
	"schedcore/internal/usecase/commands"

	"go.uber.org/fx"
)

var TokenModule = fx.Module("token",
	fx.Provide(
		fx.Annotate(
			NewTokenService,
			fx.As(new(commands.TokenIssuer)),
			fx.As(new(middleware.TokenValidator)),
		),
	),
)

func NewTokenService(cfg config.Config) *token.Service {
	return token.NewService(cfg.Token.Secret, cfg.Token.Duration)
}
