package nodes

import (
	"go.uber.org/fx"
)

// Module provides node dependencies.
var Module = fx.Module("nodes",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
