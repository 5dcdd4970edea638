package edges

import (
	"go.uber.org/fx"
)

// Module provides edge dependencies.
var Module = fx.Module("edges",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
