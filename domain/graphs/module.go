package graphs

import (
	"go.uber.org/fx"
)

// Module provides graph dependencies.
var Module = fx.Module("graphs",
	fx.Provide(NewRepository),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
