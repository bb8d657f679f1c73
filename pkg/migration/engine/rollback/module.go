package rollback

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the rollback planner and executor.
var Module = fx.Options(
	fx.Provide(NewPlanner),
	fx.Provide(NewExecutor),
)
