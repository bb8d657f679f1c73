package orchestrator

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the migration registry and
// orchestrator.
var Module = fx.Options(
	fx.Provide(NewRegistry),
	fx.Provide(NewOrchestrator),
)
