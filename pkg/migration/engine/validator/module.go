package validator

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the record validator.
var Module = fx.Options(
	fx.Provide(NewValidator),
)
