package calculator

import (
	"go.uber.org/fx"

	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

// Module is an Fx module that provides the default ACWR calculator.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewACWRCalculator,
		fx.As(new(port.Calculator)),
	)),
)
