package notification

import (
	"go.uber.org/fx"

	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	logging "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/listener/logging"
)

func provideMulticaster(channel *ChannelNotifier) *Multicaster {
	return NewMulticaster(logging.NewLoggingNotifier(), channel)
}

func provideChannelNotifier() *ChannelNotifier {
	return NewChannelNotifier(0)
}

// Module is an Fx module that provides the progress event sinks: the log
// sink and the channel bridge, fanned out behind one ProgressNotifier.
var Module = fx.Options(
	fx.Provide(provideChannelNotifier),
	fx.Provide(fx.Annotate(
		provideMulticaster,
		fx.As(new(port.ProgressNotifier)),
	)),
)
