// Package notification provides progress event sinks for external consumers
// and the multicaster that fans events out to all registered sinks.
package notification

import (
	"context"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// Multicaster fans each event out to every registered notifier in order. A
// panicking sink is recovered and logged; event publication must never abort
// a migration.
type Multicaster struct {
	notifiers []port.ProgressNotifier
}

// NewMulticaster creates a Multicaster over the given sinks.
func NewMulticaster(notifiers ...port.ProgressNotifier) *Multicaster {
	return &Multicaster{notifiers: notifiers}
}

var _ port.ProgressNotifier = (*Multicaster)(nil)

// Append registers an additional sink. Not safe to call concurrently with
// Notify; sinks are registered during wiring, before any migration runs.
func (m *Multicaster) Append(n port.ProgressNotifier) {
	m.notifiers = append(m.notifiers, n)
}

func (m *Multicaster) Notify(ctx context.Context, event model.ProgressEvent) {
	for _, n := range m.notifiers {
		m.deliver(ctx, n, event)
	}
}

func (m *Multicaster) deliver(ctx context.Context, n port.ProgressNotifier, event model.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Progress notifier panicked on %s for migration %s: %v", event.Type, event.MigrationID, r)
		}
	}()
	n.Notify(ctx, event)
}

// ChannelNotifier bridges progress events to a channel for external
// consumers (a websocket hub, a test harness). When the buffer is full the
// event is dropped with a warning; delivery is at-least-once from the
// producer's view and consumers must tolerate gaps under backpressure.
type ChannelNotifier struct {
	events chan model.ProgressEvent
}

// NewChannelNotifier creates a ChannelNotifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelNotifier{events: make(chan model.ProgressEvent, buffer)}
}

var _ port.ProgressNotifier = (*ChannelNotifier)(nil)

// Events returns the receive side of the event channel.
func (n *ChannelNotifier) Events() <-chan model.ProgressEvent {
	return n.events
}

func (n *ChannelNotifier) Notify(ctx context.Context, event model.ProgressEvent) {
	select {
	case n.events <- event:
	default:
		logger.Warnf("Progress event buffer full; dropping %s for migration %s", event.Type, event.MigrationID)
	}
}
