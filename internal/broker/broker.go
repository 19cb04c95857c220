package broker

import (
	"context"

	"github.com/thedomainai/agentic-stack/internal/models"
)

// Channel names the two logical delivery channels. They double as routing
// keys on the wire.
type Channel string

const (
	ChannelDefault Channel = "task.default"
	ChannelHigh    Channel = "task.high"
)

// Handler processes one delivered message. Returning nil acknowledges the
// message; returning an error leaves it unacknowledged and eligible for
// redelivery. Redelivery is the system's only retry mechanism, so handlers
// must tolerate reprocessing.
type Handler func(ctx context.Context, msg *models.TaskMessage) error

// Broker is the durable, at-least-once, two-tier-priority delivery channel.
type Broker interface {
	// Publish persists the message durably before returning. While the
	// connection is down the error is surfaced to the caller; nothing is
	// buffered locally.
	Publish(ctx context.Context, msg *models.TaskMessage, channel Channel) error
	// Consume delivers messages one at a time to handler until ctx is
	// cancelled. It returns after starting the consume loop.
	Consume(ctx context.Context, channel Channel, groupID string, handler Handler) error
	Ping(ctx context.Context) error
	Close() error
}

// ChannelFor picks the delivery channel for a task priority: high and
// critical ride the high-priority channel, everything else the default one.
func ChannelFor(priority models.TaskPriority) Channel {
	if priority == models.TaskPriorityHigh || priority == models.TaskPriorityCritical {
		return ChannelHigh
	}
	return ChannelDefault
}

// PriorityHint maps the message's logical priority onto the broker's bounded
// 0-10 ordering hint. It is a hint, not a strict guarantee.
func PriorityHint(priority models.MessagePriority) int {
	if priority == models.MessagePriorityNormal {
		return 5
	}
	return 9
}
