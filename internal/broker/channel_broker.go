package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thedomainai/agentic-stack/internal/models"
)

type subscription struct {
	channel Channel
	group   string
}

// ChannelBroker is an in-process Broker over buffered Go channels keeping the
// same delivery contract as the Kafka adapter: every consumer group gets each
// published message once, consumers within a group compete for deliveries,
// and a handler error re-enqueues the message for redelivery (at-least-once).
// Used for single-process runs and the test suite.
type ChannelBroker struct {
	mu     sync.Mutex
	buffer int
	queues map[subscription]chan *models.TaskMessage
	closed bool
	wg     sync.WaitGroup
}

var _ Broker = (*ChannelBroker)(nil)

// NewChannelBroker creates an empty in-process broker. Group queues are
// created on first Consume with the given buffer size.
func NewChannelBroker(buffer int) *ChannelBroker {
	if buffer <= 0 {
		buffer = 128
	}
	return &ChannelBroker{
		buffer: buffer,
		queues: make(map[subscription]chan *models.TaskMessage),
	}
}

func (b *ChannelBroker) queue(channel Channel, group string) chan *models.TaskMessage {
	sub := subscription{channel: channel, group: group}
	if q, ok := b.queues[sub]; ok {
		return q
	}
	q := make(chan *models.TaskMessage, b.buffer)
	b.queues[sub] = q
	return q
}

// Publish fans the message out to every group subscribed on the channel.
func (b *ChannelBroker) Publish(_ context.Context, msg *models.TaskMessage, channel Channel) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("broker closed")
	}
	if channel != ChannelDefault && channel != ChannelHigh {
		return fmt.Errorf("unknown channel: %s", channel)
	}

	for sub, q := range b.queues {
		if sub.channel != channel {
			continue
		}
		select {
		case q <- msg:
		default:
			return fmt.Errorf("channel %s full for group %s", channel, sub.group)
		}
	}
	return nil
}

func (b *ChannelBroker) Consume(ctx context.Context, channel Channel, groupID string, handler Handler) error {
	if channel != ChannelDefault && channel != ChannelHigh {
		return fmt.Errorf("unknown channel: %s", channel)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("broker closed")
	}
	q := b.queue(channel, groupID)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, open := <-q:
				if !open {
					return
				}
				if err := handler(ctx, msg); err != nil {
					// Unacknowledged: put it back for redelivery.
					b.redeliver(ctx, q, msg)
				}
			}
		}
	}()
	return nil
}

// redeliver re-enqueues an unacknowledged message. It must not send on a
// closed queue and must not drop the message when the queue is momentarily
// full, so it polls for room under the closed guard and gives up only when
// the broker shuts down or the consumer context ends.
func (b *ChannelBroker) redeliver(ctx context.Context, q chan *models.TaskMessage, msg *models.TaskMessage) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		select {
		case q <- msg:
			b.mu.Unlock()
			return
		default:
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (b *ChannelBroker) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("broker closed")
	}
	return nil
}

func (b *ChannelBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

// Depth reports the messages waiting for a group on a channel.
func (b *ChannelBroker) Depth(channel Channel, group string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[subscription{channel: channel, group: group}]; ok {
		return len(q)
	}
	return 0
}
