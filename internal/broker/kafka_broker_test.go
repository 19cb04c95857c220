package broker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/thedomainai/agentic-stack/internal/models"
	"github.com/thedomainai/agentic-stack/pkg/logger"
)

// scriptedReader feeds a fixed sequence of messages and records every fetch
// and commit, so the consume loop's ordering is observable.
type scriptedReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	next     int
	events   []string
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.next >= len(r.messages) {
		r.mu.Unlock()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.messages[r.next]
	r.next++
	r.events = append(r.events, fmt.Sprintf("fetch:%d", m.Offset))
	r.mu.Unlock()
	return m, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.events = append(r.events, fmt.Sprintf("commit:%d", m.Offset))
	}
	return nil
}

func (r *scriptedReader) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func encodedMessage(t *testing.T, taskID string, offset int64) kafka.Message {
	t.Helper()
	msg := models.NewTaskMessage(taskID, models.ActionTaskAssign, nil, "orchestrator", "worker", models.MessagePriorityNormal, "")
	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode error = %v", err)
	}
	return kafka.Message{Offset: offset, Value: data}
}

// Offset commits are cumulative per partition, so the loop must not fetch
// past a message whose handler keeps failing: committing a later offset
// would silently confirm the earlier one.
func TestConsumeLoopRetriesBeforeAdvancing(t *testing.T) {
	reader := &scriptedReader{messages: []kafka.Message{
		encodedMessage(t, "t-1", 5),
		encodedMessage(t, "t-2", 6),
	}}
	b := &KafkaBroker{logger: logger.New("broker", "test", ""), retryBackoff: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	attempts := map[string]int{}
	handled := make(chan string, 4)
	handler := func(_ context.Context, msg *models.TaskMessage) error {
		mu.Lock()
		attempts[msg.TaskID]++
		n := attempts[msg.TaskID]
		mu.Unlock()
		if msg.TaskID == "t-1" && n < 3 {
			return fmt.Errorf("transient failure")
		}
		handled <- msg.TaskID
		return nil
	}

	go b.consumeLoop(ctx, ChannelDefault, reader, handler)

	for _, want := range []string{"t-1", "t-2"} {
		select {
		case got := <-handled:
			if got != want {
				t.Fatalf("handled %s before %s", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("message %s was never handled", want)
		}
	}
	cancel()

	mu.Lock()
	if attempts["t-1"] != 3 {
		t.Errorf("expected 3 attempts for the failing message, got %d", attempts["t-1"])
	}
	mu.Unlock()

	events := reader.snapshot()
	commit5, fetch6 := -1, -1
	for i, e := range events {
		switch e {
		case "commit:5":
			commit5 = i
		case "fetch:6":
			fetch6 = i
		}
	}
	if commit5 == -1 || fetch6 == -1 {
		t.Fatalf("missing events in %v", events)
	}
	if fetch6 < commit5 {
		t.Errorf("fetched past an uncommitted offset: %v", events)
	}
}
