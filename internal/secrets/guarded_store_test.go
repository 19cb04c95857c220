package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/thedomainai/agentic-stack/pkg/circuitbreaker"
)

func TestGuardedStorePassesThrough(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	guarded := Guard(inner, circuitbreaker.New(2, 1, time.Minute))

	if err := guarded.Set(ctx, "llm", map[string]string{"api_key": "k"}); err != nil {
		t.Fatalf("Set error = %v", err)
	}
	secret, err := guarded.Get(ctx, "llm")
	if err != nil {
		t.Fatalf("Get error = %v", err)
	}
	if secret["api_key"] != "k" {
		t.Error("secret does not round trip through the guard")
	}

	missing, err := guarded.Get(ctx, "absent")
	if err != nil {
		t.Fatalf("Get(absent) error = %v", err)
	}
	if missing != nil {
		t.Error("a missing secret must come back nil")
	}
}

func TestGuardedStoreTripsOpen(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	inner.Unreachable = true
	guarded := Guard(inner, circuitbreaker.New(2, 1, time.Minute))

	// Two consecutive failures trip the breaker.
	for i := 0; i < 2; i++ {
		if err := guarded.Ping(ctx); err == nil {
			t.Fatal("expected ping to fail while unreachable")
		}
	}

	if err := guarded.Ping(ctx); err != circuitbreaker.ErrCircuitOpen {
		t.Errorf("expected the breaker to be open, got %v", err)
	}

	// The open breaker fails fast without touching the store.
	inner.Unreachable = false
	if err := guarded.Ping(ctx); err != circuitbreaker.ErrCircuitOpen {
		t.Errorf("expected fail-fast while open, got %v", err)
	}
}
