package secrets

import (
	"context"

	"github.com/thedomainai/agentic-stack/pkg/circuitbreaker"
)

// GuardedStore wraps a Store with a circuit breaker. The secret store is a
// non-critical collaborator, so once it starts failing we stop hammering it
// and fail fast until the breaker lets a trial request through.
type GuardedStore struct {
	inner   Store
	breaker circuitbreaker.CircuitBreaker
}

var _ Store = (*GuardedStore)(nil)

// Guard wraps store behind the given breaker.
func Guard(store Store, breaker circuitbreaker.CircuitBreaker) *GuardedStore {
	return &GuardedStore{inner: store, breaker: breaker}
}

func (g *GuardedStore) Get(ctx context.Context, path string) (map[string]string, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Get(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.(map[string]string), nil
}

func (g *GuardedStore) Set(ctx context.Context, path string, secret map[string]string) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.inner.Set(ctx, path, secret)
	})
	return err
}

func (g *GuardedStore) Delete(ctx context.Context, path string) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.inner.Delete(ctx, path)
	})
	return err
}

func (g *GuardedStore) Ping(ctx context.Context) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.inner.Ping(ctx)
	})
	return err
}

func (g *GuardedStore) Close() error {
	return g.inner.Close()
}
