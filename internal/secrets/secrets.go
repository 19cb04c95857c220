package secrets

import "context"

// Store is the secret-store collaborator as seen by the core. It is
// explicitly non-critical: an unreachable secret store degrades system
// health but never makes it unhealthy.
type Store interface {
	Get(ctx context.Context, path string) (map[string]string, error)
	Set(ctx context.Context, path string, secret map[string]string) error
	Delete(ctx context.Context, path string) error
	Ping(ctx context.Context) error
	Close() error
}
