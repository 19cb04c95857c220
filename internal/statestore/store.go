package statestore

import (
	"context"
	"time"

	"github.com/thedomainai/agentic-stack/internal/models"
)

// Redis key namespaces shared by every process in the system.
const (
	agentStatusKey    = "agent:status"
	agentHeartbeatKey = "agent:heartbeat"
)

func taskKey(taskID string) string      { return "task:" + taskID }
func contextKey(taskID string) string   { return "agent:context:" + taskID }
func lockKey(name string) string        { return "lock:" + name }
func fenceKey(name string) string       { return "lock:fence:" + name }
func processedKey(msgID string) string  { return "msg:processed:" + msgID }

// Store is the minimal key-value capability every component shares: status,
// locks, task snapshots and per-task context. Writes are best-effort; a
// connectivity error is recoverable and callers retry after reconnecting.
type Store interface {
	// Basic operations on opaque string values with optional TTL (0 = no expiry).
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// JSON blob operations.
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, out interface{}) (bool, error)

	// AcquireLock succeeds only while no unexpired entry for name exists.
	// On success it returns a fence token that increases monotonically with
	// every successful acquisition of the same name; guarded writers may
	// record it to detect a lock lost to TTL expiry.
	AcquireLock(ctx context.Context, name, holder string, ttl time.Duration) (bool, int64, error)
	// ReleaseLock removes the lock only when holder matches the current
	// owner. A stale owner gets false and the lock is left untouched.
	ReleaseLock(ctx context.Context, name, holder string) (bool, error)

	// MarkProcessed records a message id as handled. The first call for an
	// id returns true; redeliveries of the same id return false and are
	// skipped by the consumer.
	MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error)

	// UnmarkProcessed removes the processed marker so a redelivery of the
	// same id runs again. Consumers call it when the work after the marker
	// (publishing the reply) fails and the delivery stays unacknowledged.
	UnmarkProcessed(ctx context.Context, messageID string) error

	// Agent liveness records. The agent writes its own state on every
	// transition and on each heartbeat tick; the orchestrator only reads.
	SetAgentStatus(ctx context.Context, agentID string, state models.AgentState) error
	AgentStatus(ctx context.Context, agentID string) (string, bool, error)
	AllAgentStatuses(ctx context.Context) (map[string]string, error)
	AgentHeartbeat(ctx context.Context, agentID string) (time.Time, bool, error)

	// Task snapshots (no TTL) and per-task execution context (TTL-bound).
	SaveTask(ctx context.Context, task *models.Task) error
	LoadTask(ctx context.Context, taskID string) (*models.Task, bool, error)
	SetTaskContext(ctx context.Context, taskID string, taskCtx map[string]interface{}, ttl time.Duration) error
	TaskContext(ctx context.Context, taskID string) (map[string]interface{}, bool, error)

	Ping(ctx context.Context) error
	Close() error
}
