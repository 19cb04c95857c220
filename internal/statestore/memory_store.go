package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/thedomainai/agentic-stack/internal/models"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero value means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process Store honoring the same TTL and lock contract
// as RedisStore. It backs single-process runs and the test suite.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	statuses   map[string]string
	heartbeats map[string]time.Time
	fences     map[string]int64
	closed     bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]memoryEntry),
		statuses:   make(map[string]string),
		heartbeats: make(map[string]time.Time),
		fences:     make(map[string]int64),
	}
}

// get returns the live value for key, dropping it when expired.
// Caller must hold mu.
func (s *MemoryStore) get(key string) (string, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if entry.expired(time.Now()) {
		delete(s.entries, key)
		return "", false
	}
	return entry.value, true
}

func (s *MemoryStore) set(key, value string, ttl time.Duration) {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = entry
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.get(key)
	return val, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data), ttl)
}

func (s *MemoryStore) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	val, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) AcquireLock(_ context.Context, name, holder string, ttl time.Duration) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.get(lockKey(name)); held {
		return false, 0, nil
	}
	s.set(lockKey(name), holder, ttl)
	s.fences[name]++
	return true, s.fences[name], nil
}

func (s *MemoryStore) ReleaseLock(_ context.Context, name, holder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, held := s.get(lockKey(name))
	if !held || current != holder {
		return false, nil
	}
	delete(s.entries, lockKey(name))
	return true, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, messageID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.get(processedKey(messageID)); seen {
		return false, nil
	}
	s.set(processedKey(messageID), "1", ttl)
	return true, nil
}

func (s *MemoryStore) UnmarkProcessed(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, processedKey(messageID))
	return nil
}

func (s *MemoryStore) SetAgentStatus(_ context.Context, agentID string, state models.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[agentID] = string(state)
	s.heartbeats[agentID] = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AgentStatus(_ context.Context, agentID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.statuses[agentID]
	return state, ok, nil
}

func (s *MemoryStore) AllAgentStatuses(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make(map[string]string, len(s.statuses))
	for id, state := range s.statuses {
		statuses[id] = state
	}
	return statuses, nil
}

func (s *MemoryStore) AgentHeartbeat(_ context.Context, agentID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.heartbeats[agentID]
	return ts, ok, nil
}

func (s *MemoryStore) SaveTask(ctx context.Context, task *models.Task) error {
	return s.SetJSON(ctx, taskKey(task.TaskID), task, 0)
}

func (s *MemoryStore) LoadTask(ctx context.Context, taskID string) (*models.Task, bool, error) {
	var task models.Task
	ok, err := s.GetJSON(ctx, taskKey(taskID), &task)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &task, true, nil
}

func (s *MemoryStore) SetTaskContext(ctx context.Context, taskID string, taskCtx map[string]interface{}, ttl time.Duration) error {
	return s.SetJSON(ctx, contextKey(taskID), taskCtx, ttl)
}

func (s *MemoryStore) TaskContext(ctx context.Context, taskID string) (map[string]interface{}, bool, error) {
	var taskCtx map[string]interface{}
	ok, err := s.GetJSON(ctx, contextKey(taskID), &taskCtx)
	if err != nil || !ok {
		return nil, ok, err
	}
	return taskCtx, true, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store closed")
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
