package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/thedomainai/agentic-stack/internal/models"
)

// RedisStore implements Store on top of a shared Redis instance.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an already-connected Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data), ttl)
}

func (s *RedisStore) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	val, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// AcquireLock uses SET NX with expiry. The fence token comes from a separate
// counter key so it survives lock expiry and keeps increasing across owners.
func (s *RedisStore) AcquireLock(ctx context.Context, name, holder string, ttl time.Duration) (bool, int64, error) {
	ok, err := s.client.SetNX(ctx, lockKey(name), holder, ttl).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis setnx lock %s: %w", name, err)
	}
	if !ok {
		return false, 0, nil
	}
	fence, err := s.client.Incr(ctx, fenceKey(name)).Result()
	if err != nil {
		return true, 0, fmt.Errorf("redis incr fence %s: %w", name, err)
	}
	return true, fence, nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, name, holder string) (bool, error) {
	current, ok, err := s.Get(ctx, lockKey(name))
	if err != nil {
		return false, err
	}
	if !ok || current != holder {
		return false, nil
	}
	if err := s.Delete(ctx, lockKey(name)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, processedKey(messageID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx processed %s: %w", messageID, err)
	}
	return ok, nil
}

func (s *RedisStore) UnmarkProcessed(ctx context.Context, messageID string) error {
	if err := s.client.Del(ctx, processedKey(messageID)).Err(); err != nil {
		return fmt.Errorf("redis del processed %s: %w", messageID, err)
	}
	return nil
}

func (s *RedisStore) SetAgentStatus(ctx context.Context, agentID string, state models.AgentState) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, agentStatusKey, agentID, string(state))
	pipe.HSet(ctx, agentHeartbeatKey, agentID, time.Now().UTC().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset agent status %s: %w", agentID, err)
	}
	return nil
}

func (s *RedisStore) AgentStatus(ctx context.Context, agentID string) (string, bool, error) {
	val, err := s.client.HGet(ctx, agentStatusKey, agentID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget agent status %s: %w", agentID, err)
	}
	return val, true, nil
}

func (s *RedisStore) AllAgentStatuses(ctx context.Context) (map[string]string, error) {
	statuses, err := s.client.HGetAll(ctx, agentStatusKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall agent status: %w", err)
	}
	return statuses, nil
}

func (s *RedisStore) AgentHeartbeat(ctx context.Context, agentID string) (time.Time, bool, error) {
	val, err := s.client.HGet(ctx, agentHeartbeatKey, agentID).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis hget heartbeat %s: %w", agentID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse heartbeat %s: %w", agentID, err)
	}
	return ts, true, nil
}

func (s *RedisStore) SaveTask(ctx context.Context, task *models.Task) error {
	return s.SetJSON(ctx, taskKey(task.TaskID), task, 0)
}

func (s *RedisStore) LoadTask(ctx context.Context, taskID string) (*models.Task, bool, error) {
	var task models.Task
	ok, err := s.GetJSON(ctx, taskKey(taskID), &task)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &task, true, nil
}

func (s *RedisStore) SetTaskContext(ctx context.Context, taskID string, taskCtx map[string]interface{}, ttl time.Duration) error {
	return s.SetJSON(ctx, contextKey(taskID), taskCtx, ttl)
}

func (s *RedisStore) TaskContext(ctx context.Context, taskID string) (map[string]interface{}, bool, error) {
	var taskCtx map[string]interface{}
	ok, err := s.GetJSON(ctx, contextKey(taskID), &taskCtx)
	if err != nil || !ok {
		return nil, ok, err
	}
	return taskCtx, true, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
