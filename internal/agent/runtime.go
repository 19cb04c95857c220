package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thedomainai/agentic-stack/internal/audit"
	"github.com/thedomainai/agentic-stack/internal/broker"
	"github.com/thedomainai/agentic-stack/internal/config"
	"github.com/thedomainai/agentic-stack/internal/models"
	"github.com/thedomainai/agentic-stack/internal/statestore"
	"github.com/thedomainai/agentic-stack/pkg/logger"
)

// replyActions are the orchestrator-bound verbs a runtime acknowledges
// without processing;它们不是发给工作 Agent 的指令。
var replyActions = map[string]struct{}{
	models.ActionTaskComplete: {},
	models.ActionTaskFail:     {},
	models.ActionTaskProgress: {},
}

// errMaintenance leaves a delivery unacknowledged while the runtime is paused.
var errMaintenance = fmt.Errorf("runtime in maintenance")

// Runtime is the lifecycle state machine around one Agent. It owns the
// Offline→Idle→Busy→Idle transitions, the heartbeat, dedup of redelivered
// messages and the reply publishing. Busy is observational only; single-task
// execution comes from the broker's one-at-a-time delivery, not from here.
type Runtime struct {
	ID     string
	agent  Agent
	store  statestore.Store
	broker broker.Broker
	audit  *audit.Log
	cfg    *config.AgentConfig
	logger *logger.Logger

	mu            sync.Mutex
	state         models.AgentState
	currentTaskID string
	running       bool
	stopHeartbeat context.CancelFunc
}

// NewRuntime wraps an Agent. The ID combines the agent type with a short
// random suffix so concurrent instances of one type stay distinguishable.
func NewRuntime(a Agent, store statestore.Store, b broker.Broker, auditLog *audit.Log, cfg *config.AgentConfig) *Runtime {
	id := fmt.Sprintf("%s-%s", a.Metadata().Type, uuid.New().String()[:8])
	return &Runtime{
		ID:     id,
		agent:  a,
		store:  store,
		broker: b,
		audit:  auditLog,
		cfg:    cfg,
		logger: logger.New("agent_runtime", id, ""),
		state:  models.AgentStateOffline,
	}
}

// State returns the current lifecycle state.
func (r *Runtime) State() models.AgentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsBusy reports whether a task is currently executing.
func (r *Runtime) IsBusy() bool {
	return r.State() == models.AgentStateBusy
}

// Start verifies connectivity, moves Offline→Idle, records the status and
// begins the heartbeat. A connection failure here is the caller's fatal
// startup error.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	if err := r.broker.Ping(ctx); err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}

	r.mu.Lock()
	r.state = models.AgentStateIdle
	r.running = true
	r.mu.Unlock()

	if err := r.updateStatus(ctx); err != nil {
		return err
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.stopHeartbeat = cancel
	r.mu.Unlock()
	go r.heartbeatLoop(hbCtx)

	r.logger.Info("Agent runtime started")
	return nil
}

// Stop cancels the heartbeat, moves to Offline and records the final status.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.running = false
	if r.stopHeartbeat != nil {
		r.stopHeartbeat()
		r.stopHeartbeat = nil
	}
	r.state = models.AgentStateOffline
	r.mu.Unlock()

	if err := r.updateStatus(ctx); err != nil {
		return err
	}
	r.logger.Info("Agent runtime stopped")
	return nil
}

// SetMaintenance pauses or resumes message handling. While paused,
// deliveries stay unacknowledged and come back later.
func (r *Runtime) SetMaintenance(ctx context.Context, on bool) error {
	r.mu.Lock()
	if on {
		r.state = models.AgentStateMaintenance
	} else {
		r.state = models.AgentStateIdle
	}
	r.mu.Unlock()
	return r.updateStatus(ctx)
}

func (r *Runtime) updateStatus(ctx context.Context) error {
	if err := r.store.SetAgentStatus(ctx, r.ID, r.State()); err != nil {
		return fmt.Errorf("record agent status: %w", err)
	}
	return nil
}

func (r *Runtime) heartbeatLoop(ctx context.Context) {
	interval := time.Duration(r.cfg.HeartbeatIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.updateStatus(ctx); err != nil {
				r.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "store_error"}).Error("Heartbeat write failed")
			} else {
				r.logger.Debug("Heartbeat: " + string(r.State()))
			}
		}
	}
}

// HandleMessage processes one delivered directive. Returning nil
// acknowledges the delivery; a non-nil return leaves it for redelivery.
func (r *Runtime) HandleMessage(ctx context.Context, msg *models.TaskMessage) error {
	if _, isReply := replyActions[msg.Action]; isReply {
		// Orchestrator-bound traffic on the shared channel, not for us.
		return nil
	}

	if r.State() == models.AgentStateMaintenance {
		return errMaintenance
	}

	// Redelivered messages that already ran to completion are skipped.
	first, err := r.store.MarkProcessed(ctx, msg.MessageID, time.Duration(r.cfg.DedupTTLSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if !first {
		r.logger.WithPayload(map[string]interface{}{"message_id": msg.MessageID}).Warn("Skipping already-processed message")
		return nil
	}

	log := r.logger.WithTask(msg.TaskID)
	log.Info("Received task message: " + msg.Action)

	r.mu.Lock()
	r.state = models.AgentStateBusy
	r.currentTaskID = msg.TaskID
	r.mu.Unlock()
	if err := r.updateStatus(ctx); err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: "store_error"}).Error("Failed to record busy status")
	}

	taskCtx := map[string]interface{}{
		"assigned_agent": r.ID,
		"started_at":     time.Now().UTC().Format(time.RFC3339),
		"action":         msg.Action,
		"status":         "in_progress",
	}
	if err := r.store.SetTaskContext(ctx, msg.TaskID, taskCtx, time.Duration(r.cfg.ContextTTLSeconds)*time.Second); err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: "store_error"}).Error("Failed to store task context")
	}

	start := time.Now()
	result, panicked := r.executeGuarded(ctx, msg)
	result.DurationMS = time.Since(start).Milliseconds()

	if panicked {
		// Only faults escaping the handler reach the failure audit; a
		// plain failure result does not.
		if err := r.audit.Failure(r.ID, msg.TaskID, "error", "execution_error", result.Error, map[string]interface{}{
			"action": msg.Action,
		}); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to append failure audit entry")
		}
	}

	publishErr := r.sendResult(ctx, msg, result)
	if publishErr != nil {
		// The delivery stays unacknowledged, so the marker must go too or
		// the redelivery would be deduped with no reply ever published.
		if err := r.store.UnmarkProcessed(ctx, msg.MessageID); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error(), Type: "store_error"}).Error("Failed to release dedup marker after publish failure")
		}
	}

	r.mu.Lock()
	r.state = models.AgentStateIdle
	r.currentTaskID = ""
	r.mu.Unlock()
	if err := r.updateStatus(ctx); err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: "store_error"}).Error("Failed to record idle status")
	}

	return publishErr
}

// executeGuarded runs the agent's handler, converting an escaping panic into
// a failure result at the runtime boundary.
func (r *Runtime) executeGuarded(ctx context.Context, msg *models.TaskMessage) (result models.TaskResult, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
			result = models.FailureResult(fmt.Sprintf("task handler panic: %v", rec))
		}
	}()
	return r.agent.ExecuteTask(ctx, msg), false
}

func (r *Runtime) sendResult(ctx context.Context, original *models.TaskMessage, result models.TaskResult) error {
	action := models.ActionTaskComplete
	if !result.Success {
		action = models.ActionTaskFail
	}

	reply := original.NewReply(action, result.ToPayload())
	reply.SourceAgent = r.ID
	reply.TargetAgent = "orchestrator"

	channel := broker.ChannelDefault
	if reply.Priority == models.MessagePriorityHigh {
		channel = broker.ChannelHigh
	}
	if err := r.broker.Publish(ctx, reply, channel); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}
