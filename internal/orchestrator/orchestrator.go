package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thedomainai/agentic-stack/internal/agent"
	"github.com/thedomainai/agentic-stack/internal/audit"
	"github.com/thedomainai/agentic-stack/internal/broker"
	"github.com/thedomainai/agentic-stack/internal/config"
	"github.com/thedomainai/agentic-stack/internal/models"
	"github.com/thedomainai/agentic-stack/internal/secrets"
	"github.com/thedomainai/agentic-stack/internal/statestore"
	"github.com/thedomainai/agentic-stack/pkg/logger"
)

// orchestratorID is the fixed identity replies are addressed to.
const orchestratorID = "orchestrator"

// AgentFactory builds a fresh worker instance for one agent type.
type AgentFactory func() agent.Agent

// TaskEvent is pushed to subscribed observers whenever a task changes state.
type TaskEvent struct {
	TaskID string            `json:"task_id"`
	Status models.TaskStatus `json:"status"`
	Agent  string            `json:"agent,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// EventSink receives task events; a nil sink disables event push.
type EventSink func(event TaskEvent)

// Orchestrator is the sole authority over task lifecycle. It creates tasks,
// routes them to agent types, dispatches assignment messages and folds the
// agents' replies back into the task snapshots. Agents never talk to each
// other directly; everything passes through here.
type Orchestrator struct {
	store   statestore.Store
	broker  broker.Broker
	secrets secrets.Store
	audit   *audit.Log
	cfg     *config.AppConfig
	router  *Router
	logger  *logger.Logger

	mu        sync.Mutex
	factories map[string]AgentFactory
	runtimes  []*agent.Runtime
	sink      EventSink
}

// New wires the orchestrator with its collaborators. Every dependency is
// injected; nothing here reaches for process-global state.
func New(store statestore.Store, b broker.Broker, secretStore secrets.Store, auditLog *audit.Log, cfg *config.AppConfig) *Orchestrator {
	return &Orchestrator{
		store:     store,
		broker:    b,
		secrets:   secretStore,
		audit:     auditLog,
		cfg:       cfg,
		router:    NewRouter(cfg.Orchestrator.DefaultAgentType),
		logger:    logger.New("orchestrator", orchestratorID, ""),
		factories: map[string]AgentFactory{},
	}
}

// SetEventSink registers the observer for task state changes.
func (o *Orchestrator) SetEventSink(sink EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sink = sink
}

func (o *Orchestrator) emit(event TaskEvent) {
	o.mu.Lock()
	sink := o.sink
	o.mu.Unlock()
	if sink != nil {
		sink(event)
	}
}

// RegisterAgentType makes an agent type spawnable.
func (o *Orchestrator) RegisterAgentType(agentType string, factory AgentFactory) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.factories[agentType] = factory
}

// SpawnAgent instantiates a worker of the given type, starts its runtime and
// subscribes it to both delivery channels in the shared agents consumer
// group. An unregistered type is an error, not a silent default.
func (o *Orchestrator) SpawnAgent(ctx context.Context, agentType string) (*agent.Runtime, error) {
	o.mu.Lock()
	factory, ok := o.factories[agentType]
	o.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown agent type: %s", agentType)
	}

	runtime := agent.NewRuntime(factory(), o.store, o.broker, o.audit, &o.cfg.Agent)
	if err := runtime.Start(ctx); err != nil {
		return nil, fmt.Errorf("start agent %s: %w", runtime.ID, err)
	}

	group := o.cfg.Databases.Kafka.GroupID + "-agents"
	for _, channel := range []broker.Channel{broker.ChannelDefault, broker.ChannelHigh} {
		if err := o.broker.Consume(ctx, channel, group, runtime.HandleMessage); err != nil {
			return nil, fmt.Errorf("subscribe agent %s to %s: %w", runtime.ID, channel, err)
		}
	}

	o.mu.Lock()
	o.runtimes = append(o.runtimes, runtime)
	o.mu.Unlock()

	o.logger.WithPayload(map[string]interface{}{"agent_id": runtime.ID}).Info("Spawned agent")
	return runtime, nil
}

// TaskSpec carries the caller-supplied fields for a new task.
type TaskSpec struct {
	Title        string
	Description  string
	Priority     models.TaskPriority
	ParentTaskID string
	Tags         []string
	Metadata     map[string]interface{}
}

// CreateTask builds a pending task with a fresh id, persists its snapshot and
// records the creation decision. A parent reference must name an existing
// task; forward references are rejected.
func (o *Orchestrator) CreateTask(ctx context.Context, spec TaskSpec) (*models.Task, error) {
	if spec.ParentTaskID != "" {
		_, found, err := o.store.LoadTask(ctx, spec.ParentTaskID)
		if err != nil {
			return nil, fmt.Errorf("load parent task %s: %w", spec.ParentTaskID, err)
		}
		if !found {
			return nil, fmt.Errorf("parent task %s does not exist", spec.ParentTaskID)
		}
	}

	task := models.NewTask(uuid.New().String(), spec.Title, spec.Description, spec.Priority, spec.Tags, spec.Metadata)
	task.ParentTaskID = spec.ParentTaskID
	if err := o.store.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("persist task %s: %w", task.TaskID, err)
	}

	if err := o.audit.Decision(orchestratorID, task.TaskID, "task_created",
		fmt.Sprintf("Create task %q", task.Title), string(task.Priority),
		"caller submission", nil); err != nil {
		o.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to append creation decision")
	}

	o.logger.WithTask(task.TaskID).Info("Created task: " + spec.Title)
	return task, nil
}

// RouteTask picks the agent type for the task, deterministically.
func (o *Orchestrator) RouteTask(task *models.Task) string {
	return o.router.Route(task)
}

// AssignTask moves the task to queued, publishes the assignment message on
// the channel matching the task priority and records the routing decision.
func (o *Orchestrator) AssignTask(ctx context.Context, task *models.Task, agentType string) error {
	if err := task.TransitionTo(models.TaskStatusQueued); err != nil {
		return err
	}
	task.AssignedAgent = agentType
	if err := o.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("persist task %s: %w", task.TaskID, err)
	}

	priority := models.MessagePriorityNormal
	if task.IsHighPriority() {
		priority = models.MessagePriorityHigh
	}
	msg := models.NewTaskMessage(task.TaskID, models.ActionTaskAssign, map[string]interface{}{
		"title":       task.Title,
		"description": task.Description,
		"tags":        task.Tags,
		"metadata":    task.Metadata,
	}, orchestratorID, agentType, priority, "")

	if err := o.broker.Publish(ctx, msg, broker.ChannelFor(task.Priority)); err != nil {
		return fmt.Errorf("publish assignment for task %s: %w", task.TaskID, err)
	}

	if err := o.audit.Decision(orchestratorID, task.TaskID, "task_routing",
		fmt.Sprintf("Route task %q", task.Title), agentType,
		"keyword rules over title and description", nil); err != nil {
		o.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to append routing decision")
	}

	o.emit(TaskEvent{TaskID: task.TaskID, Status: task.Status, Agent: agentType})
	o.logger.WithTask(task.TaskID).Info("Assigned task to " + agentType)
	return nil
}

// SubmitTask is the one-call path the control API uses: create, route, assign.
func (o *Orchestrator) SubmitTask(ctx context.Context, spec TaskSpec) (*models.Task, error) {
	task, err := o.CreateTask(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := o.AssignTask(ctx, task, o.RouteTask(task)); err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask loads a task snapshot by id.
func (o *Orchestrator) GetTask(ctx context.Context, taskID string) (*models.Task, bool, error) {
	return o.store.LoadTask(ctx, taskID)
}

// HandleMessage consumes one orchestrator-bound reply. Unknown actions and
// replies for unknown tasks are logged and dropped; dropping acknowledges
// the delivery so the broker stops redelivering junk.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg *models.TaskMessage) error {
	switch msg.Action {
	case models.ActionTaskComplete:
		return o.finishTask(ctx, msg, models.TaskStatusCompleted)
	case models.ActionTaskFail:
		return o.finishTask(ctx, msg, models.TaskStatusFailed)
	case models.ActionTaskProgress:
		return o.recordProgress(ctx, msg)
	case models.ActionTaskAssign:
		// Agent-bound traffic on the shared channel, not for us.
		return nil
	default:
		o.logger.WithTask(msg.TaskID).Warn("Dropping message with unknown action: " + msg.Action)
		return nil
	}
}

func (o *Orchestrator) finishTask(ctx context.Context, msg *models.TaskMessage, status models.TaskStatus) error {
	log := o.logger.WithTask(msg.TaskID)

	task, found, err := o.store.LoadTask(ctx, msg.TaskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", msg.TaskID, err)
	}
	if !found {
		log.Warn("Dropping reply for unknown task")
		return nil
	}

	if err := task.TransitionTo(status); err != nil {
		// A redelivered terminal reply lands here; the snapshot already
		// reflects the outcome.
		log.Warn("Dropping stale reply: " + err.Error())
		return nil
	}
	if err := o.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("persist task %s: %w", task.TaskID, err)
	}

	durationMS := int64(0)
	if v, ok := msg.Payload["duration_ms"].(float64); ok {
		durationMS = int64(v)
	}
	success := status == models.TaskStatusCompleted
	if err := o.audit.Velocity(task.TaskID, msg.SourceAgent, durationMS, success); err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to append velocity metric")
	}

	errText := ""
	if v, ok := msg.Payload["error"].(string); ok {
		errText = v
	}
	o.emit(TaskEvent{TaskID: task.TaskID, Status: status, Agent: msg.SourceAgent, Error: errText})
	log.Info("Task finished: " + string(status))
	return nil
}

func (o *Orchestrator) recordProgress(ctx context.Context, msg *models.TaskMessage) error {
	taskCtx, found, err := o.store.TaskContext(ctx, msg.TaskID)
	if err != nil {
		return fmt.Errorf("load task context %s: %w", msg.TaskID, err)
	}
	if !found {
		// Progress for a task nobody is executing; drop it rather than
		// fabricate a context entry.
		o.logger.WithTask(msg.TaskID).Warn("Dropping progress for unknown task context")
		return nil
	}
	for k, v := range msg.Payload {
		taskCtx[k] = v
	}
	ttl := secondsToDuration(o.cfg.Agent.ContextTTLSeconds)
	if err := o.store.SetTaskContext(ctx, msg.TaskID, taskCtx, ttl); err != nil {
		return fmt.Errorf("persist task context %s: %w", msg.TaskID, err)
	}
	o.emit(TaskEvent{TaskID: msg.TaskID, Status: models.TaskStatusInProgress, Agent: msg.SourceAgent})
	return nil
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// SystemHealth aggregates collaborator health. Store or broker down means
// unhealthy; only the secret store being down degrades without failing.
func (o *Orchestrator) SystemHealth(ctx context.Context) map[string]interface{} {
	status := "healthy"
	components := map[string]map[string]string{}

	if err := o.store.Ping(ctx); err != nil {
		components["store"] = map[string]string{"status": "unreachable: " + err.Error()}
		status = "unhealthy"
	} else {
		components["store"] = map[string]string{"status": "ok"}
	}
	if err := o.broker.Ping(ctx); err != nil {
		components["broker"] = map[string]string{"status": "unreachable: " + err.Error()}
		status = "unhealthy"
	} else {
		components["broker"] = map[string]string{"status": "ok"}
	}
	if o.secrets != nil {
		if err := o.secrets.Ping(ctx); err != nil {
			components["secrets"] = map[string]string{"status": "unreachable: " + err.Error()}
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			components["secrets"] = map[string]string{"status": "ok"}
		}
	}

	agents, err := o.store.AllAgentStatuses(ctx)
	if err != nil {
		agents = map[string]string{}
	}

	return map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"components": components,
		"agents":     agents,
	}
}

// Start verifies the critical collaborators and subscribes the orchestrator
// to both channels in its own consumer group. A secret store failure is
// logged but does not block startup.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.store.Ping(ctx); err != nil {
		return fmt.Errorf("state store unreachable: %w", err)
	}
	if err := o.broker.Ping(ctx); err != nil {
		return fmt.Errorf("broker unreachable: %w", err)
	}
	if o.secrets != nil {
		if err := o.secrets.Ping(ctx); err != nil {
			o.logger.WithError(models.ErrorInfo{Message: err.Error(), Type: "secret_store"}).Warn("Secret store unreachable, starting degraded")
		}
	}

	group := o.cfg.Databases.Kafka.GroupID + "-orchestrator"
	for _, channel := range []broker.Channel{broker.ChannelDefault, broker.ChannelHigh} {
		if err := o.broker.Consume(ctx, channel, group, o.HandleMessage); err != nil {
			return fmt.Errorf("subscribe orchestrator to %s: %w", channel, err)
		}
	}

	o.logger.Info("Orchestrator started")
	return nil
}

// Stop shuts down every spawned agent runtime.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	runtimes := make([]*agent.Runtime, len(o.runtimes))
	copy(runtimes, o.runtimes)
	o.mu.Unlock()

	var firstErr error
	for _, runtime := range runtimes {
		if err := runtime.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	o.logger.Info("Orchestrator stopped")
	return firstErr
}
