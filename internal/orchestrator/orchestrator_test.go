package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	agentpkg "github.com/thedomainai/agentic-stack/internal/agent"
	"github.com/thedomainai/agentic-stack/internal/audit"
	"github.com/thedomainai/agentic-stack/internal/broker"
	"github.com/thedomainai/agentic-stack/internal/config"
	"github.com/thedomainai/agentic-stack/internal/models"
	"github.com/thedomainai/agentic-stack/internal/secrets"
	"github.com/thedomainai/agentic-stack/internal/statestore"
	"github.com/thedomainai/agentic-stack/internal/workers"
)

type fixture struct {
	orc        *Orchestrator
	store      *statestore.MemoryStore
	broker     *broker.ChannelBroker
	secrets    *secrets.MemoryStore
	metricsDir string
	memoryDir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := statestore.NewMemoryStore()
	b := broker.NewChannelBroker(32)
	t.Cleanup(func() { b.Close() })
	secretStore := secrets.NewMemoryStore()

	base := t.TempDir()
	memoryDir := filepath.Join(base, "memory")
	metricsDir := filepath.Join(base, "metrics")
	auditLog, err := audit.NewLog(&config.AuditConfig{MemoryDir: memoryDir, MetricsDir: metricsDir})
	if err != nil {
		t.Fatalf("NewLog error = %v", err)
	}

	cfg := &config.AppConfig{
		Orchestrator: config.OrchestratorConfig{DefaultAgentType: "coder"},
		Agent:        config.AgentConfig{HeartbeatIntervalSeconds: 1, ContextTTLSeconds: 60, DedupTTLSeconds: 60},
		Databases: config.DatabaseConfigs{
			Kafka: config.KafkaConfig{GroupID: "test"},
		},
	}

	return &fixture{
		orc:        New(store, b, secretStore, auditLog, cfg),
		store:      store,
		broker:     b,
		secrets:    secretStore,
		metricsDir: metricsDir,
		memoryDir:  memoryDir,
	}
}

// capture subscribes a consumer group on a channel and returns the feed.
func (f *fixture) capture(t *testing.T, channel broker.Channel, group string) chan *models.TaskMessage {
	t.Helper()
	feed := make(chan *models.TaskMessage, 32)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := f.broker.Consume(ctx, channel, group, func(_ context.Context, msg *models.TaskMessage) error {
		feed <- msg
		return nil
	}); err != nil {
		t.Fatalf("Consume error = %v", err)
	}
	return feed
}

func waitMessage(t *testing.T, feed chan *models.TaskMessage) *models.TaskMessage {
	t.Helper()
	select {
	case msg := <-feed:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message arrived")
		return nil
	}
}

func TestRouteTaskKeywordRules(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		title string
		want  string
	}{
		{"Design the service architecture", "architect"},
		{"Implement login button", "coder"},
		{"Fix the crash on save", "coder"},
		{"Research caching options", "researcher"},
		{"Verify coverage of the parser", "tester"},
		{"Deploy to kubernetes", "infra"},
		{"Write release notes", "coder"}, // no rule hit, default type
	}
	for _, c := range cases {
		task := models.NewTask("t-1", c.title, "", models.TaskPriorityNormal, nil, nil)
		if got := f.orc.RouteTask(task); got != c.want {
			t.Errorf("RouteTask(%q) = %s, want %s", c.title, got, c.want)
		}
	}
}

func TestRouteTaskIsDeterministic(t *testing.T) {
	f := newFixture(t)
	// "test" and "deploy" both appear; rule order decides, every time.
	task := models.NewTask("t-1", "Test the deploy pipeline", "", models.TaskPriorityNormal, nil, nil)
	first := f.orc.RouteTask(task)
	for i := 0; i < 10; i++ {
		if got := f.orc.RouteTask(task); got != first {
			t.Fatalf("routing flapped: %s then %s", first, got)
		}
	}
	if first != "tester" {
		t.Errorf("expected tester by rule order, got %s", first)
	}
}

func TestSubmitTaskQueuesAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	feed := f.capture(t, broker.ChannelDefault, "test-agents")

	task, err := f.orc.SubmitTask(ctx, TaskSpec{Title: "Implement login button", Description: "Add a button"})
	if err != nil {
		t.Fatalf("SubmitTask error = %v", err)
	}

	if task.Status != models.TaskStatusQueued {
		t.Errorf("expected queued, got %s", task.Status)
	}
	if task.AssignedAgent != "coder" {
		t.Errorf("expected coder, got %s", task.AssignedAgent)
	}

	msg := waitMessage(t, feed)
	if msg.Action != models.ActionTaskAssign {
		t.Errorf("expected task.assign, got %s", msg.Action)
	}
	if msg.TargetAgent != "coder" || msg.TaskID != task.TaskID {
		t.Error("assignment message routing is wrong")
	}
	if msg.Payload["title"] != "Implement login button" {
		t.Error("assignment payload must carry the task title")
	}

	// The snapshot survives independently of the message.
	loaded, found, err := f.orc.GetTask(ctx, task.TaskID)
	if err != nil || !found {
		t.Fatalf("GetTask = (%v, %v), want found", found, err)
	}
	if loaded.Status != models.TaskStatusQueued {
		t.Errorf("persisted snapshot has status %s, want queued", loaded.Status)
	}
}

func TestCriticalTaskRidesHighChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	highFeed := f.capture(t, broker.ChannelHigh, "test-agents")
	defaultFeed := f.capture(t, broker.ChannelDefault, "test-agents")

	if _, err := f.orc.SubmitTask(ctx, TaskSpec{Title: "Fix production outage", Priority: models.TaskPriorityCritical}); err != nil {
		t.Fatalf("SubmitTask error = %v", err)
	}

	msg := waitMessage(t, highFeed)
	if msg.Priority != models.MessagePriorityHigh {
		t.Errorf("expected high message priority, got %s", msg.Priority)
	}
	select {
	case <-defaultFeed:
		t.Error("critical task must not appear on the default channel")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleMessageCompletesTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var events []TaskEvent
	f.orc.SetEventSink(func(event TaskEvent) { events = append(events, event) })

	task, err := f.orc.SubmitTask(ctx, TaskSpec{Title: "Implement login button"})
	if err != nil {
		t.Fatalf("SubmitTask error = %v", err)
	}

	reply := models.NewTaskMessage(task.TaskID, models.ActionTaskComplete, map[string]interface{}{
		"success":     true,
		"duration_ms": float64(1500),
	}, "coder-abc", orchestratorID, models.MessagePriorityNormal, "")
	if err := f.orc.HandleMessage(ctx, reply); err != nil {
		t.Fatalf("HandleMessage error = %v", err)
	}

	loaded, _, _ := f.orc.GetTask(ctx, task.TaskID)
	if loaded.Status != models.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", loaded.Status)
	}
	if loaded.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	last := events[len(events)-1]
	if last.Status != models.TaskStatusCompleted || last.Agent != "coder-abc" {
		t.Errorf("unexpected final event: %+v", last)
	}
}

func TestHandleMessageFailsTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.orc.SubmitTask(ctx, TaskSpec{Title: "Implement login button"})
	if err != nil {
		t.Fatalf("SubmitTask error = %v", err)
	}

	reply := models.NewTaskMessage(task.TaskID, models.ActionTaskFail, map[string]interface{}{
		"success": false,
		"error":   "generation backend down",
	}, "coder-abc", orchestratorID, models.MessagePriorityNormal, "")
	if err := f.orc.HandleMessage(ctx, reply); err != nil {
		t.Fatalf("HandleMessage error = %v", err)
	}

	loaded, _, _ := f.orc.GetTask(ctx, task.TaskID)
	if loaded.Status != models.TaskStatusFailed {
		t.Errorf("expected failed, got %s", loaded.Status)
	}
}

func TestHandleMessageUnknownTaskIsDropped(t *testing.T) {
	f := newFixture(t)

	reply := models.NewTaskMessage("no-such-task", models.ActionTaskComplete, map[string]interface{}{"success": true}, "coder-abc", orchestratorID, models.MessagePriorityNormal, "")
	if err := f.orc.HandleMessage(context.Background(), reply); err != nil {
		t.Errorf("a reply for an unknown task must be dropped, got error %v", err)
	}
}

func TestHandleMessageUnknownActionIsDropped(t *testing.T) {
	f := newFixture(t)

	msg := models.NewTaskMessage("t-1", "task.pause", nil, "coder-abc", orchestratorID, models.MessagePriorityNormal, "")
	if err := f.orc.HandleMessage(context.Background(), msg); err != nil {
		t.Errorf("an unknown action must be dropped, got error %v", err)
	}
}

func TestStaleReplyDoesNotRegress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.orc.SubmitTask(ctx, TaskSpec{Title: "Implement login button"})
	if err != nil {
		t.Fatalf("SubmitTask error = %v", err)
	}

	complete := models.NewTaskMessage(task.TaskID, models.ActionTaskComplete, map[string]interface{}{"success": true}, "coder-abc", orchestratorID, models.MessagePriorityNormal, "")
	if err := f.orc.HandleMessage(ctx, complete); err != nil {
		t.Fatalf("HandleMessage error = %v", err)
	}

	// A redelivered or late failure reply must not flip the terminal state.
	stale := models.NewTaskMessage(task.TaskID, models.ActionTaskFail, map[string]interface{}{"success": false}, "coder-abc", orchestratorID, models.MessagePriorityNormal, "")
	if err := f.orc.HandleMessage(ctx, stale); err != nil {
		t.Fatalf("HandleMessage(stale) error = %v", err)
	}

	loaded, _, _ := f.orc.GetTask(ctx, task.TaskID)
	if loaded.Status != models.TaskStatusCompleted {
		t.Errorf("terminal state regressed to %s", loaded.Status)
	}
}

func TestProgressUpdatesContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.orc.SubmitTask(ctx, TaskSpec{Title: "Implement login button"})
	if err != nil {
		t.Fatalf("SubmitTask error = %v", err)
	}

	// The executing runtime owns the context entry; progress only amends it.
	if err := f.store.SetTaskContext(ctx, task.TaskID, map[string]interface{}{
		"assigned_agent": "coder-abc",
	}, time.Minute); err != nil {
		t.Fatalf("SetTaskContext error = %v", err)
	}

	progress := models.NewTaskMessage(task.TaskID, models.ActionTaskProgress, map[string]interface{}{
		"stage": "generating",
	}, "coder-abc", orchestratorID, models.MessagePriorityNormal, "")
	if err := f.orc.HandleMessage(ctx, progress); err != nil {
		t.Fatalf("HandleMessage error = %v", err)
	}

	taskCtx, found, err := f.store.TaskContext(ctx, task.TaskID)
	if err != nil || !found {
		t.Fatalf("TaskContext = (%v, %v), want found", found, err)
	}
	if taskCtx["stage"] != "generating" {
		t.Error("progress payload must land in the task context")
	}
	if taskCtx["assigned_agent"] != "coder-abc" {
		t.Error("progress must not clobber the existing context")
	}
}

func TestProgressWithoutContextIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	progress := models.NewTaskMessage("t-ghost", models.ActionTaskProgress, map[string]interface{}{
		"stage": "generating",
	}, "coder-abc", orchestratorID, models.MessagePriorityNormal, "")
	if err := f.orc.HandleMessage(ctx, progress); err != nil {
		t.Fatalf("HandleMessage error = %v", err)
	}

	if _, found, _ := f.store.TaskContext(ctx, "t-ghost"); found {
		t.Error("progress for an unexecuted task must not create a context entry")
	}
}

func TestSpawnAgentUnknownType(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orc.SpawnAgent(context.Background(), "alchemist"); err == nil {
		t.Error("expected an unknown agent type to be an error")
	}
}

func TestSpawnAgentRunsRegisteredWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gen := workers.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		return "done", nil
	})
	f.orc.RegisterAgentType("coder", func() agentpkg.Agent { return workers.NewCoder(gen) })

	runtime, err := f.orc.SpawnAgent(ctx, "coder")
	if err != nil {
		t.Fatalf("SpawnAgent error = %v", err)
	}
	if runtime.State() != models.AgentStateIdle {
		t.Errorf("expected a spawned agent to be idle, got %s", runtime.State())
	}

	// End to end: submission flows through the agent and back to completed.
	if err := f.orc.Start(ctx); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	task, err := f.orc.SubmitTask(ctx, TaskSpec{Title: "Implement login button"})
	if err != nil {
		t.Fatalf("SubmitTask error = %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		loaded, _, err := f.orc.GetTask(ctx, task.TaskID)
		if err != nil {
			t.Fatalf("GetTask error = %v", err)
		}
		if loaded.Status == models.TaskStatusCompleted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("task never completed, stuck at %s", loaded.Status)
		case <-time.After(20 * time.Millisecond):
		}
	}

	if err := f.orc.Stop(ctx); err != nil {
		t.Fatalf("Stop error = %v", err)
	}
	state, _, _ := f.store.AgentStatus(ctx, runtime.ID)
	if state != string(models.AgentStateOffline) {
		t.Errorf("expected offline after stop, got %s", state)
	}
}

func TestSystemHealthStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	health := f.orc.SystemHealth(ctx)
	if health["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", health["status"])
	}
	components := health["components"].(map[string]map[string]string)
	for _, name := range []string{"store", "broker", "secrets"} {
		if components[name]["status"] != "ok" {
			t.Errorf("expected component %s ok, got %q", name, components[name]["status"])
		}
	}

	// A dead secret store only degrades.
	f.secrets.Unreachable = true
	health = f.orc.SystemHealth(ctx)
	if health["status"] != "degraded" {
		t.Errorf("expected degraded with secrets down, got %v", health["status"])
	}

	// A dead state store is fatal to health.
	f.store.Close()
	health = f.orc.SystemHealth(ctx)
	if health["status"] != "unhealthy" {
		t.Errorf("expected unhealthy with the store down, got %v", health["status"])
	}
}

func TestCreateTaskParentReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orc.CreateTask(ctx, TaskSpec{Title: "Add retry child", ParentTaskID: "no-such-task"}); err == nil {
		t.Fatal("expected an error for an unknown parent task")
	}

	parent, err := f.orc.CreateTask(ctx, TaskSpec{Title: "Build retry support"})
	if err != nil {
		t.Fatal(err)
	}
	child, err := f.orc.CreateTask(ctx, TaskSpec{Title: "Add retry child", ParentTaskID: parent.TaskID})
	if err != nil {
		t.Fatal(err)
	}
	if child.ParentTaskID != parent.TaskID {
		t.Errorf("expected parent %s, got %s", parent.TaskID, child.ParentTaskID)
	}
}
