package workers

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/thedomainai/agentic-stack/internal/agent"
	"github.com/thedomainai/agentic-stack/internal/models"
)

func echoGenerator() TextGenerator {
	return GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	})
}

func TestWorkerCatalog(t *testing.T) {
	gen := echoGenerator()
	cases := []struct {
		worker   agent.Agent
		wantType string
		action   string
	}{
		{NewArchitect(gen), "architect", "design.review"},
		{NewCoder(gen), "coder", "code.generate"},
		{NewResearcher(gen), "researcher", "research.search"},
		{NewTester(gen), "tester", "test.generate"},
		{NewInfra(gen), "infra", "infra.deploy"},
	}

	for _, c := range cases {
		meta := c.worker.Metadata()
		if meta.Type != c.wantType {
			t.Errorf("expected type %s, got %s", c.wantType, meta.Type)
		}
		if !meta.CanHandle(models.ActionTaskAssign) {
			t.Errorf("%s must handle task.assign", meta.Type)
		}
		if !meta.CanHandle(c.action) {
			t.Errorf("%s must handle %s", meta.Type, c.action)
		}
		if meta.CanHandle("unknown.verb") {
			t.Errorf("%s must not claim unknown.verb", meta.Type)
		}
	}
}

func TestExecuteTaskBuildsPromptFromPayload(t *testing.T) {
	coder := NewCoder(echoGenerator())

	msg := models.NewTaskMessage("t-1", models.ActionTaskAssign, map[string]interface{}{
		"title":       "Implement login button",
		"description": "Add a login button to the navbar",
	}, "orchestrator", "coder", models.MessagePriorityNormal, "")

	result := coder.ExecuteTask(context.Background(), msg)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	response, _ := result.Result["response"].(string)
	if !strings.Contains(response, "Implement login button") {
		t.Error("prompt must include the task title")
	}
	if result.Result["task_title"] != "Implement login button" {
		t.Error("result must echo the task title")
	}
}

func TestUnknownActionIsHandledFailure(t *testing.T) {
	for _, worker := range []agent.Agent{
		NewArchitect(echoGenerator()),
		NewCoder(echoGenerator()),
		NewResearcher(echoGenerator()),
		NewTester(echoGenerator()),
		NewInfra(echoGenerator()),
	} {
		msg := models.NewTaskMessage("t-1", "unknown.verb", nil, "orchestrator", worker.Metadata().Type, models.MessagePriorityNormal, "")
		result := worker.ExecuteTask(context.Background(), msg)
		if result.Success {
			t.Errorf("%s accepted an unknown action", worker.Metadata().Type)
		}
		if result.Error != "Unknown action: unknown.verb" {
			t.Errorf("%s wrong error text: %q", worker.Metadata().Type, result.Error)
		}
	}
}

func TestGeneratorFailureBecomesFailureResult(t *testing.T) {
	failing := GeneratorFunc(func(_ context.Context, _ string) (string, error) {
		return "", fmt.Errorf("backend down")
	})
	coder := NewCoder(failing)

	msg := models.NewTaskMessage("t-1", models.ActionTaskAssign, map[string]interface{}{"title": "x"}, "orchestrator", "coder", models.MessagePriorityNormal, "")
	result := coder.ExecuteTask(context.Background(), msg)
	if result.Success {
		t.Fatal("expected a failure result when generation fails")
	}
	if !strings.Contains(result.Error, "backend down") {
		t.Errorf("error must carry the cause, got %q", result.Error)
	}
}

func TestNilGenerator(t *testing.T) {
	coder := NewCoder(nil)
	msg := models.NewTaskMessage("t-1", models.ActionTaskAssign, nil, "orchestrator", "coder", models.MessagePriorityNormal, "")
	result := coder.ExecuteTask(context.Background(), msg)
	if result.Success {
		t.Fatal("expected a failure result without a generator")
	}
}
