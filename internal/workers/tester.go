package workers

import (
	"context"
	"fmt"

	"github.com/thedomainai/agentic-stack/internal/agent"
	"github.com/thedomainai/agentic-stack/internal/models"
)

// Tester generates and evaluates tests and reproduces reported bugs.
type Tester struct {
	gen TextGenerator
}

var _ agent.Agent = (*Tester)(nil)

func NewTester(gen TextGenerator) *Tester {
	return &Tester{gen: gen}
}

func (t *Tester) Metadata() agent.Metadata {
	return agent.Metadata{
		Type: "tester",
		Capabilities: []string{
			models.ActionTaskAssign,
			"test.generate",
			"test.execute",
			"test.coverage",
			"test.validate",
			"bug.reproduce",
		},
	}
}

func (t *Tester) ExecuteTask(ctx context.Context, msg *models.TaskMessage) models.TaskResult {
	title := payloadString(msg.Payload, "title")
	description := payloadString(msg.Payload, "description")

	switch msg.Action {
	case models.ActionTaskAssign:
		prompt := fmt.Sprintf("You are a QA engineer. Work through the following task and report the verification outcome.\n\nTask: %s\n\nDescription: %s", title, description)
		return runPrompt(ctx, t.gen, prompt, title)
	case "test.generate":
		prompt := fmt.Sprintf("Generate test cases for the following code.\n\nCode:\n%s", payloadString(msg.Payload, "code"))
		return runPrompt(ctx, t.gen, prompt, title)
	case "test.execute":
		prompt := fmt.Sprintf("Execute the following test plan and report results.\n\nPlan:\n%s", payloadString(msg.Payload, "plan"))
		return runPrompt(ctx, t.gen, prompt, title)
	case "test.coverage":
		prompt := fmt.Sprintf("Assess test coverage for the following module and list the gaps.\n\nModule: %s\n%s", title, description)
		return runPrompt(ctx, t.gen, prompt, title)
	case "test.validate":
		prompt := fmt.Sprintf("Validate that the following change meets its acceptance criteria.\n\nChange: %s\n\nCriteria:\n%s", title, payloadString(msg.Payload, "criteria"))
		return runPrompt(ctx, t.gen, prompt, title)
	case "bug.reproduce":
		prompt := fmt.Sprintf("Reproduce the following bug report and describe the minimal reproduction steps.\n\nReport:\n%s", payloadString(msg.Payload, "report"))
		return runPrompt(ctx, t.gen, prompt, title)
	default:
		return unknownAction(msg.Action)
	}
}
