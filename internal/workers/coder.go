package workers

import (
	"context"
	"fmt"

	"github.com/thedomainai/agentic-stack/internal/agent"
	"github.com/thedomainai/agentic-stack/internal/models"
)

// Coder generates and modifies code: generation from specifications, bug
// fixing, refactoring and documentation.
type Coder struct {
	gen TextGenerator
}

var _ agent.Agent = (*Coder)(nil)

func NewCoder(gen TextGenerator) *Coder {
	return &Coder{gen: gen}
}

func (c *Coder) Metadata() agent.Metadata {
	return agent.Metadata{
		Type: "coder",
		Capabilities: []string{
			models.ActionTaskAssign,
			"code.generate",
			"code.fix",
			"code.refactor",
			"code.document",
		},
	}
}

func (c *Coder) ExecuteTask(ctx context.Context, msg *models.TaskMessage) models.TaskResult {
	title := payloadString(msg.Payload, "title")
	description := payloadString(msg.Payload, "description")

	switch msg.Action {
	case models.ActionTaskAssign:
		prompt := fmt.Sprintf("You are a coding assistant. Analyze the following task and provide a solution.\n\nTask: %s\n\nDescription: %s\n\nIf code is required, provide complete, working code.", title, description)
		return runPrompt(ctx, c.gen, prompt, title)
	case "code.generate":
		prompt := fmt.Sprintf("Generate code for the following specification.\n\nSpecification: %s\n%s", title, description)
		return runPrompt(ctx, c.gen, prompt, title)
	case "code.fix":
		prompt := fmt.Sprintf("Fix the bug described below.\n\nBug report: %s\n%s\n\nCode:\n%s", title, description, payloadString(msg.Payload, "code"))
		return runPrompt(ctx, c.gen, prompt, title)
	case "code.refactor":
		prompt := fmt.Sprintf("Refactor the following code, keeping behavior identical.\n\nGoal: %s\n\nCode:\n%s", description, payloadString(msg.Payload, "code"))
		return runPrompt(ctx, c.gen, prompt, title)
	case "code.document":
		prompt := fmt.Sprintf("Write documentation for the following code.\n\nCode:\n%s", payloadString(msg.Payload, "code"))
		return runPrompt(ctx, c.gen, prompt, title)
	default:
		return unknownAction(msg.Action)
	}
}
