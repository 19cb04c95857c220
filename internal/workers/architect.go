package workers

import (
	"context"
	"fmt"

	"github.com/thedomainai/agentic-stack/internal/agent"
	"github.com/thedomainai/agentic-stack/internal/models"
)

// Architect reviews and produces system designs and analyzes technical
// decisions.
type Architect struct {
	gen TextGenerator
}

var _ agent.Agent = (*Architect)(nil)

func NewArchitect(gen TextGenerator) *Architect {
	return &Architect{gen: gen}
}

func (a *Architect) Metadata() agent.Metadata {
	return agent.Metadata{
		Type: "architect",
		Capabilities: []string{
			models.ActionTaskAssign,
			"design.review",
			"design.create",
			"code.review",
			"refactor.recommend",
			"decision.analyze",
		},
	}
}

func (a *Architect) ExecuteTask(ctx context.Context, msg *models.TaskMessage) models.TaskResult {
	title := payloadString(msg.Payload, "title")
	description := payloadString(msg.Payload, "description")

	switch msg.Action {
	case models.ActionTaskAssign:
		prompt := fmt.Sprintf("You are a software architect. Analyze the following task and provide architectural guidance.\n\nTask: %s\n\nDescription: %s", title, description)
		return runPrompt(ctx, a.gen, prompt, title)
	case "design.review":
		prompt := fmt.Sprintf("Review the following design and point out risks and gaps.\n\nDesign:\n%s", payloadString(msg.Payload, "design"))
		return runPrompt(ctx, a.gen, prompt, title)
	case "design.create":
		prompt := fmt.Sprintf("Create a system design for the following requirements.\n\nRequirements: %s\n%s", title, description)
		return runPrompt(ctx, a.gen, prompt, title)
	case "code.review":
		prompt := fmt.Sprintf("Review the following code for structure and maintainability.\n\nCode:\n%s", payloadString(msg.Payload, "code"))
		return runPrompt(ctx, a.gen, prompt, title)
	case "refactor.recommend":
		prompt := fmt.Sprintf("Recommend refactorings for the following code.\n\nCode:\n%s", payloadString(msg.Payload, "code"))
		return runPrompt(ctx, a.gen, prompt, title)
	case "decision.analyze":
		prompt := fmt.Sprintf("Analyze the following technical decision and list trade-offs.\n\nDecision: %s\n%s", title, description)
		return runPrompt(ctx, a.gen, prompt, title)
	default:
		return unknownAction(msg.Action)
	}
}
