package workers

import (
	"context"
	"fmt"

	"github.com/thedomainai/agentic-stack/internal/agent"
	"github.com/thedomainai/agentic-stack/internal/models"
)

// Researcher gathers and condenses information for other agents.
type Researcher struct {
	gen TextGenerator
}

var _ agent.Agent = (*Researcher)(nil)

func NewResearcher(gen TextGenerator) *Researcher {
	return &Researcher{gen: gen}
}

func (r *Researcher) Metadata() agent.Metadata {
	return agent.Metadata{
		Type: "researcher",
		Capabilities: []string{
			models.ActionTaskAssign,
			"research.search",
			"research.analyze",
			"research.summarize",
			"research.compare",
			"docs.search",
		},
	}
}

func (r *Researcher) ExecuteTask(ctx context.Context, msg *models.TaskMessage) models.TaskResult {
	title := payloadString(msg.Payload, "title")
	description := payloadString(msg.Payload, "description")

	switch msg.Action {
	case models.ActionTaskAssign:
		prompt := fmt.Sprintf("You are a research assistant. Investigate the following topic and report your findings.\n\nTopic: %s\n\nDetails: %s", title, description)
		return runPrompt(ctx, r.gen, prompt, title)
	case "research.search":
		prompt := fmt.Sprintf("Search for information on the following query and list relevant sources.\n\nQuery: %s", payloadString(msg.Payload, "query"))
		return runPrompt(ctx, r.gen, prompt, title)
	case "research.analyze":
		prompt := fmt.Sprintf("Analyze the following material and extract the key points.\n\nMaterial:\n%s", payloadString(msg.Payload, "material"))
		return runPrompt(ctx, r.gen, prompt, title)
	case "research.summarize":
		prompt := fmt.Sprintf("Summarize the following content in a few paragraphs.\n\nContent:\n%s", payloadString(msg.Payload, "content"))
		return runPrompt(ctx, r.gen, prompt, title)
	case "research.compare":
		prompt := fmt.Sprintf("Compare the following options and recommend one.\n\nOptions:\n%s", payloadString(msg.Payload, "options"))
		return runPrompt(ctx, r.gen, prompt, title)
	case "docs.search":
		prompt := fmt.Sprintf("Search documentation for the following question and answer it.\n\nQuestion: %s", payloadString(msg.Payload, "query"))
		return runPrompt(ctx, r.gen, prompt, title)
	default:
		return unknownAction(msg.Action)
	}
}
