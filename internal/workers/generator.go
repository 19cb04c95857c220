package workers

import (
	"context"
	"fmt"

	"github.com/thedomainai/agentic-stack/internal/models"
)

// TextGenerator is the generative-text collaborator every worker delegates
// to: a pure function from prompt to text. Construction and credentials live
// outside the coordination core.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function into a TextGenerator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// runPrompt calls the generator and wraps its output in a task result.
func runPrompt(ctx context.Context, gen TextGenerator, prompt, title string) models.TaskResult {
	if gen == nil {
		return models.FailureResult("no text generator configured")
	}
	response, err := gen.Generate(ctx, prompt)
	if err != nil {
		return models.FailureResult(fmt.Sprintf("text generation failed: %v", err))
	}
	return models.SuccessResult(map[string]interface{}{
		"response":   response,
		"task_title": title,
	})
}

// payloadString reads a string field from an opaque payload map.
func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func unknownAction(action string) models.TaskResult {
	return models.FailureResult("Unknown action: " + action)
}
