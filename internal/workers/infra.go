package workers

import (
	"context"
	"fmt"

	"github.com/thedomainai/agentic-stack/internal/agent"
	"github.com/thedomainai/agentic-stack/internal/models"
)

// Infra handles deployment, provisioning and platform operations tasks.
type Infra struct {
	gen TextGenerator
}

var _ agent.Agent = (*Infra)(nil)

func NewInfra(gen TextGenerator) *Infra {
	return &Infra{gen: gen}
}

func (i *Infra) Metadata() agent.Metadata {
	return agent.Metadata{
		Type: "infra",
		Capabilities: []string{
			models.ActionTaskAssign,
			"infra.deploy",
			"infra.provision",
			"infra.monitor",
			"docker.manage",
			"k8s.manage",
			"cicd.configure",
		},
	}
}

func (i *Infra) ExecuteTask(ctx context.Context, msg *models.TaskMessage) models.TaskResult {
	title := payloadString(msg.Payload, "title")
	description := payloadString(msg.Payload, "description")

	switch msg.Action {
	case models.ActionTaskAssign:
		prompt := fmt.Sprintf("You are an infrastructure engineer. Plan and describe how to carry out the following task.\n\nTask: %s\n\nDescription: %s", title, description)
		return runPrompt(ctx, i.gen, prompt, title)
	case "infra.deploy":
		prompt := fmt.Sprintf("Produce a deployment plan for the following service.\n\nService: %s\n%s", title, description)
		return runPrompt(ctx, i.gen, prompt, title)
	case "infra.provision":
		prompt := fmt.Sprintf("Describe the resources to provision for the following environment.\n\nEnvironment: %s\n%s", title, description)
		return runPrompt(ctx, i.gen, prompt, title)
	case "infra.monitor":
		prompt := fmt.Sprintf("Define monitoring and alerting for the following system.\n\nSystem: %s\n%s", title, description)
		return runPrompt(ctx, i.gen, prompt, title)
	case "docker.manage":
		prompt := fmt.Sprintf("Write the container configuration for the following workload.\n\nWorkload: %s\n%s", title, description)
		return runPrompt(ctx, i.gen, prompt, title)
	case "k8s.manage":
		prompt := fmt.Sprintf("Write the Kubernetes manifests for the following workload.\n\nWorkload: %s\n%s", title, description)
		return runPrompt(ctx, i.gen, prompt, title)
	case "cicd.configure":
		prompt := fmt.Sprintf("Configure a CI/CD pipeline for the following project.\n\nProject: %s\n%s", title, description)
		return runPrompt(ctx, i.gen, prompt, title)
	default:
		return unknownAction(msg.Action)
	}
}
