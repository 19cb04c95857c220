package orchestrator

import (
	"strings"

	"github.com/thedomainai/agentic-stack/internal/models"
)

// routingRule binds a set of trigger keywords to an agent type. Rules are
// evaluated in declaration order and the first hit wins, so overlapping
// keywords resolve deterministically.
type routingRule struct {
	agentType string
	keywords  []string
}

var defaultRoutingRules = []routingRule{
	{agentType: "architect", keywords: []string{"architecture", "design", "review", "refactor"}},
	{agentType: "coder", keywords: []string{"implement", "code", "fix", "bug", "feature"}},
	{agentType: "researcher", keywords: []string{"research", "search", "find", "investigate"}},
	{agentType: "tester", keywords: []string{"test", "validate", "verify", "coverage"}},
	{agentType: "infra", keywords: []string{"deploy", "infrastructure", "docker", "kubernetes"}},
}

// Router picks the agent type for a task from its title and description.
type Router struct {
	rules       []routingRule
	defaultType string
}

// NewRouter builds a router with the standard rule table and the configured
// fallback agent type.
func NewRouter(defaultType string) *Router {
	return &Router{rules: defaultRoutingRules, defaultType: defaultType}
}

// Route returns the agent type for the task. Matching is case-insensitive
// substring matching over title and description; no rule hit falls back to
// the default type. Same input, same output.
func (r *Router) Route(task *models.Task) string {
	text := strings.ToLower(task.Title + " " + task.Description)
	for _, rule := range r.rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(text, keyword) {
				return rule.agentType
			}
		}
	}
	return r.defaultType
}
