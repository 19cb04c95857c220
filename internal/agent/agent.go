package agent

import (
	"context"

	"github.com/thedomainai/agentic-stack/internal/models"
)

// Agent 定义了所有工作 Agent 必须实现的接口。具体 Agent 类型
// 由生成时的类型标签选择，而不是继承层次。
type Agent interface {
	// Metadata 返回 Agent 的类型标签与能力列表。
	Metadata() Metadata
	// ExecuteTask 执行一条任务消息并返回类型化结果。
	// 执行错误折叠到 TaskResult 中，不向上抛出。
	ExecuteTask(ctx context.Context, msg *models.TaskMessage) models.TaskResult
}

// Metadata 描述一个 Agent 的类型与能力。
type Metadata struct {
	Type         string   // Agent 类型标签，例如 "coder"
	Capabilities []string // 支持的动作列表，例如 "code.generate"
}

// CanHandle 报告该 Agent 是否声明了对某个动作的支持。
func (m Metadata) CanHandle(action string) bool {
	for _, capability := range m.Capabilities {
		if capability == action {
			return true
		}
	}
	return false
}
