package models

import (
	"fmt"
	"time"
)

// TaskStatus 定义了任务的几种可能状态。
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskPriority 定义了任务优先级。high 与 critical 会被路由到高优先级通道。
type TaskPriority string

const (
	TaskPriorityLow      TaskPriority = "low"
	TaskPriorityNormal   TaskPriority = "normal"
	TaskPriorityHigh     TaskPriority = "high"
	TaskPriorityCritical TaskPriority = "critical"
)

// statusRank 给出状态在生命周期中的序号，用于校验单调推进。
// completed 与 failed 为同级终态。
var statusRank = map[TaskStatus]int{
	TaskStatusPending:    0,
	TaskStatusQueued:     1,
	TaskStatusInProgress: 2,
	TaskStatusCompleted:  3,
	TaskStatusFailed:     3,
}

// Task 是编排器端到端跟踪的工作单元。任务只由编排器创建和变更，
// 从不物理删除，保留用于审计。
type Task struct {
	TaskID        string                 `json:"task_id"`        // 创建时分配一次，之后不可变、不复用。
	Title         string                 `json:"title"`          // 任务标题。
	Description   string                 `json:"description"`    // 任务描述。
	Status        TaskStatus             `json:"status"`         // 当前状态。
	Priority      TaskPriority           `json:"priority"`       // 任务优先级。
	AssignedAgent string                 `json:"assigned_agent"` // 被指派的 Agent 类型或实例 ID，可为空。
	ParentTaskID  string                 `json:"parent_task_id"` // 父任务的弱引用，不做级联删除。
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	Tags          []string               `json:"tags"`     // 有序标签集合。
	Metadata      map[string]interface{} `json:"metadata"` // 原样透传给处理器的键值对。
}

// NewTask 创建一个处于 pending 状态的新任务。
func NewTask(taskID, title, description string, priority TaskPriority, tags []string, metadata map[string]interface{}) *Task {
	now := time.Now().UTC()
	if priority == "" {
		priority = TaskPriorityNormal
	}
	if tags == nil {
		tags = []string{}
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &Task{
		TaskID:      taskID,
		Title:       title,
		Description: description,
		Status:      TaskStatusPending,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        tags,
		Metadata:    metadata,
	}
}

// TransitionTo 将任务状态沿 pending→queued→in_progress→{completed|failed}
// 单调推进，拒绝任何回退边。成功时刷新 updated_at 并在进入终态时记录 completed_at。
func (t *Task) TransitionTo(status TaskStatus) error {
	newRank, ok := statusRank[status]
	if !ok {
		return fmt.Errorf("未知的任务状态: %s", status)
	}
	oldRank := statusRank[t.Status]
	if newRank <= oldRank {
		return fmt.Errorf("非法的状态迁移: %s -> %s", t.Status, status)
	}

	now := time.Now().UTC()
	t.Status = status
	t.UpdatedAt = now
	switch status {
	case TaskStatusInProgress:
		t.StartedAt = &now
	case TaskStatusCompleted, TaskStatusFailed:
		t.CompletedAt = &now
	}
	return nil
}

// IsHighPriority 报告该任务是否应走高优先级通道。
func (t *Task) IsHighPriority() bool {
	return t.Priority == TaskPriorityHigh || t.Priority == TaskPriorityCritical
}
