package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessagePriority 定义了消息在 Broker 上的逻辑优先级。
type MessagePriority string

const (
	MessagePriorityNormal MessagePriority = "normal"
	MessagePriorityHigh   MessagePriority = "high"
)

// 核心动作集合。编排器只识别这几个回复动作，其余动作会被记录并丢弃。
const (
	ActionTaskAssign   = "task.assign"
	ActionTaskComplete = "task.complete"
	ActionTaskFail     = "task.fail"
	ActionTaskProgress = "task.progress"
)

// TaskMessage 是跨进程边界传递的唯一通信单元。
type TaskMessage struct {
	// --- 标识 ---
	MessageID     string `json:"message_id"`     // 每次发送唯一的消息 ID。
	CorrelationID string `json:"correlation_id"` // 贯穿一次请求及其最终回复的关联 ID。
	TaskID        string `json:"task_id"`        // 所属任务的 ID。

	// --- 路由 ---
	SourceAgent string `json:"source_agent"` // 发送方 Agent 标识。
	TargetAgent string `json:"target_agent"` // 目标 Agent 类型或具体 ID。
	Action      string `json:"action"`       // 点分动词，例如 "task.assign"。

	// --- 载荷与控制 ---
	Payload   map[string]interface{} `json:"payload"`   // 不透明载荷，原样透传给处理器。
	Priority  MessagePriority        `json:"priority"`  // 逻辑优先级，normal 或 high。
	Timestamp time.Time              `json:"timestamp"` // 发送时间。
}

// NewTaskMessage 构造一条指令消息。
// correlationID 为空时生成新的关联 ID，否则继承调用方给定的 ID。
func NewTaskMessage(taskID, action string, payload map[string]interface{}, sourceAgent, targetAgent string, priority MessagePriority, correlationID string) *TaskMessage {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	if priority == "" {
		priority = MessagePriorityNormal
	}
	return &TaskMessage{
		MessageID:     uuid.New().String(),
		CorrelationID: correlationID,
		TaskID:        taskID,
		SourceAgent:   sourceAgent,
		TargetAgent:   targetAgent,
		Action:        action,
		Payload:       payload,
		Priority:      priority,
		Timestamp:     time.Now().UTC(),
	}
}

// NewReply 基于原始消息构造一条回复。关联 ID 与任务 ID 保持不变，
// 源和目标 Agent 互换。
func (m *TaskMessage) NewReply(action string, payload map[string]interface{}) *TaskMessage {
	reply := NewTaskMessage(m.TaskID, action, payload, m.TargetAgent, m.SourceAgent, m.Priority, m.CorrelationID)
	return reply
}

// Encode 将消息序列化为规范的 JSON 线格式。
func (m *TaskMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("序列化 TaskMessage 失败: %w", err)
	}
	return data, nil
}

// DecodeTaskMessage 从线格式解析消息，拒绝畸形输入。
func DecodeTaskMessage(data []byte) (*TaskMessage, error) {
	var m TaskMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("解析 TaskMessage 失败: %w", err)
	}
	if m.MessageID == "" {
		return nil, fmt.Errorf("TaskMessage 缺少 message_id")
	}
	if m.Action == "" {
		return nil, fmt.Errorf("TaskMessage 缺少 action")
	}
	return &m, nil
}
