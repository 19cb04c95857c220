package models

// AgentState 定义了 Agent 运行时状态机的几种状态。
// 状态由 Agent 自己写入共享存储，编排器只读取做健康汇总，
// 过期数据由 Agent 负责，存储层不做仲裁。
type AgentState string

const (
	AgentStateIdle        AgentState = "idle"
	AgentStateBusy        AgentState = "busy"
	AgentStateError       AgentState = "error"
	AgentStateOffline     AgentState = "offline"
	AgentStateMaintenance AgentState = "maintenance"
)
