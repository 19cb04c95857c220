package models

// ErrorInfo 存储了关于错误的结构化信息，供日志采集与分析使用。
type ErrorInfo struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"` // 错误的类型，例如 "broker_error", "store_error"
	Stack   string `json:"stack,omitempty"`
}
