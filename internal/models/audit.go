package models

import "time"

// 审计日志条目。所有条目追加后不可变、不可删除，每行一个 JSON 对象。

// DecisionEntry 记录一次决策。
type DecisionEntry struct {
	Timestamp         time.Time                `json:"timestamp"`
	DecisionID        string                   `json:"decision_id"`
	Agent             string                   `json:"agent"`
	TaskID            string                   `json:"task_id,omitempty"`
	DecisionType      string                   `json:"decision_type"`
	Context           string                   `json:"context"`
	OptionsConsidered []map[string]interface{} `json:"options_considered"`
	ChosenOption      string                   `json:"chosen_option"`
	Rationale         string                   `json:"rationale"`
	Outcome           string                   `json:"outcome"`
}

// FailureEntry 记录一次失败。
type FailureEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	FailureID string                 `json:"failure_id"`
	Agent     string                 `json:"agent"`
	TaskID    string                 `json:"task_id,omitempty"`
	Severity  string                 `json:"severity"`
	Category  string                 `json:"category"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context"`
	Resolved  bool                   `json:"resolved"`
}

// DiscoveryEntry 记录一次发现。
type DiscoveryEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	DiscoveryID string    `json:"discovery_id"`
	Agent       string    `json:"agent"`
	TaskID      string    `json:"task_id,omitempty"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Evidence    []string  `json:"evidence"`
	Confidence  float64   `json:"confidence"`
	Tags        []string  `json:"tags"`
}

// VelocityMetric 记录一次任务完成的速度指标。
type VelocityMetric struct {
	Timestamp  time.Time `json:"timestamp"`
	TaskID     string    `json:"task_id"`
	Agent      string    `json:"agent"`
	DurationMS int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
}
