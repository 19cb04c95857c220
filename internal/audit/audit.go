package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thedomainai/agentic-stack/internal/config"
	"github.com/thedomainai/agentic-stack/internal/models"
)

const (
	decisionsFile   = "DECISIONS.jsonl"
	failuresFile    = "FAILURES.jsonl"
	discoveriesFile = "DISCOVERIES.jsonl"
	velocityFile    = "VELOCITY.jsonl"
)

// Log is the append-only, process-shared sink for decision, failure and
// discovery records plus velocity metrics. One JSON object per line;
// entries are never mutated or deleted after append.
type Log struct {
	memoryDir  string
	metricsDir string
	mu         sync.Mutex
}

// NewLog creates the audit directories when missing and returns the sink.
func NewLog(cfg *config.AuditConfig) (*Log, error) {
	for _, dir := range []string{cfg.MemoryDir, cfg.MetricsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建审计目录 %s 失败: %w", dir, err)
		}
	}
	return &Log{memoryDir: cfg.MemoryDir, metricsDir: cfg.MetricsDir}, nil
}

func (l *Log) append(dir, file string, entry interface{}) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化审计条目失败: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(dir, file), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("打开审计日志 %s 失败: %w", file, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("写入审计日志 %s 失败: %w", file, err)
	}
	return nil
}

// Decision appends a decision record.
func (l *Log) Decision(agent, taskID, decisionType, context, chosenOption, rationale string, optionsConsidered []map[string]interface{}) error {
	if optionsConsidered == nil {
		optionsConsidered = []map[string]interface{}{}
	}
	entry := models.DecisionEntry{
		Timestamp:         time.Now().UTC(),
		DecisionID:        uuid.New().String(),
		Agent:             agent,
		TaskID:            taskID,
		DecisionType:      decisionType,
		Context:           context,
		OptionsConsidered: optionsConsidered,
		ChosenOption:      chosenOption,
		Rationale:         rationale,
		Outcome:           "pending",
	}
	return l.append(l.memoryDir, decisionsFile, entry)
}

// Failure appends a failure record.
func (l *Log) Failure(agent, taskID, severity, category, message string, context map[string]interface{}) error {
	if context == nil {
		context = map[string]interface{}{}
	}
	entry := models.FailureEntry{
		Timestamp: time.Now().UTC(),
		FailureID: uuid.New().String(),
		Agent:     agent,
		TaskID:    taskID,
		Severity:  severity,
		Category:  category,
		Message:   message,
		Context:   context,
		Resolved:  false,
	}
	return l.append(l.memoryDir, failuresFile, entry)
}

// Discovery appends a discovery record.
func (l *Log) Discovery(agent, taskID, category, title, description string, evidence []string, confidence float64, tags []string) error {
	if evidence == nil {
		evidence = []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	entry := models.DiscoveryEntry{
		Timestamp:   time.Now().UTC(),
		DiscoveryID: uuid.New().String(),
		Agent:       agent,
		TaskID:      taskID,
		Category:    category,
		Title:       title,
		Description: description,
		Evidence:    evidence,
		Confidence:  confidence,
		Tags:        tags,
	}
	return l.append(l.memoryDir, discoveriesFile, entry)
}

// Velocity appends a velocity metric for a finished task.
func (l *Log) Velocity(taskID, agent string, durationMS int64, success bool) error {
	entry := models.VelocityMetric{
		Timestamp:  time.Now().UTC(),
		TaskID:     taskID,
		Agent:      agent,
		DurationMS: durationMS,
		Success:    success,
	}
	return l.append(l.metricsDir, velocityFile, entry)
}
