package models

// TaskResult 是任务处理器返回的类型化结果。
// 处理器内部的执行错误一律折叠到这里，不向上抛出。
type TaskResult struct {
	Success    bool                     `json:"success"`
	Result     map[string]interface{}   `json:"result,omitempty"`
	Error      string                   `json:"error,omitempty"`
	DurationMS int64                    `json:"duration_ms"`
	Artifacts  []map[string]interface{} `json:"artifacts,omitempty"`
}

// SuccessResult 构造一个成功结果。
func SuccessResult(result map[string]interface{}) TaskResult {
	return TaskResult{Success: true, Result: result}
}

// FailureResult 构造一个失败结果。
func FailureResult(errText string) TaskResult {
	return TaskResult{Success: false, Error: errText}
}

// ToPayload 将结果转为回复消息的载荷。
func (r TaskResult) ToPayload() map[string]interface{} {
	payload := map[string]interface{}{
		"success":     r.Success,
		"duration_ms": r.DurationMS,
	}
	if r.Result != nil {
		payload["result"] = r.Result
	}
	if r.Error != "" {
		payload["error"] = r.Error
	}
	if len(r.Artifacts) > 0 {
		payload["artifacts"] = r.Artifacts
	}
	return payload
}
