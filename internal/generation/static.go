package generation

import "context"

// Static 是一个离线文本生成器，对任何提示词返回固定应答。
// 用于本地开发与测试环境，避免对外部生成服务的依赖。
type Static struct {
	Response string
}

// Generate 返回固定应答。
func (s *Static) Generate(_ context.Context, _ string) (string, error) {
	if s.Response == "" {
		return "acknowledged", nil
	}
	return s.Response, nil
}
