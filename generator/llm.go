package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// ErrMissingCredentials is returned when a remote provider has no API key.
var ErrMissingCredentials = errors.New("llm api key is not configured")

// Default endpoints of the OpenAI-compatible providers.
const (
	QwenBaseURL     = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	QwenModel       = "qwen-plus"
	DeepSeekBaseURL = "https://api.deepseek.com"
	DeepSeekModel   = "deepseek-chat"
)

// NewLLM picks a client for settings.Provider (qwen, openai, deepseek or mock).
func NewLLM(settings LLMSettings) (LLMClient, error) {
	provider := strings.ToLower(strings.TrimSpace(settings.Provider))
	switch provider {
	case "mock":
		return MockLLM{}, nil
	case "", "qwen":
		if settings.BaseURL == "" {
			settings.BaseURL = QwenBaseURL
		}
		if settings.Model == "" {
			settings.Model = QwenModel
		}
	case "deepseek":
		if settings.BaseURL == "" {
			settings.BaseURL = DeepSeekBaseURL
		}
		if settings.Model == "" {
			settings.Model = DeepSeekModel
		}
	case "openai":
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", settings.Provider)
	}
	return NewOpenAILLMFromConfig(&settings)
}
