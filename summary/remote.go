package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/contextflow/types"
)

// RemoteConfig 远程摘要服务配置。
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// Temperature 摘要生成温度，默认 0.2，偏向确定性输出。
	Temperature float64

	// RequestsPerSecond 限制对远程服务的调用速率，0 表示不限制。
	RequestsPerSecond float64
	Burst             int
}

// RemoteProvider 通过 OpenAI 兼容的 /v1/chat/completions 接口生成摘要。
// 任何传输或解码失败都以错误返回，由 Generator 走确定性回退路径。
type RemoteProvider struct {
	name        string
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewRemoteProvider 创建远程摘要提供者。
func NewRemoteProvider(cfg RemoteConfig, logger *zap.Logger) *RemoteProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &RemoteProvider{
		name:        "remote-chat",
		client:      &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: temperature,
		limiter:     limiter,
		logger:      logger.With(zap.String("component", "summary_provider")),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize 调用远程模型生成指定级别的摘要。
func (p *RemoteProvider) Summarize(ctx context.Context, text string, targetTokens int, level types.SummaryLevel) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := p.doRequest(ctx, chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(level, targetTokens)},
			{Role: "user", Content: text},
		},
		// 给模型留出余量，截断由 Generator 负责
		MaxTokens:   targetTokens * 2,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", types.NewError(types.ErrProviderEmpty, "chat response has no choices").WithProvider(p.name)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Name 返回提供者名称。
func (p *RemoteProvider) Name() string {
	return p.name
}

// systemPrompt 按摘要级别生成指令。
func systemPrompt(level types.SummaryLevel, targetTokens int) string {
	switch level {
	case types.SummaryAbstract:
		return fmt.Sprintf("Compress the conversation segment into one or two sentences, at most %d tokens. Keep concrete identifiers (names, versions, numbers, paths). Output the abstract only.", targetTokens)
	default:
		return fmt.Sprintf("Summarize the conversation segment as a short overview, at most %d tokens. Preserve decisions, open questions and concrete identifiers. Output the overview only.", targetTokens)
	}
}

// doRequest 执行 HTTP 请求并进行统一错误映射。
func (p *RemoteProvider) doRequest(ctx context.Context, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithProvider(p.name)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, string(respBody), p.name)
	}

	return respBody, nil
}

// mapHTTPError 将 HTTP 状态映射为结构化错误。
func mapHTTPError(status int, msg, provider string) *types.Error {
	code := types.ErrUpstreamError
	retryable := status >= 500

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = types.ErrUnauthorized
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case http.StatusBadRequest:
		code = types.ErrInvalidRequest
	}

	return types.NewError(code, msg).
		WithHTTPStatus(status).
		WithRetryable(retryable).
		WithProvider(provider)
}
