package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/contextflow/types"
)

// RemoteConfig 远程嵌入服务配置。
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// RequestsPerSecond 限制对远程服务的调用速率，0 表示不限制。
	RequestsPerSecond float64
	Burst             int
}

// RemoteDenseProvider 通过 OpenAI 兼容的 /v1/embeddings 接口计算语义相似度。
// 任何传输或解码失败都以错误返回，由调用方走确定性回退路径。
type RemoteDenseProvider struct {
	name    string
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRemoteDenseProvider 创建远程密集评分提供者。
func NewRemoteDenseProvider(cfg RemoteConfig, logger *zap.Logger) *RemoteDenseProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &RemoteDenseProvider{
		name:    "remote-embeddings",
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		limiter: limiter,
		logger:  logger.With(zap.String("component", "dense_provider")),
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Score 将查询与参照文本一并送去嵌入，返回两向量的余弦相似度。
func (p *RemoteDenseProvider) Score(ctx context.Context, query, reference string) (float64, Metric, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, MetricCosine, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := p.doRequest(ctx, embeddingRequest{
		Model: p.model,
		Input: []string{query, reference},
	})
	if err != nil {
		return 0, MetricCosine, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, MetricCosine, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(resp.Data) < 2 {
		return 0, MetricCosine, types.NewError(types.ErrProviderEmpty, "embeddings response missing vectors").WithProvider(p.name)
	}

	return cosineVec(resp.Data[0].Embedding, resp.Data[1].Embedding), MetricCosine, nil
}

// Name 返回提供者名称。
func (p *RemoteDenseProvider) Name() string {
	return p.name
}

// doRequest 执行 HTTP 请求并进行统一错误映射。
func (p *RemoteDenseProvider) doRequest(ctx context.Context, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/embeddings", bytes.NewReader(data))
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

// cosineVec 计算两个稠密向量的余弦相似度。
func cosineVec(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
