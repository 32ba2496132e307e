package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lizzyg/chatbridge/internal/config"
	"github.com/lizzyg/chatbridge/internal/core"
	"github.com/lizzyg/chatbridge/internal/providers/retry"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	retry      retry.Config
}

func New(uc config.UpstreamConfig, hc *http.Client, rc retry.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := uc.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		apiKey:     uc.APIKey,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: hc,
		logger:     logger,
		retry:      rc,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *core.Usage `json:"usage"`
}

func (c *Client) Complete(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
	payload := chatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.Input})

	body, err := json.Marshal(payload)
	if err != nil {
		return core.Completion{}, fmt.Errorf("openai marshal payload: %w", err)
	}

	var rr chatResponse
	err = retry.WithRetryConfig(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(resp.Body)
			return retry.NewHTTPStatusError(resp.StatusCode, string(b), "openai")
		}
		return json.NewDecoder(resp.Body).Decode(&rr)
	}, c.retry)
	if err != nil {
		return core.Completion{}, err
	}
	if len(rr.Choices) == 0 {
		return core.Completion{}, fmt.Errorf("openai: response has no choices")
	}

	out := core.Completion{Message: contentText(rr.Choices[0].Message.Content)}
	if rr.Usage != nil {
		out.Usage = *rr.Usage
	}
	c.logger.Debug("openai completion",
		zap.String("model", req.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
	)
	return out, nil
}

// contentText flattens string or multi-part message content.
func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, p := range v {
			m, ok := p.(map[string]any)
			if !ok || m["type"] != "text" {
				continue
			}
			if s, ok := m["text"].(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}
