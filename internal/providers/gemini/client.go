package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/lizzyg/chatbridge/internal/config"
	"github.com/lizzyg/chatbridge/internal/core"
	"github.com/lizzyg/chatbridge/internal/providers/retry"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

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

type generateRequest struct {
	SystemInstruction *content       `json:"systemInstruction,omitempty"`
	Contents          []content      `json:"contents"`
	GenerationConfig  map[string]any `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Usage struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (c *Client) Complete(ctx context.Context, req core.CompletionRequest) (core.Completion, error) {
	payload := generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: req.Input}}}},
		GenerationConfig: map[string]any{},
	}
	if req.System != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		payload.GenerationConfig["maxOutputTokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		payload.GenerationConfig["temperature"] = req.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return core.Completion{}, fmt.Errorf("gemini marshal payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(req.Model), url.QueryEscape(c.apiKey))

	var gr generateResponse
	err = retry.WithRetryConfig(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(resp.Body)
			return retry.NewHTTPStatusError(resp.StatusCode, string(b), "gemini")
		}
		return json.NewDecoder(resp.Body).Decode(&gr)
	}, c.retry)
	if err != nil {
		return core.Completion{}, err
	}
	if len(gr.Candidates) == 0 {
		return core.Completion{}, fmt.Errorf("gemini: response has no candidates")
	}

	var texts []string
	for _, p := range gr.Candidates[0].Content.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	out := core.Completion{
		Message: strings.Join(texts, "\n"),
		Usage: core.Usage{
			PromptTokens:     gr.Usage.PromptTokenCount,
			CompletionTokens: gr.Usage.CandidatesTokenCount,
			TotalTokens:      gr.Usage.TotalTokenCount,
		},
	}
	c.logger.Debug("gemini completion",
		zap.String("model", req.Model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
	)
	return out, nil
}
