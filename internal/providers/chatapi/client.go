package chatapi

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

	moderr "github.com/lizzyg/chatbridge/errors"
	"github.com/lizzyg/chatbridge/internal/core"
	"github.com/lizzyg/chatbridge/internal/providers/retry"
)

// SessionHeader carries the session id in both directions.
const SessionHeader = "x-session-id"

// Client talks to the chat API over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
	retry      retry.Config
	// chatRetry never resends a request the server may already have counted.
	chatRetry retry.Config
}

func New(endpoint string, hc *http.Client, rc retry.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: hc,
		logger:     logger,
		retry:      rc,
	}
	c.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Warn("chat api retry",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	c.chatRetry = c.retry
	c.chatRetry.Retryable = retry.IsRateLimited
	return c
}

type authResponse struct {
	Token string `json:"token"`
	TTL   int    `json:"ttl"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

type chatRequest struct {
	Input string `json:"input"`
	Role  string `json:"role"`
}

func (c *Client) Authenticate(ctx context.Context) (core.Token, error) {
	var ar authResponse
	if _, err := c.post(ctx, c.retry, "/auth", nil, nil, &ar); err != nil {
		return core.Token{}, err
	}
	if ar.Token == "" {
		return core.Token{}, fmt.Errorf("chatapi auth: empty token")
	}
	return core.Token{
		Value:     ar.Token,
		ExpiresAt: time.Now().Add(time.Duration(ar.TTL) * time.Second),
	}, nil
}

func (c *Client) OpenSession(ctx context.Context) (string, error) {
	var sr sessionResponse
	if _, err := c.post(ctx, c.retry, "/session", nil, nil, &sr); err != nil {
		return "", err
	}
	if sr.SessionID == "" {
		return "", fmt.Errorf("chatapi session: empty session id")
	}
	return sr.SessionID, nil
}

func (c *Client) Chat(ctx context.Context, params core.ChatParams) (core.ChatResult, error) {
	body, err := json.Marshal(chatRequest{Input: params.Input, Role: params.Role})
	if err != nil {
		return core.ChatResult{}, fmt.Errorf("chatapi marshal payload: %w", err)
	}
	headers := map[string]string{"Authorization": "Bearer " + params.Token}
	if params.SessionID != "" {
		headers[SessionHeader] = params.SessionID
	}

	var raw json.RawMessage
	h, err := c.post(ctx, c.chatRetry, "/chat", body, headers, &raw)
	if err != nil {
		return core.ChatResult{}, err
	}
	return core.ChatResult{Body: raw, SessionID: h.Get(SessionHeader)}, nil
}

// post sends a JSON POST with retries and decodes the reply into out.
func (c *Client) post(ctx context.Context, rc retry.Config, path string, body []byte, headers map[string]string, out any) (http.Header, error) {
	return retry.Do(ctx, rc, func() (http.Header, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", moderr.ErrUnauthorized, errorMessage(b))
		}
		if resp.StatusCode >= 400 {
			return nil, retry.NewHTTPStatusError(resp.StatusCode, errorMessage(b), "chatapi")
		}
		// Chat bodies are passed through undecoded; their shape varies.
		if raw, ok := out.(*json.RawMessage); ok {
			*raw = append((*raw)[:0], b...)
		} else if err := json.Unmarshal(b, out); err != nil {
			return nil, fmt.Errorf("chatapi decode %s: %w", path, err)
		}
		return resp.Header, nil
	})
}

// errorMessage prefers the server's {"error": "..."} text over the raw body.
func errorMessage(b []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(b))
}
