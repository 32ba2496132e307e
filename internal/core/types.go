package core

import (
	"context"
	"encoding/json"
	"time"
)

// APIClient is implemented by chat API transports.
type APIClient interface {
	Authenticate(ctx context.Context) (Token, error)
	OpenSession(ctx context.Context) (string, error)
	Chat(ctx context.Context, params ChatParams) (ChatResult, error)
}

// Token is a bearer token together with the moment it stops being accepted.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// ValidFor reports whether the token is still usable for at least margin past now.
func (t Token) ValidFor(now time.Time, margin time.Duration) bool {
	if t.Value == "" {
		return false
	}
	return now.Add(margin).Before(t.ExpiresAt)
}

type ChatParams struct {
	Token     string
	SessionID string
	Input     string
	Role      string
}

// ChatResult is the undecoded reply of a chat call. SessionID is set when the
// server assigned a new session via the x-session-id response header.
type ChatResult struct {
	Body      json.RawMessage
	SessionID string
}

// Completer is implemented by the model backends the chat server answers with.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

type CompletionRequest struct {
	Model       string
	System      string
	Input       string
	MaxTokens   int
	Temperature float32
}

type Completion struct {
	Message string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
