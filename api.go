package chatbridge

import (
	"context"
	"encoding/json"

	moderr "github.com/lizzyg/chatbridge/errors"
	"github.com/lizzyg/chatbridge/internal/config"
	"github.com/lizzyg/chatbridge/internal/core"
	"github.com/lizzyg/chatbridge/internal/util"
)

// Config is the adapter configuration, normally loaded from chatbridge.yaml.
type Config = config.Config

// APIClient is implemented by chat API transports.
type APIClient = core.APIClient
type Token = core.Token
type ChatParams = core.ChatParams
type ChatResult = core.ChatResult

// Provider is the only type applications use.
type Provider interface {
	// GetAuthToken fetches a fresh bearer token and caches it for later calls.
	GetAuthToken(ctx context.Context) (string, error)
	// CreateSession opens a new conversation on the chat API.
	CreateSession(ctx context.Context) (string, error)
	// CallAPI sends prompt and returns the normalized reply.
	CallAPI(ctx context.Context, prompt string, opts Options, cc CallContext) (Response, error)
}

// Options are caller options. The adapter reads config.role and config.sessionId.
type Options map[string]any

// CallContext is per-call context. The adapter reads vars.role and vars.sessionId.
type CallContext map[string]any

func (o Options) lookup(key string) string     { return nestedString(o, "config", key) }
func (c CallContext) lookup(key string) string { return nestedString(c, "vars", key) }

func nestedString(m map[string]any, section, key string) string {
	switch inner := m[section].(type) {
	case map[string]any:
		s, _ := inner[key].(string)
		return s
	case map[string]string:
		return inner[key]
	}
	return ""
}

// TokenUsage is the token accounting reported by the chat API.
type TokenUsage struct {
	Total      int `json:"total"`
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// Response is a normalized chat reply.
type Response struct {
	Output     string
	TokenUsage *TokenUsage
	SessionID  string
	// Irregular is set when the server deviated from its documented reply shape.
	Irregular bool
	Raw       json.RawMessage
}

// AsMap returns the response as a plain mapping, the form evaluation harnesses consume.
func (r Response) AsMap() map[string]any {
	m := map[string]any{
		"output":   r.Output,
		"metadata": map[string]any{"irregular": r.Irregular},
	}
	if r.TokenUsage != nil {
		m["tokenUsage"] = map[string]any{
			"total":      r.TokenUsage.Total,
			"prompt":     r.TokenUsage.Prompt,
			"completion": r.TokenUsage.Completion,
		}
	}
	if r.SessionID != "" {
		m["sessionId"] = r.SessionID
	}
	return m
}

// CallJSON asks for a reply matching the JSON schema of T and decodes it.
// If T is string, the raw output is returned.
func CallJSON[T any](ctx context.Context, p Provider, prompt string, opts Options, cc CallContext) (T, error) {
	var zero T
	if util.IsStringType[T]() {
		resp, err := p.CallAPI(ctx, prompt, opts, cc)
		if err != nil {
			return zero, err
		}
		return any(resp.Output).(T), nil
	}

	var zeroPtr *T
	schema := util.GenerateJSONSchema(zeroPtr)
	resp, err := p.CallAPI(ctx, prompt+util.SchemaInstruction(schema), opts, cc)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal([]byte(resp.Output), &out); err != nil {
		if repaired, ok := util.RepairJSON(resp.Output); ok {
			if err2 := json.Unmarshal([]byte(repaired), &out); err2 == nil {
				return out, nil
			}
		}
		return zero, moderr.ErrStructuredOutput
	}
	return out, nil
}
