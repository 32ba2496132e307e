package util

import (
	"fmt"
	"strings"

	"github.com/buger/jsonparser"

	moderr "github.com/lizzyg/chatbridge/errors"
	"github.com/lizzyg/chatbridge/internal/core"
)

// Reply is a chat reply reduced to its text and token usage.
type Reply struct {
	Text  string
	Usage *core.Usage
	// Irregular is set when the body deviated from {"message": ..., "usage": {...}}.
	Irregular bool
}

var textPaths = [][]string{
	{"message"},
	{"msg"},
	{"data", "text"},
	{"response", "message"},
	{"content"},
}

var usagePaths = [][]string{
	{"usage"},
	{"usage", "tokens"},
	{"tokenInfo"},
	{"tokens"},
}

// NormalizeReply extracts the reply text and usage from any of the payload
// shapes the chat API is known to return.
func NormalizeReply(body []byte) (Reply, error) {
	keys := map[string]jsonparser.ValueType{}
	err := jsonparser.ObjectEach(body, func(key, _ []byte, typ jsonparser.ValueType, _ int) error {
		keys[string(key)] = typ
		return nil
	})
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %s", moderr.ErrUnrecognizedResponse, clip(body))
	}

	text, ok := extractText(body)
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", moderr.ErrUnrecognizedResponse, clip(body))
	}

	out := Reply{Text: text, Irregular: !isCanonical(keys)}
	if u, ok := extractUsage(body); ok {
		out.Usage = &u
	}
	return out, nil
}

func extractText(body []byte) (string, bool) {
	for _, path := range textPaths {
		v, typ, _, err := jsonparser.Get(body, path...)
		if err != nil || typ != jsonparser.String {
			continue
		}
		s, err := jsonparser.ParseString(v)
		if err != nil {
			continue
		}
		return s, true
	}

	v, typ, _, err := jsonparser.Get(body, "output")
	if err != nil {
		return "", false
	}
	switch typ {
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		return s, err == nil
	case jsonparser.Array:
		var parts []string
		_, _ = jsonparser.ArrayEach(v, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
			if itemType != jsonparser.String {
				return
			}
			if s, err := jsonparser.ParseString(item); err == nil {
				parts = append(parts, s)
			}
		})
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, " "), true
	}
	return "", false
}

func extractUsage(body []byte) (core.Usage, bool) {
	for _, path := range usagePaths {
		v, typ, _, err := jsonparser.Get(body, path...)
		if err != nil || typ != jsonparser.Object {
			continue
		}
		if u, ok := parseUsage(v); ok {
			return u, true
		}
	}
	if v, typ, _, err := jsonparser.Get(body, "usage"); err == nil && typ == jsonparser.Number {
		if n, err := jsonparser.ParseInt(v); err == nil {
			return core.Usage{TotalTokens: int(n)}, true
		}
	}
	return core.Usage{}, false
}

func parseUsage(obj []byte) (core.Usage, bool) {
	var u core.Usage
	found := false
	fields := []struct {
		key string
		dst *int
	}{
		{"prompt_tokens", &u.PromptTokens},
		{"completion_tokens", &u.CompletionTokens},
		{"total_tokens", &u.TotalTokens},
	}
	for _, f := range fields {
		n, err := jsonparser.GetInt(obj, f.key)
		if err != nil {
			continue
		}
		*f.dst = int(n)
		found = true
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u, found
}

func isCanonical(keys map[string]jsonparser.ValueType) bool {
	if keys["message"] != jsonparser.String {
		return false
	}
	for k, typ := range keys {
		switch k {
		case "message":
		case "usage":
			if typ != jsonparser.Object && typ != jsonparser.Null {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func clip(b []byte) string {
	const max = 200
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
