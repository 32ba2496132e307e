package server

import (
	"github.com/lizzyg/chatbridge/internal/core"
)

// irregularShapes is the number of payload variants irregularReply can return.
const irregularShapes = 6

// irregularReply builds one of the malformed payloads served on every
// IrregularEvery-th request of a session. Usage numbers are random.
func (s *Server) irregularReply(input string, requestCount int) map[string]any {
	u := core.Usage{
		PromptTokens:     s.randomInt(50) + 10,
		CompletionTokens: s.randomInt(100) + 20,
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens

	switch s.randomInt(irregularShapes) {
	case 0:
		return map[string]any{"msg": "Irregular response format", "status": "ok", "usage": u}
	case 1:
		return map[string]any{
			"data":      map[string]any{"text": "Response corrupted", "original": input},
			"error":     nil,
			"tokenInfo": u,
		}
	case 2:
		return map[string]any{"output": []string{"Multiple", "responses", "in", "array"}, "tokens": u}
	case 3:
		return map[string]any{
			"message":  "Response",
			"metadata": map[string]any{"debug": true, "sessionRequests": requestCount},
			"usage":    u,
		}
	case 4:
		return map[string]any{
			"response": map[string]any{"message": "Wrapped response", "timestamp": s.now().UnixMilli()},
			"usage":    map[string]any{"tokens": u},
		}
	default:
		return map[string]any{"content": "Different key", "usage": u.TotalTokens}
	}
}
