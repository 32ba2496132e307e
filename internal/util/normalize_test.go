package util

import (
	"errors"
	"testing"

	moderr "github.com/lizzyg/chatbridge/errors"
	"github.com/lizzyg/chatbridge/internal/core"
)

func TestNormalizeReply(t *testing.T) {
	usage := &core.Usage{PromptTokens: 12, CompletionTokens: 30, TotalTokens: 42}
	cases := []struct {
		name      string
		body      string
		text      string
		usage     *core.Usage
		irregular bool
	}{
		{
			name:  "canonical",
			body:  `{"message":"Hello, how can I help?","usage":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42}}`,
			text:  "Hello, how can I help?",
			usage: usage,
		},
		{
			name: "canonical with null usage",
			body: `{"message":"hi","usage":null}`,
			text: "hi",
		},
		{
			name:      "msg key",
			body:      `{"msg":"Irregular response format","status":"ok","usage":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42}}`,
			text:      "Irregular response format",
			usage:     usage,
			irregular: true,
		},
		{
			name:      "nested data with tokenInfo",
			body:      `{"data":{"text":"Response corrupted","original":"hello"},"error":null,"tokenInfo":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42}}`,
			text:      "Response corrupted",
			usage:     usage,
			irregular: true,
		},
		{
			name:      "array output with tokens",
			body:      `{"output":["Multiple","responses","in","array"],"tokens":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42}}`,
			text:      "Multiple responses in array",
			usage:     usage,
			irregular: true,
		},
		{
			name:      "extra metadata",
			body:      `{"message":"Response","metadata":{"debug":true,"sessionRequests":3},"usage":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42}}`,
			text:      "Response",
			usage:     usage,
			irregular: true,
		},
		{
			name:      "wrapped response with nested usage",
			body:      `{"response":{"message":"Wrapped response","timestamp":1700000000000},"usage":{"tokens":{"prompt_tokens":12,"completion_tokens":30,"total_tokens":42}}}`,
			text:      "Wrapped response",
			usage:     usage,
			irregular: true,
		},
		{
			name:      "usage as number",
			body:      `{"content":"Different key","usage":42}`,
			text:      "Different key",
			usage:     &core.Usage{TotalTokens: 42},
			irregular: true,
		},
		{
			name:  "total derived when missing",
			body:  `{"message":"x","usage":{"prompt_tokens":2,"completion_tokens":3}}`,
			text:  "x",
			usage: &core.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeReply([]byte(tc.body))
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got.Text != tc.text {
				t.Errorf("text = %q, want %q", got.Text, tc.text)
			}
			if got.Irregular != tc.irregular {
				t.Errorf("irregular = %v, want %v", got.Irregular, tc.irregular)
			}
			switch {
			case tc.usage == nil && got.Usage != nil:
				t.Errorf("expected no usage, got %+v", *got.Usage)
			case tc.usage != nil && got.Usage == nil:
				t.Errorf("expected usage %+v, got none", *tc.usage)
			case tc.usage != nil && *got.Usage != *tc.usage:
				t.Errorf("usage = %+v, want %+v", *got.Usage, *tc.usage)
			}
		})
	}
}

func TestNormalizeReply_Unrecognized(t *testing.T) {
	for _, body := range []string{
		`{"status":"ok"}`,
		`{"output":[1,2,3]}`,
		`["not","an","object"]`,
		`not json`,
	} {
		_, err := NormalizeReply([]byte(body))
		if !errors.Is(err, moderr.ErrUnrecognizedResponse) {
			t.Errorf("%s: expected ErrUnrecognizedResponse, got %v", body, err)
		}
	}
}
