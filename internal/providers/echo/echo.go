// Package echo answers chat requests by repeating the input back.
package echo

import (
	"context"
	"unicode/utf8"

	"github.com/lizzyg/chatbridge/internal/core"
)

type Completer struct{}

func New() *Completer { return &Completer{} }

func (Completer) Complete(_ context.Context, req core.CompletionRequest) (core.Completion, error) {
	return Reply(req.Input), nil
}

// Reply builds the echo answer. Usage counts characters, not tokens.
func Reply(input string) core.Completion {
	msg := "You said: " + input
	prompt := utf8.RuneCountInString(input)
	completion := utf8.RuneCountInString(msg)
	return core.Completion{
		Message: msg,
		Usage: core.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}
}
