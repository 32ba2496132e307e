package stub

import (
	"context"
	"errors"
	"testing"

	moderr "github.com/lizzyg/chatbridge/errors"
	"github.com/lizzyg/chatbridge/internal/core"
)

func TestEveryCallIsNotImplemented(t *testing.T) {
	c := New()
	ctx := context.Background()

	if err := c.Ready(); !errors.Is(err, moderr.ErrNotImplemented) {
		t.Errorf("Ready: got %v", err)
	}
	if _, err := c.Authenticate(ctx); !errors.Is(err, moderr.ErrNotImplemented) {
		t.Errorf("Authenticate: got %v", err)
	}
	if _, err := c.OpenSession(ctx); !errors.Is(err, moderr.ErrNotImplemented) {
		t.Errorf("OpenSession: got %v", err)
	}
	if _, err := c.Chat(ctx, core.ChatParams{Input: "hi", Role: "r"}); !errors.Is(err, moderr.ErrNotImplemented) {
		t.Errorf("Chat: got %v", err)
	}
}
