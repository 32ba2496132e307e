// Package stub provides a chat API transport that is not wired to any server.
// Every call fails with ErrNotImplemented before doing any work.
package stub

import (
	"context"

	moderr "github.com/lizzyg/chatbridge/errors"
	"github.com/lizzyg/chatbridge/internal/core"
)

type Client struct{}

func New() *Client { return &Client{} }

var _ core.APIClient = (*Client)(nil)

// Ready reports that the transport cannot serve any call.
func (c *Client) Ready() error { return moderr.ErrNotImplemented }

func (c *Client) Authenticate(ctx context.Context) (core.Token, error) {
	return core.Token{}, moderr.ErrNotImplemented
}

func (c *Client) OpenSession(ctx context.Context) (string, error) {
	return "", moderr.ErrNotImplemented
}

func (c *Client) Chat(ctx context.Context, params core.ChatParams) (core.ChatResult, error) {
	return core.ChatResult{}, moderr.ErrNotImplemented
}
