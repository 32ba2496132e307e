// Command chatbridge runs the chat API server and calls it through the adapter.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/lizzyg/chatbridge"
	"github.com/lizzyg/chatbridge/internal/config"
	"github.com/lizzyg/chatbridge/internal/logging"
	"github.com/lizzyg/chatbridge/internal/providers"
	"github.com/lizzyg/chatbridge/internal/server"
	"github.com/lizzyg/chatbridge/internal/store"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config    string `help:"Path to chatbridge.yaml." type:"path" env:"CHATBRIDGE_CONFIG_PATH"`
	Endpoint  string `help:"Chat API base URL (overrides config)."`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFormat string `help:"Log format (json or text)."`

	out io.Writer
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Run the chat API server."`
	Token   TokenCmd   `cmd:"" help:"Print a fresh auth token."`
	Session SessionCmd `cmd:"" help:"Print a new session id."`
	Call    CallCmd    `cmd:"" help:"Send a prompt and print the normalized response."`
}

// load resolves the configuration and applies flag overrides.
func (g *Globals) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(g.Config)
	if err != nil {
		return nil, nil, err
	}
	if g.Endpoint != "" {
		cfg.Endpoint = g.Endpoint
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (g *Globals) provider() (chatbridge.Provider, error) {
	cfg, logger, err := g.load()
	if err != nil {
		return nil, err
	}
	return chatbridge.New(*cfg, chatbridge.WithLogger(logger))
}

func (g *Globals) printJSON(v any) error {
	enc := json.NewEncoder(g.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.addr)."`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	scfg := cfg.Server
	if c.Addr != "" {
		scfg.Addr = c.Addr
	}

	sessions, err := store.Open(scfg.Store, scfg.SQLitePath)
	if err != nil {
		return err
	}
	defer sessions.Close()

	completer, err := providers.NewCompleter(scfg.Upstream, cfg.Retry, &http.Client{Timeout: cfg.Timeout}, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(scfg,
		server.WithLogger(logger),
		server.WithSessionStore(sessions),
		server.WithCompleter(completer),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, scfg.Addr)
}

type TokenCmd struct{}

func (c *TokenCmd) Run(g *Globals) error {
	p, err := g.provider()
	if err != nil {
		return err
	}
	tok, err := p.GetAuthToken(context.Background())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.out, tok)
	return err
}

type SessionCmd struct{}

func (c *SessionCmd) Run(g *Globals) error {
	p, err := g.provider()
	if err != nil {
		return err
	}
	id, err := p.CreateSession(context.Background())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.out, id)
	return err
}

type CallCmd struct {
	Prompt  string `arg:"" help:"Prompt to send."`
	Role    string `help:"Domain role (overrides default_role)."`
	Session string `help:"Existing session id to continue."`
}

func (c *CallCmd) Run(g *Globals) error {
	p, err := g.provider()
	if err != nil {
		return err
	}
	cfg := map[string]any{}
	if c.Role != "" {
		cfg["role"] = c.Role
	}
	if c.Session != "" {
		cfg["sessionId"] = c.Session
	}
	resp, err := p.CallAPI(context.Background(), c.Prompt, chatbridge.Options{"config": cfg}, nil)
	if err != nil {
		return err
	}
	return g.printJSON(resp.AsMap())
}

func main() {
	var cli CLI
	cli.out = os.Stdout
	kctx := kong.Parse(&cli,
		kong.Name("chatbridge"),
		kong.Description("Chat API server and provider adapter."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}
