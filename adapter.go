package chatbridge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	moderr "github.com/lizzyg/chatbridge/errors"
	"github.com/lizzyg/chatbridge/internal/config"
	"github.com/lizzyg/chatbridge/internal/core"
	"github.com/lizzyg/chatbridge/internal/logging"
	provfactory "github.com/lizzyg/chatbridge/internal/providers"
	"github.com/lizzyg/chatbridge/internal/util"
)

type adapter struct {
	client        core.APIClient
	endpoint      string
	defaultRole   string
	refreshMargin time.Duration
	reuseSession  bool
	logger        *zap.Logger
	httpClient    *http.Client
	now           func() time.Time

	tokenMu sync.Mutex
	token   core.Token

	sessionMu sync.Mutex
	sessionID string
}

// Option allows functional configuration.
type Option func(*adapter)

// WithLogger sets a custom zap logger.
func WithLogger(l *zap.Logger) Option { return func(a *adapter) { a.logger = l } }

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(c *http.Client) Option { return func(a *adapter) { a.httpClient = c } }

// WithAPIClient replaces the transport selected by Config.Provider.
func WithAPIClient(c APIClient) Option { return func(a *adapter) { a.client = c } }

func withClock(now func() time.Time) Option { return func(a *adapter) { a.now = now } }

// NewFromFile loads config via internal/config.Load and returns a Provider
// logging in the configured format.
func NewFromFile() (Provider, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return New(*cfg, WithLogger(logger))
}

// New builds a Provider from config and options.
func New(cfg Config, opts ...Option) (Provider, error) {
	a := &adapter{
		endpoint:      cfg.Endpoint,
		defaultRole:   cfg.DefaultRole,
		refreshMargin: cfg.TokenRefreshMargin,
		reuseSession:  cfg.ReuseSession,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		a.httpClient = &http.Client{Timeout: timeout}
	}
	if a.client == nil {
		c, err := provfactory.NewAPIClient(cfg, a.httpClient, a.logger)
		if err != nil {
			return nil, err
		}
		a.client = c
	}
	return a, nil
}

// ready lets a transport refuse every call up front, before any argument
// checks or cache access.
func (a *adapter) ready() error {
	type readiness interface{ Ready() error }
	if r, ok := a.client.(readiness); ok {
		return r.Ready()
	}
	return nil
}

func (a *adapter) GetAuthToken(ctx context.Context) (string, error) {
	if err := a.ready(); err != nil {
		return "", err
	}
	tok, err := a.bearer(ctx, true)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

func (a *adapter) CreateSession(ctx context.Context) (string, error) {
	if err := a.ready(); err != nil {
		return "", err
	}
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	return a.openSessionLocked(ctx)
}

func (a *adapter) CallAPI(ctx context.Context, prompt string, opts Options, cc CallContext) (Response, error) {
	if err := a.ready(); err != nil {
		return Response{}, err
	}
	if prompt == "" {
		return Response{}, moderr.ErrMissingPrompt
	}

	role := firstNonEmpty(opts.lookup("role"), cc.lookup("role"), a.defaultRole)
	sessionID, err := a.resolveSession(ctx, firstNonEmpty(opts.lookup("sessionId"), cc.lookup("sessionId")))
	if err != nil {
		return Response{}, err
	}

	start := a.now()
	res, callErr := a.chat(ctx, core.ChatParams{SessionID: sessionID, Input: prompt, Role: role})
	duration := a.now().Sub(start)

	var reply util.Reply
	if callErr == nil {
		reply, callErr = util.NormalizeReply(res.Body)
	}
	// The server assigns a session only when none was sent, which happens with reuse disabled.
	if res.SessionID != "" {
		sessionID = res.SessionID
	}

	fields := []zap.Field{
		zap.String("endpoint", a.endpoint),
		zap.String("role", role),
		zap.String("session_id", sessionID),
		zap.Duration("latency", duration),
		zap.Bool("irregular", reply.Irregular),
		zap.Bool("error", callErr != nil),
	}
	if reply.Usage != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", reply.Usage.PromptTokens),
			zap.Int("completion_tokens", reply.Usage.CompletionTokens),
			zap.Int("total_tokens", reply.Usage.TotalTokens),
		)
	}
	a.logger.Info("chat call", fields...)

	if callErr != nil {
		return Response{}, callErr
	}

	out := Response{
		Output:    reply.Text,
		SessionID: sessionID,
		Irregular: reply.Irregular,
		Raw:       res.Body,
	}
	if reply.Usage != nil {
		out.TokenUsage = &TokenUsage{
			Total:      reply.Usage.TotalTokens,
			Prompt:     reply.Usage.PromptTokens,
			Completion: reply.Usage.CompletionTokens,
		}
	}
	return out, nil
}

// chat sends one chat request, refreshing the token once if the server rejects it.
func (a *adapter) chat(ctx context.Context, p core.ChatParams) (core.ChatResult, error) {
	tok, err := a.bearer(ctx, false)
	if err != nil {
		return core.ChatResult{}, err
	}
	p.Token = tok.Value
	res, err := a.client.Chat(ctx, p)
	if !errors.Is(err, moderr.ErrUnauthorized) {
		return res, err
	}

	a.logger.Warn("token rejected, refreshing", zap.Error(err))
	tok, err = a.bearer(ctx, true)
	if err != nil {
		return core.ChatResult{}, err
	}
	p.Token = tok.Value
	return a.client.Chat(ctx, p)
}

// bearer returns the cached token, fetching a new one when forced or when the
// cached one expires within the refresh margin.
func (a *adapter) bearer(ctx context.Context, force bool) (core.Token, error) {
	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()
	if !force && a.token.ValidFor(a.now(), a.refreshMargin) {
		return a.token, nil
	}
	tok, err := a.client.Authenticate(ctx)
	if err != nil {
		return core.Token{}, err
	}
	a.token = tok
	a.logger.Debug("fetched auth token", zap.Time("expires_at", tok.ExpiresAt))
	return tok, nil
}

func (a *adapter) resolveSession(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	if a.sessionID != "" || !a.reuseSession {
		return a.sessionID, nil
	}
	return a.openSessionLocked(ctx)
}

// openSessionLocked must be called with sessionMu held.
func (a *adapter) openSessionLocked(ctx context.Context) (string, error) {
	id, err := a.client.OpenSession(ctx)
	if err != nil {
		return "", err
	}
	if a.reuseSession {
		a.sessionID = id
	}
	a.logger.Debug("opened session", zap.String("session_id", id), zap.Bool("current", a.reuseSession))
	return id, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
