// Package server implements the chat API the adapter talks to: token issuing,
// session tracking and chat replies, including the deliberately irregular
// replies clients must learn to cope with.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	mrand "math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lizzyg/chatbridge/internal/config"
	"github.com/lizzyg/chatbridge/internal/core"
	"github.com/lizzyg/chatbridge/internal/providers/echo"
	"github.com/lizzyg/chatbridge/internal/store"
	"github.com/lizzyg/chatbridge/internal/util"
)

// SessionHeader carries the session id in both directions.
const SessionHeader = "x-session-id"

type Server struct {
	cfg       config.ServerConfig
	sessions  store.SessionStore
	tokens    *store.TokenStore
	completer core.Completer
	logger    *zap.Logger
	validate  *validator.Validate
	signKey   []byte
	schema    []byte
	now       func() time.Time

	pickMu sync.Mutex
	pick   func(n int) int
}

// Option allows functional configuration.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

// WithCompleter sets the model backend. Defaults to echo.
func WithCompleter(c core.Completer) Option { return func(s *Server) { s.completer = c } }

// WithSessionStore sets the session store. Defaults to an in-memory store.
func WithSessionStore(st store.SessionStore) Option { return func(s *Server) { s.sessions = st } }

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithPicker overrides the random choice used for irregular replies; pick(n)
// must return a value in [0, n).
func WithPicker(pick func(n int) int) Option { return func(s *Server) { s.pick = pick } }

func New(cfg config.ServerConfig, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		sessions:  store.NewMemory(),
		tokens:    store.NewTokenStore(),
		completer: echo.New(),
		logger:    zap.NewNop(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
		schema:    []byte(util.GenerateJSONSchema(&ChatRequest{})),
	}
	rng := mrand.New(mrand.NewSource(time.Now().UnixNano()))
	s.pick = rng.Intn
	for _, o := range opts {
		o(s)
	}

	// ttl is reported in whole seconds.
	if s.cfg.TokenTTL < time.Second {
		return nil, fmt.Errorf("server token ttl must be at least 1s, got %v", s.cfg.TokenTTL)
	}
	if cfg.SigningKey != "" {
		s.signKey = []byte(cfg.SigningKey)
	} else {
		s.signKey = make([]byte, 32)
		if _, err := rand.Read(s.signKey); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	return s, nil
}

func (s *Server) randomInt(n int) int {
	s.pickMu.Lock()
	defer s.pickMu.Unlock()
	return s.pick(n)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go s.sweepTokens(janitorCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("chat api listening",
		zap.String("addr", addr),
		zap.Duration("token_ttl", s.cfg.TokenTTL),
		zap.Int("irregular_every", s.cfg.IrregularEvery),
		zap.String("upstream", fmt.Sprintf("%T", s.completer)),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("chat api shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) sweepTokens(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.tokens.Sweep(s.now()); n > 0 {
				s.logger.Debug("swept expired tokens", zap.Int("count", n))
			}
		}
	}
}
