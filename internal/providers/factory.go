package providers

import (
	"net/http"

	"go.uber.org/zap"

	moderr "github.com/lizzyg/chatbridge/errors"
	"github.com/lizzyg/chatbridge/internal/config"
	"github.com/lizzyg/chatbridge/internal/core"
	"github.com/lizzyg/chatbridge/internal/providers/chatapi"
	"github.com/lizzyg/chatbridge/internal/providers/echo"
	"github.com/lizzyg/chatbridge/internal/providers/gemini"
	"github.com/lizzyg/chatbridge/internal/providers/openai"
	"github.com/lizzyg/chatbridge/internal/providers/retry"
	"github.com/lizzyg/chatbridge/internal/providers/stub"
)

// NewAPIClient returns the transport the adapter uses to reach the chat API.
func NewAPIClient(cfg config.Config, hc *http.Client, logger *zap.Logger) (core.APIClient, error) {
	switch cfg.Provider {
	case "", "chatapi":
		return chatapi.New(cfg.Endpoint, hc, RetryConfig(cfg.Retry), logger), nil
	case "stub":
		return stub.New(), nil
	default:
		return nil, moderr.ErrUnknownProvider
	}
}

// NewCompleter returns the model backend the chat server answers with.
// Without an API key the server runs in echo mode.
func NewCompleter(uc config.UpstreamConfig, rc config.RetryConfig, hc *http.Client, logger *zap.Logger) (core.Completer, error) {
	switch uc.Provider {
	case "", "echo":
		return echo.New(), nil
	case "openai":
		if uc.APIKey == "" {
			return echo.New(), nil
		}
		return openai.New(uc, hc, RetryConfig(rc), logger), nil
	case "gemini":
		if uc.APIKey == "" {
			return echo.New(), nil
		}
		return gemini.New(uc, hc, RetryConfig(rc), logger), nil
	default:
		return nil, moderr.ErrUnknownProvider
	}
}

// RetryConfig converts the configured retry policy. An empty section means
// retry.DefaultConfig.
func RetryConfig(rc config.RetryConfig) retry.Config {
	if rc == (config.RetryConfig{}) {
		return retry.DefaultConfig()
	}
	return retry.Config{
		MaxAttempts: rc.MaxAttempts,
		BaseDelay:   rc.BaseDelay,
		MaxDelay:    rc.MaxDelay,
		JitterRatio: rc.JitterRatio,
	}
}
