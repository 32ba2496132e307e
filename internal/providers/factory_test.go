package providers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	moderr "github.com/lizzyg/chatbridge/errors"
	"github.com/lizzyg/chatbridge/internal/config"
	"github.com/lizzyg/chatbridge/internal/providers/chatapi"
	"github.com/lizzyg/chatbridge/internal/providers/echo"
	"github.com/lizzyg/chatbridge/internal/providers/gemini"
	"github.com/lizzyg/chatbridge/internal/providers/openai"
	"github.com/lizzyg/chatbridge/internal/providers/stub"
)

func TestNewAPIClient(t *testing.T) {
	hc := &http.Client{}
	cfg := config.Defaults()

	c, err := NewAPIClient(cfg, hc, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok := c.(*chatapi.Client); !ok {
		t.Fatalf("expected chatapi client, got %T", c)
	}

	cfg.Provider = "stub"
	c, err = NewAPIClient(cfg, hc, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, ok := c.(*stub.Client); !ok {
		t.Fatalf("expected stub client, got %T", c)
	}

	cfg.Provider = "carrier-pigeon"
	if _, err := NewAPIClient(cfg, hc, nil); !errors.Is(err, moderr.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewCompleter(t *testing.T) {
	hc := &http.Client{}
	rc := config.RetryConfig{MaxAttempts: 1}
	tests := []struct {
		name string
		uc   config.UpstreamConfig
		want string
	}{
		{"empty is echo", config.UpstreamConfig{}, "echo"},
		{"openai without key is echo", config.UpstreamConfig{Provider: "openai"}, "echo"},
		{"openai", config.UpstreamConfig{Provider: "openai", APIKey: "k"}, "openai"},
		{"gemini", config.UpstreamConfig{Provider: "gemini", APIKey: "k"}, "gemini"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCompleter(tt.uc, rc, hc, nil)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			var got string
			switch c.(type) {
			case *echo.Completer:
				got = "echo"
			case *openai.Client:
				got = "openai"
			case *gemini.Client:
				got = "gemini"
			}
			if got != tt.want {
				t.Fatalf("got %T, want %s", c, tt.want)
			}
		})
	}

	if _, err := NewCompleter(config.UpstreamConfig{Provider: "nope"}, rc, hc, nil); !errors.Is(err, moderr.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestRetryConfig(t *testing.T) {
	got := RetryConfig(config.RetryConfig{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 2 * time.Second, JitterRatio: 0.5})
	if got.MaxAttempts != 4 || got.BaseDelay != time.Second || got.MaxDelay != 2*time.Second || got.JitterRatio != 0.5 {
		t.Fatalf("unexpected %+v", got)
	}
	if d := RetryConfig(config.RetryConfig{}); d.MaxAttempts != 5 {
		t.Fatalf("empty config should use defaults, got %+v", d)
	}
}
