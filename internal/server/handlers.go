package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lizzyg/chatbridge/internal/core"
	"github.com/lizzyg/chatbridge/internal/providers/echo"
	"github.com/lizzyg/chatbridge/internal/store"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Input string `json:"input" validate:"required" jsonschema:"description=Prompt text sent to the assistant"`
	Role  string `json:"role" validate:"required" jsonschema:"description=Domain the assistant answers in,example=engineering"`
}

type authResponse struct {
	Token string `json:"token"`
	TTL   int    `json:"ttl"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Message string     `json:"message"`
	Usage   core.Usage `json:"usage"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(s.schema)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	token, err := s.issueToken()
	if err != nil {
		s.logger.Error("issue token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, TTL: int(s.cfg.TokenTTL.Seconds())})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.newSession(r.Context())
	if err != nil {
		s.logger.Error("create session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if reason, ok := s.authorize(r); !ok {
		writeError(w, http.StatusUnauthorized, reason)
		return
	}

	var req ChatRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request entity too large")
		return
	}
	if err != nil || s.validate.Struct(req) != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields: input and role")
		return
	}

	ctx := r.Context()
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		id, err := s.newSession(ctx)
		if err != nil {
			s.logger.Error("create session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		sessionID = id
		w.Header().Set(SessionHeader, id)
	}

	// Unknown session ids are served without bookkeeping.
	count, err := s.sessions.RecordRequest(ctx, sessionID, store.Message{Role: "user", Content: req.Input})
	tracked := err == nil
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		s.logger.Error("record request", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if tracked && s.cfg.IrregularEvery > 0 && count%s.cfg.IrregularEvery == 0 {
		s.logger.Debug("returning irregular response",
			zap.String("session_id", sessionID),
			zap.Int("request", count),
			zap.String("request_id", middleware.GetReqID(ctx)),
		)
		writeJSON(w, http.StatusOK, s.irregularReply(req.Input, count))
		return
	}

	reply := s.complete(ctx, req)
	if tracked {
		if err := s.sessions.AppendMessage(ctx, sessionID, store.Message{Role: "assistant", Content: reply.Message}); err != nil {
			s.logger.Warn("append assistant message", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, chatResponse{Message: reply.Message, Usage: reply.Usage})
}

func (s *Server) newSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.sessions.Create(ctx, id, s.now()); err != nil {
		return "", err
	}
	return id, nil
}

// complete asks the upstream model and falls back to echo when it fails.
func (s *Server) complete(ctx context.Context, req ChatRequest) core.Completion {
	c, err := s.completer.Complete(ctx, core.CompletionRequest{
		Model:       s.cfg.Upstream.Model,
		System:      fmt.Sprintf("You are a helpful assistant in the %s domain.", req.Role),
		Input:       req.Input,
		MaxTokens:   s.cfg.Upstream.MaxTokens,
		Temperature: s.cfg.Upstream.Temperature,
	})
	if err != nil {
		s.logger.Error("upstream completion failed, falling back to echo", zap.Error(err))
		return echo.Reply(req.Input)
	}
	return c
}
