package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies at 100kb.
const maxBodyBytes = 100 << 10

// Handler returns the chat API routes with their middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.RequestSize(maxBodyBytes))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", SessionHeader},
		ExposedHeaders: []string{SessionHeader, middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/schema", s.handleSchema)
	r.Post("/auth", s.handleAuth)
	r.Post("/session", s.handleSession)
	r.Post("/chat", s.handleChat)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	return r
}

// requestLogger logs one line per request. Header values are left out so
// bearer tokens never reach the logs.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote", r.RemoteAddr),
			zap.Bool("has_session", r.Header.Get(SessionHeader) != ""),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
