// Package store keeps chat sessions and issued token ids for the chat server.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// Message is one turn recorded in a session transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	RequestCount int       `json:"requestCount"`
	Messages     []Message `json:"messages"`
}

// SessionStore persists sessions. Implementations must be safe for concurrent use.
type SessionStore interface {
	Create(ctx context.Context, id string, createdAt time.Time) error
	Get(ctx context.Context, id string) (Session, error)
	// RecordRequest increments the request count, appends msg and returns the new count.
	RecordRequest(ctx context.Context, id string, msg Message) (int, error)
	AppendMessage(ctx context.Context, id string, msg Message) error
	Close() error
}

// Open returns the session store named by kind ("memory" or "sqlite").
func Open(kind, sqlitePath string) (SessionStore, error) {
	switch kind {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}
