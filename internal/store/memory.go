package store

import (
	"context"
	"sync"
	"time"
)

type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*Session)}
}

func (m *Memory) Create(_ context.Context, id string, createdAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &Session{ID: id, CreatedAt: createdAt, Messages: []Message{}}
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	return out, nil
}

func (m *Memory) RecordRequest(_ context.Context, id string, msg Message) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return 0, ErrSessionNotFound
	}
	s.RequestCount++
	s.Messages = append(s.Messages, msg)
	return s.RequestCount, nil
}

func (m *Memory) AppendMessage(_ context.Context, id string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.Messages = append(s.Messages, msg)
	return nil
}

func (m *Memory) Close() error { return nil }

// TokenStore tracks issued token ids until they expire.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]time.Time)}
}

func (t *TokenStore) Put(id string, expiresAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[id] = expiresAt
}

// Lookup returns the expiry recorded for id.
func (t *TokenStore) Lookup(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	exp, ok := t.tokens[id]
	return exp, ok
}

func (t *TokenStore) Delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tokens, id)
}

// Sweep drops every token that expired before now and returns how many were removed.
func (t *TokenStore) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, exp := range t.tokens {
		if !now.Before(exp) {
			delete(t.tokens, id)
			n++
		}
	}
	return n
}

func (t *TokenStore) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tokens)
}
