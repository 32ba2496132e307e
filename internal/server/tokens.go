package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "chatbridge"

// Rejection messages sent with 401 responses.
const (
	msgMissingAuth  = "Missing or invalid Authorization header"
	msgInvalidToken = "Invalid or expired token"
	msgTokenExpired = "Token expired"
)

// issueToken signs a new token and records its id until it expires.
func (s *Server) issueToken() (string, error) {
	now := s.now()
	exp := now.Add(s.cfg.TokenTTL)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	s.tokens.Put(claims.ID, exp)
	return signed, nil
}

// authorize checks the request's bearer token. When it is rejected the
// returned reason is sent to the client.
func (s *Server) authorize(r *http.Request) (reason string, ok bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return msgMissingAuth, false
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	// Expiry is judged against the token store, so exp is not validated here.
	var claims jwt.RegisteredClaims
	keyFunc := func(*jwt.Token) (any, error) { return s.signKey, nil }
	_, err := jwt.ParseWithClaims(raw, &claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || claims.ID == "" || claims.Issuer != tokenIssuer {
		return msgInvalidToken, false
	}

	exp, found := s.tokens.Lookup(claims.ID)
	if !found {
		return msgInvalidToken, false
	}
	if !s.now().Before(exp) {
		s.tokens.Delete(claims.ID)
		return msgTokenExpired, false
	}
	return "", true
}
