package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
)

// ErrUnauthenticated is returned by [Authenticator] implementations when the
// request carries no valid credential.
var ErrUnauthenticated = errors.New("server: unauthenticated")

// Authenticator resolves an incoming request to a journal user ID. The
// server treats identity as an external concern; swapping in a session or
// OIDC based implementation only requires satisfying this interface.
type Authenticator interface {
	// Authenticate returns the user ID the request acts as, or
	// [ErrUnauthenticated] when the credential is missing or unknown.
	Authenticate(r *http.Request) (string, error)
}

// StaticTokens authenticates requests against a fixed bearer-token map.
// The token set can be swapped at runtime via [StaticTokens.Replace], which
// the config watcher uses for hot reload.
type StaticTokens struct {
	mu     sync.RWMutex
	tokens map[string]string // token -> user ID
}

var _ Authenticator = (*StaticTokens)(nil)

// NewStaticTokens builds a token authenticator from a token→user map.
func NewStaticTokens(tokens map[string]string) *StaticTokens {
	s := &StaticTokens{}
	s.Replace(tokens)
	return s
}

// Replace swaps the full token set.
func (s *StaticTokens) Replace(tokens map[string]string) {
	copied := make(map[string]string, len(tokens))
	for token, userID := range tokens {
		copied[token] = userID
	}
	s.mu.Lock()
	s.tokens = copied
	s.mu.Unlock()
}

// Authenticate implements [Authenticator] by matching the Authorization
// bearer token against the configured token set.
func (s *StaticTokens) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", ErrUnauthenticated
	}

	s.mu.RLock()
	userID, found := s.tokens[token]
	s.mu.RUnlock()
	if !found {
		return "", ErrUnauthenticated
	}
	return userID, nil
}

type userIDKey struct{}

// withUserID stores the authenticated user ID on the request context.
func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// userID returns the authenticated user ID set by the auth middleware.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
