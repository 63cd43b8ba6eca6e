// Package session holds the process-wide login state. It is hydrated once
// at launch from the credential store and mutated by sign-in and sign-out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vbonduro/foodguard/internal/store"
)

const (
	// TokenKey is the credential key the access token is stored under.
	TokenKey = "userToken"
	// AccountKey holds the email the token was issued for.
	AccountKey = "userEmail"
)

// CredentialStore is the subset of store.CredentialStore the session uses.
type CredentialStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type Session struct {
	creds CredentialStore
	now   func() time.Time

	mu      sync.RWMutex
	token   string
	account string
}

func New(creds CredentialStore) *Session {
	return &Session{creds: creds, now: time.Now}
}

// Hydrate loads the stored token. A missing token leaves the session logged
// out without error. A token that cannot be unsealed, or a JWT whose exp has
// passed, is removed from the store. Only storage failures are returned.
func (s *Session) Hydrate(ctx context.Context) error {
	token, err := s.creds.Get(ctx, TokenKey)
	if errors.Is(err, store.ErrNotFound) {
		s.set("", "")
		return nil
	}
	if errors.Is(err, store.ErrUnreadable) {
		slog.Warn("stored token is unreadable, signing out", "error", err)
		return s.discard(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to read session token: %w", err)
	}

	if expired(token, s.now()) {
		slog.Info("stored token has expired, signing out")
		return s.discard(ctx)
	}

	account, err := s.creds.Get(ctx, AccountKey)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUnreadable):
		account = ""
	case err != nil:
		return fmt.Errorf("failed to read session account: %w", err)
	}

	s.set(token, account)
	return nil
}

func (s *Session) discard(ctx context.Context) error {
	s.set("", "")
	if err := s.clear(ctx); err != nil {
		return fmt.Errorf("failed to clear stored token: %w", err)
	}
	return nil
}

func (s *Session) clear(ctx context.Context) error {
	for _, key := range []string{TokenKey, AccountKey} {
		if err := s.creds.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// SignIn stores token and the account email it belongs to. email may be
// empty when the caller does not know it.
func (s *Session) SignIn(ctx context.Context, token, email string) error {
	if token == "" {
		return errors.New("cannot sign in with an empty token")
	}
	if err := s.creds.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	if email == "" {
		if err := s.creds.Delete(ctx, AccountKey); err != nil {
			return fmt.Errorf("failed to clear session account: %w", err)
		}
	} else if err := s.creds.Set(ctx, AccountKey, email); err != nil {
		return fmt.Errorf("failed to store session account: %w", err)
	}
	s.set(token, email)
	return nil
}

func (s *Session) SignOut(ctx context.Context) error {
	if err := s.clear(ctx); err != nil {
		return fmt.Errorf("failed to remove session token: %w", err)
	}
	s.set("", "")
	return nil
}

// Token returns the current bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Account returns the signed-in email, or "" when unknown or logged out.
func (s *Session) Account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

func (s *Session) set(token, account string) {
	s.mu.Lock()
	s.token = token
	s.account = account
	s.mu.Unlock()
}

// expired reports whether token is a JWT with an exp claim before now. The
// signature is not verified: only the service can do that, and an opaque
// or unparseable token is passed through for the service to judge.
func expired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}
