// Package auth implements email/password accounts and bearer token sessions
// for the backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
	"roast-tracker/internal/store"
)

// MinPasswordLength is the shortest password SignUp accepts.
const MinPasswordLength = 6

// Principal is the authenticated caller behind a token.
type Principal struct {
	UserID string
	Email  string
}

// Session is what a successful sign-in returns to the client.
type Session struct {
	AccessToken string            `json:"access_token"`
	ExpiresAt   time.Time         `json:"expires_at"`
	User        model.UserProfile `json:"user"`
}

// Sessions keeps issued tokens in memory until they expire.
type Sessions struct {
	tokens *cache.Cache
	ttl    time.Duration
}

// NewSessions creates a token table whose entries live for ttl.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		tokens: cache.New(ttl, 2*ttl),
		ttl:    ttl,
	}
}

// Issue creates a new token for p.
func (s *Sessions) Issue(p Principal) (string, time.Time) {
	token := uuid.NewString()
	s.tokens.Set(token, p, s.ttl)
	return token, time.Now().Add(s.ttl)
}

// Resolve returns the principal of a live token.
func (s *Sessions) Resolve(token string) (Principal, bool) {
	v, ok := s.tokens.Get(token)
	if !ok {
		return Principal{}, false
	}
	return v.(Principal), true
}

// Revoke drops token. Unknown tokens are ignored.
func (s *Sessions) Revoke(token string) {
	s.tokens.Delete(token)
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Service ties accounts in the store to token sessions.
type Service struct {
	store    store.Store
	sessions *Sessions
}

// NewService creates an auth service.
func NewService(s store.Store, sessions *Sessions) *Service {
	return &Service{store: s, sessions: sessions}
}

// SignUp registers a new account and signs it in.
func (svc *Service) SignUp(ctx context.Context, email, password string, name *string) (Session, error) {
	if !strings.Contains(email, "@") {
		return Session{}, errs.Validation("email", "invalid email address")
	}
	if len(password) < MinPasswordLength {
		return Session{}, errs.Validation("password", "must be at least %d characters", MinPasswordLength)
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			name = nil
		} else {
			name = &trimmed
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, err
	}
	user, profile, err := svc.store.CreateUser(ctx, email, hash, name)
	if err != nil {
		return Session{}, err
	}
	return svc.issue(user, profile), nil
}

// SignIn checks the credentials and issues a token.
func (svc *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := svc.store.FindUserByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return Session{}, fmt.Errorf("invalid login credentials: %w", errs.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return Session{}, fmt.Errorf("invalid login credentials: %w", errs.ErrUnauthorized)
	}

	profile, err := svc.store.GetUserProfile(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	return svc.issue(user, profile), nil
}

// SignOut revokes token.
func (svc *Service) SignOut(token string) {
	svc.sessions.Revoke(token)
}

// Resolve returns the principal behind token, or errs.ErrUnauthorized.
func (svc *Service) Resolve(token string) (Principal, error) {
	p, ok := svc.sessions.Resolve(token)
	if !ok {
		return Principal{}, fmt.Errorf("invalid or expired token: %w", errs.ErrUnauthorized)
	}
	return p, nil
}

func (svc *Service) issue(user model.User, profile model.UserProfile) Session {
	token, expires := svc.sessions.Issue(Principal{UserID: user.ID, Email: user.Email})
	return Session{AccessToken: token, ExpiresAt: expires, User: profile}
}
