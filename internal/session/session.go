package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dormworry/dormclient/internal/domain"
)

var (
	ErrNoSession    = errors.New("no active session")
	ErrTokenExpired = errors.New("session token has expired")
)

// Claims are the backend-issued JWT claims this client inspects. Token
// issuance and validation stay on the backend; the client only reads the
// payload for identity and expiry.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
}

// Credentials is what a completed login yields.
type Credentials struct {
	Token    string
	UserID   string
	Nickname string
}

// Exchanger swaps a Kakao authorization code for backend credentials.
// Implemented by the REST client.
type Exchanger interface {
	ExchangeKakaoCode(ctx context.Context, code string) (Credentials, error)
}

// Session holds the active user's token and identity. All chat components
// read the current user id from here.
type Session struct {
	mu        sync.RWMutex
	token     string
	userID    string
	nickname  string
	expiresAt time.Time
}

func New() *Session {
	return &Session{}
}

// Login exchanges the authorization code and installs the resulting
// credentials.
func (s *Session) Login(ctx context.Context, ex Exchanger, code string) error {
	creds, err := ex.ExchangeKakaoCode(ctx, code)
	if err != nil {
		return fmt.Errorf("kakao code exchange: %w", err)
	}
	return s.SetCredentials(creds)
}

// SetCredentials installs a token directly, e.g. one restored from disk.
// Identity fields missing from the credentials are filled from the token's
// claims when the token parses as a JWT.
func (s *Session) SetCredentials(creds Credentials) error {
	if creds.Token == "" {
		return ErrNoSession
	}

	userID := domain.NormalizeID(creds.UserID)
	nickname := creds.Nickname
	var expiresAt time.Time

	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(creds.Token, claims); err == nil {
		if userID == "" {
			userID = domain.NormalizeID(claims.UserID)
		}
		if userID == "" {
			userID = domain.NormalizeID(claims.Subject)
		}
		if nickname == "" {
			nickname = claims.Nickname
		}
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = creds.Token
	s.userID = userID
	s.nickname = nickname
	s.expiresAt = expiresAt
	return nil
}

// Valid reports whether a usable token is present.
func (s *Session) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	if !s.expiresAt.IsZero() && time.Now().After(s.expiresAt) {
		return false
	}
	return true
}

// Token returns the bearer token, or ErrNoSession when none is usable.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoSession
	}
	if !s.expiresAt.IsZero() && time.Now().After(s.expiresAt) {
		return "", ErrTokenExpired
	}
	return s.token, nil
}

// CurrentUserID returns the normalized id of the active user, or "" when
// logged out. The reconciler compares message senders against this.
func (s *Session) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

// Clear drops the session, e.g. on logout or a 401 from the backend.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.userID = ""
	s.nickname = ""
	s.expiresAt = time.Time{}
}
