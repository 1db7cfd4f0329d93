package session

import (
	"crypto/subtle"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"kalena/internal/model"
)

const (
	KeyToken = "authToken"
	KeyUser  = "user"
	// KeyLinkState holds the nonce of a calendar-linking flow in progress.
	KeyLinkState = "oauth_state"
	// KeyCSRF holds the token that state-changing forms must echo.
	KeyCSRF = "csrf"
)

// Session exposes token and user bookkeeping on top of a Store.
type Session struct {
	store Store
}

func New(store Store) *Session {
	return &Session{store: store}
}

func (s *Session) SetToken(token string) error {
	return s.store.Store(KeyToken, token)
}

// Token returns the stored bearer token; an empty token reads as absent.
func (s *Session) Token() (string, bool) {
	tok, ok := s.store.Load(KeyToken)
	if !ok || tok == "" {
		return "", false
	}
	return tok, true
}

func (s *Session) RemoveToken() error {
	return s.store.Clear(KeyToken)
}

func (s *Session) SetUser(u model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.store.Store(KeyUser, string(data))
}

// User returns the cached profile. Missing or corrupt values read as absent.
func (s *Session) User() (*model.User, bool) {
	raw, ok := s.store.Load(KeyUser)
	if !ok || raw == "" {
		return nil, false
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, false
	}
	return &u, true
}

func (s *Session) RemoveUser() error {
	return s.store.Clear(KeyUser)
}

// IsLoggedIn is true when a token is present.
func (s *Session) IsLoggedIn() bool {
	_, ok := s.Token()
	return ok
}

// Logout removes the token, the cached user and the form token.
func (s *Session) Logout() error {
	if err := s.RemoveToken(); err != nil {
		return err
	}
	if err := s.RemoveUser(); err != nil {
		return err
	}
	return s.store.Clear(KeyCSRF)
}

// BeginLink stores a fresh nonce for a linking flow and returns it. The
// backend hands it back on the callback as the state parameter.
func (s *Session) BeginLink() (string, error) {
	state := uuid.NewString()
	if err := s.store.Store(KeyLinkState, state); err != nil {
		return "", err
	}
	return state, nil
}

// FinishLink reports whether state matches the pending nonce. The nonce is
// cleared either way, so a state value is accepted at most once.
func (s *Session) FinishLink(state string) bool {
	want, ok := s.store.Load(KeyLinkState)
	_ = s.store.Clear(KeyLinkState)
	return ok && equalTokens(want, state)
}

// CSRFToken returns the form token of this session, minting one on first use.
func (s *Session) CSRFToken() (string, error) {
	if tok, ok := s.store.Load(KeyCSRF); ok && tok != "" {
		return tok, nil
	}
	tok := uuid.NewString()
	if err := s.store.Store(KeyCSRF, tok); err != nil {
		return "", err
	}
	return tok, nil
}

// ValidCSRF reports whether tok is the form token of this session.
func (s *Session) ValidCSRF(tok string) bool {
	want, ok := s.store.Load(KeyCSRF)
	return ok && equalTokens(want, tok)
}

func equalTokens(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func (s *Session) ClearAll() error {
	return s.store.ClearAll()
}

// TokenExpiry reads the exp claim of a JWT bearer token without verifying
// its signature; the backend is the authority on validity. Opaque tokens and
// JWTs without exp report false.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
