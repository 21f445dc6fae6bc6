package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no active session")
	ErrSessionExpired     = errors.New("session expired")
)

// IdentityProvider verifies admin credentials and returns the identity to record
type IdentityProvider interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// PasswordProvider checks a single configured admin account against a bcrypt hash
type PasswordProvider struct {
	email string
	hash  []byte
}

// NewPasswordProvider creates a provider for one admin account
func NewPasswordProvider(email, passwordHash string) *PasswordProvider {
	return &PasswordProvider{
		email: strings.ToLower(strings.TrimSpace(email)),
		hash:  []byte(passwordHash),
	}
}

func (p *PasswordProvider) Authenticate(_ context.Context, email, password string) (string, error) {
	if p.email == "" || len(p.hash) == 0 {
		return "", ErrInvalidCredentials
	}
	if strings.ToLower(strings.TrimSpace(email)) != p.email {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(p.hash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return p.email, nil
}

// SessionManager mints and checks the local admin session. The session lifetime
// is independent of the identity provider.
type SessionManager struct {
	kv       store.KV
	provider IdentityProvider
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSessionManager creates a new session manager
func NewSessionManager(kv store.KV, provider IdentityProvider, ttl time.Duration) *SessionManager {
	return &SessionManager{
		kv:       kv,
		provider: provider,
		ttl:      ttl,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// SignIn verifies credentials and replaces any existing session
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (models.AdminSession, error) {
	identity, err := m.provider.Authenticate(ctx, email, password)
	if err != nil {
		m.logger.Warn("Admin sign-in rejected", zap.String("email", email))
		return models.AdminSession{}, err
	}

	session := models.AdminSession{
		Token:     uuid.NewString(),
		Identity:  identity,
		ExpiresAt: m.now().Add(m.ttl),
	}
	if err := m.kv.Put(ctx, store.KeyAdminSession, session); err != nil {
		return models.AdminSession{}, fmt.Errorf("failed to persist session: %w", err)
	}

	m.logger.Info("Admin signed in", zap.String("identity", identity), zap.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// Validate returns the session matching token. An expired session is destroyed.
func (m *SessionManager) Validate(ctx context.Context, token string) (models.AdminSession, error) {
	if token == "" {
		return models.AdminSession{}, ErrNoSession
	}

	var session models.AdminSession
	found, err := m.kv.Get(ctx, store.KeyAdminSession, &session)
	if err != nil {
		return models.AdminSession{}, fmt.Errorf("failed to read session: %w", err)
	}
	if !found || subtle.ConstantTimeCompare([]byte(session.Token), []byte(token)) != 1 {
		return models.AdminSession{}, ErrNoSession
	}

	if !m.now().Before(session.ExpiresAt) {
		if err := m.kv.Delete(ctx, store.KeyAdminSession); err != nil {
			m.logger.Error("Failed to destroy expired session", zap.Error(err))
		}
		return models.AdminSession{}, ErrSessionExpired
	}
	return session, nil
}

// SignOut destroys the session
func (m *SessionManager) SignOut(ctx context.Context) error {
	if err := m.kv.Delete(ctx, store.KeyAdminSession); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
