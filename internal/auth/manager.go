package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexushq/nexus/internal/api"
	"github.com/nexushq/nexus/internal/bus"
)

// ErrNoUser is returned by operations that require a signed-in user.
var ErrNoUser = errors.New("no signed-in user")

// ProfileStore caches user profiles locally.
type ProfileStore interface {
	GetProfile(userID string) (*api.UserProfile, error)
	SetProfile(userID string, p *api.UserProfile) error
}

// Manager drives the auth lifecycle: identity provider sign-in, backend
// token exchange, profile bootstrap and sign-out.
type Manager struct {
	machine  *Machine
	provider Provider
	client   *api.Client
	profiles ProfileStore
	bus      *bus.Bus
	logger   *zap.Logger

	mu      sync.RWMutex
	creds   *Credentials
	user    *api.AuthUser
	profile *api.UserProfile
}

// NewManager wires the auth manager.
func NewManager(machine *Machine, provider Provider, client *api.Client, profiles ProfileStore, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		machine:  machine,
		provider: provider,
		client:   client,
		profiles: profiles,
		bus:      b,
		logger:   logger.Named("auth"),
	}
}

// Status returns the current auth status.
func (m *Manager) Status() Status {
	return m.machine.Current()
}

// User returns the signed-in user, or nil when signed out.
func (m *Manager) User() *api.AuthUser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// SignIn authenticates with email and password, exchanges the identity
// token with the backend and loads the user's profile.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	return m.establish(ctx, func(ctx context.Context) (*Credentials, error) {
		return m.provider.SignIn(ctx, email, password)
	})
}

// SignUp registers a new account and signs it in.
func (m *Manager) SignUp(ctx context.Context, email, password, displayName string) error {
	return m.establish(ctx, func(ctx context.Context) (*Credentials, error) {
		return m.provider.SignUp(ctx, email, password, displayName)
	})
}

func (m *Manager) establish(ctx context.Context, grant func(context.Context) (*Credentials, error)) error {
	if err := m.machine.Transition(SessionPending); err != nil {
		return err
	}

	creds, err := grant(ctx)
	if err != nil {
		m.abort()
		return err
	}

	result, err := m.client.VerifyIDToken(ctx, creds.IDToken)
	if err != nil {
		m.abort()
		return fmt.Errorf("token exchange: %w", err)
	}
	m.client.SetToken(result.Token)

	profile, err := m.loadProfile(ctx, result.User.ID)
	if err != nil {
		m.client.ClearToken()
		m.abort()
		return err
	}

	m.mu.Lock()
	m.creds = creds
	m.user = &result.User
	m.profile = profile
	m.mu.Unlock()

	if err := m.machine.Transition(SignedIn); err != nil {
		return err
	}
	m.logger.Info("signed in", zap.String("uid", result.User.ID))
	m.publish(bus.KindAuthSignedIn, result.User)
	return nil
}

// abort rolls the machine back to signed out after a failed sign-in.
func (m *Manager) abort() {
	if err := m.machine.Transition(SignedOut); err != nil {
		m.logger.Warn("rollback transition failed", zap.Error(err))
	}
}

// loadProfile fetches the backend profile, or synthesizes a default
// document for first-time users, caching either locally.
func (m *Manager) loadProfile(ctx context.Context, userID string) (*api.UserProfile, error) {
	profile, err := m.client.Profile(ctx)
	if err != nil {
		var apiErr *api.Error
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		profile = DefaultProfile(userID)
	}
	if profile.UserID == "" {
		profile.UserID = userID
	}
	if err := m.profiles.SetProfile(userID, profile); err != nil {
		m.logger.Warn("profile cache write failed", zap.Error(err))
	}
	return profile, nil
}

// SignOut revokes the provider session, clears the backend token and
// resets local identity state. Revocation happens before the token is
// cleared so the request still carries credentials.
func (m *Manager) SignOut(ctx context.Context) error {
	if m.machine.Current() != SignedIn {
		return ErrNoUser
	}

	m.mu.RLock()
	creds := m.creds
	m.mu.RUnlock()

	if creds != nil {
		if err := m.provider.Revoke(ctx, creds.IDToken); err != nil {
			m.logger.Warn("revoke failed", zap.Error(err))
		}
	}
	m.client.ClearToken()

	m.mu.Lock()
	m.creds = nil
	m.user = nil
	m.profile = nil
	m.mu.Unlock()

	if err := m.machine.Transition(SignedOut); err != nil {
		return err
	}
	m.logger.Info("signed out")
	m.publish(bus.KindAuthSignedOut, nil)
	return nil
}

// Profile returns the signed-in user's profile.
func (m *Manager) Profile() (*api.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return nil, ErrNoUser
	}
	return m.profile, nil
}

// UpdateProfile pushes profile changes to the backend and refreshes the
// local cache with the server's view.
func (m *Manager) UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*api.UserProfile, error) {
	m.mu.RLock()
	user := m.user
	m.mu.RUnlock()
	if user == nil {
		return nil, ErrNoUser
	}

	profile, err := m.client.UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}
	if profile.UserID == "" {
		profile.UserID = user.ID
	}

	m.mu.Lock()
	m.profile = profile
	m.mu.Unlock()

	if err := m.profiles.SetProfile(user.ID, profile); err != nil {
		m.logger.Warn("profile cache write failed", zap.Error(err))
	}
	return profile, nil
}

// RefreshSession renews the identity token and backend token when the
// current credentials are near expiry.
func (m *Manager) RefreshSession(ctx context.Context) error {
	m.mu.RLock()
	creds := m.creds
	m.mu.RUnlock()
	if creds == nil {
		return ErrNoUser
	}
	if !creds.Expired() {
		return nil
	}

	renewed, err := m.provider.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}

	// Prefer the backend's own refresh; fall back to a fresh exchange
	// when the old bearer token is already rejected.
	if refreshed, err := m.client.RefreshToken(ctx); err == nil {
		m.client.SetToken(refreshed.Token)
	} else {
		result, err := m.client.VerifyIDToken(ctx, renewed.IDToken)
		if err != nil {
			return fmt.Errorf("token exchange: %w", err)
		}
		m.client.SetToken(result.Token)
	}

	m.mu.Lock()
	m.creds = renewed
	m.mu.Unlock()
	m.logger.Debug("session refreshed")
	return nil
}

// DefaultProfile is the document synthesized for a first-time user.
func DefaultProfile(userID string) *api.UserProfile {
	return &api.UserProfile{
		UserID: userID,
		Goals:  []string{},
		Themes: []string{},
		VoiceProfile: api.VoiceProfile{
			Tone: api.Tone{Formal: 50, Punchy: 50, Contrarian: 50},
		},
		Preferences: api.Preferences{
			Notifications: api.NotificationPrefs{
				Drafts:    true,
				Approvals: true,
			},
			Posting: api.PostingPrefs{
				AutoApprove:       false,
				RequireModeration: true,
			},
			Consultation: api.ConsultationPrefs{
				Frequency: "weekly",
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func (m *Manager) publish(kind string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
