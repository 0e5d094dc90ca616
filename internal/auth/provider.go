package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Credentials is the identity material returned by a provider sign-in.
type Credentials struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the ID token is past (or within a minute of) expiry.
func (c *Credentials) Expired() bool {
	return time.Now().After(c.ExpiresAt.Add(-time.Minute))
}

// Provider performs identity operations against an external identity service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Credentials, error)
	SignUp(ctx context.Context, email, password, displayName string) (*Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
	Revoke(ctx context.Context, idToken string) error
}

const (
	identityBaseURL    = "https://identitytoolkit.googleapis.com/v1"
	secureTokenBaseURL = "https://securetoken.googleapis.com/v1"
)

// IdentityProvider implements Provider against the Google Identity Toolkit
// REST API, which fronts Firebase email/password accounts.
type IdentityProvider struct {
	apiKey     string
	baseURL    string
	tokenURL   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewIdentityProvider creates a provider using the given web API key.
func NewIdentityProvider(apiKey string, logger *zap.Logger) *IdentityProvider {
	return &IdentityProvider{
		apiKey:     apiKey,
		baseURL:    identityBaseURL,
		tokenURL:   secureTokenBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.Named("identity"),
	}
}

type identityError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	DisplayName       string `json:"displayName,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type passwordResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (p *IdentityProvider) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	return p.passwordGrant(ctx, "accounts:signInWithPassword", email, password, "")
}

func (p *IdentityProvider) SignUp(ctx context.Context, email, password, displayName string) (*Credentials, error) {
	return p.passwordGrant(ctx, "accounts:signUp", email, password, displayName)
}

func (p *IdentityProvider) passwordGrant(ctx context.Context, endpoint, email, password, displayName string) (*Credentials, error) {
	var resp passwordResponse
	err := p.post(ctx, p.baseURL+"/"+endpoint, passwordRequest{
		Email:             email,
		Password:          password,
		DisplayName:       displayName,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return credentialsFrom(resp.LocalID, resp.Email, resp.IDToken, resp.RefreshToken, resp.ExpiresIn)
}

type refreshResponse struct {
	UserID       string `json:"user_id"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

func (p *IdentityProvider) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	var resp refreshResponse
	err := p.post(ctx, p.tokenURL+"/token", map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return credentialsFrom(resp.UserID, "", resp.IDToken, resp.RefreshToken, resp.ExpiresIn)
}

// Revoke invalidates the session server side. The identity toolkit has no
// dedicated revoke endpoint for password accounts, so this is a no-op kept
// to satisfy the Provider interface.
func (p *IdentityProvider) Revoke(_ context.Context, _ string) error {
	return nil
}

func (p *IdentityProvider) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"?key="+p.apiKey, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var ie identityError
		if err := json.NewDecoder(resp.Body).Decode(&ie); err == nil && ie.Error.Message != "" {
			return fmt.Errorf("identity provider: %s", ie.Error.Message)
		}
		return fmt.Errorf("identity provider: status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func credentialsFrom(uid, email, idToken, refreshToken, expiresIn string) (*Credentials, error) {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil {
		secs = 3600
	}
	return &Credentials{
		UID:          uid,
		Email:        email,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(secs) * time.Second),
	}, nil
}
