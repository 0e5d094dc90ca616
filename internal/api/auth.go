package api

import (
	"context"
	"net/http"
)

type verifyRequest struct {
	FirebaseToken string `json:"firebase_token"`
}

// TokenRefresh is the result of refreshing the API bearer token.
type TokenRefresh struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// VerifyIDToken exchanges an identity-provider ID token for an API
// bearer token. The caller is responsible for installing the token
// via SetToken.
func (c *Client) VerifyIDToken(ctx context.Context, idToken string) (*VerifyResult, error) {
	var result VerifyResult
	if err := c.do(ctx, http.MethodPost, "auth/verify", nil, verifyRequest{FirebaseToken: idToken}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RefreshToken mints a fresh API bearer token for the current session.
func (c *Client) RefreshToken(ctx context.Context) (*TokenRefresh, error) {
	var result TokenRefresh
	if err := c.do(ctx, http.MethodPost, "auth/refresh", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Me returns the backend's view of the authenticated user.
func (c *Client) Me(ctx context.Context) (*AuthUser, error) {
	var user AuthUser
	if err := c.do(ctx, http.MethodGet, "auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
