package openmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// createTokenRequest is the write-path payload for CreateAccessToken.
type createTokenRequest struct {
	Description string   `json:"description,omitempty"`
	ExpiresDays int      `json:"expires_days"`
	Permissions []string `json:"permissions"`
}

// CreateAccessToken issues a scoped access token. The token value appears
// only in the response; it cannot be retrieved again.
func (c *Client) CreateAccessToken(ctx context.Context, description string, expiresDays int, permissions []string) (*CreateTokenResponse, error) {
	if expiresDays <= 0 {
		return nil, fmt.Errorf("%w: expiry must be at least one day", ErrInvalidInput)
	}
	if len(permissions) == 0 {
		return nil, fmt.Errorf("%w: at least one permission required", ErrInvalidInput)
	}

	body, err := json.Marshal(createTokenRequest{
		Description: description,
		ExpiresDays: expiresDays,
		Permissions: permissions,
	})
	if err != nil {
		return nil, fmt.Errorf("encode token request: %w", err)
	}

	raw, err := c.dispatch(ctx, http.MethodPost, "/auth/tokens", body)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}
	var resp CreateTokenResponse
	if err := c.decode("POST /auth/tokens", raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAccessTokens lists the caller's issued tokens. Token values are
// never returned, only descriptions and lifetimes.
func (c *Client) ListAccessTokens(ctx context.Context) ([]TokenInfo, error) {
	raw, err := c.dispatch(ctx, http.MethodGet, "/auth/tokens", nil)
	if err != nil {
		return nil, fmt.Errorf("list access tokens: %w", err)
	}

	var envelope struct {
		Tokens []TokenInfo `json:"tokens"`
	}
	if err := c.decode("GET /auth/tokens", raw, &envelope); err != nil {
		return nil, err
	}
	if envelope.Tokens == nil {
		return []TokenInfo{}, nil
	}
	return envelope.Tokens, nil
}

// RevokeAccessToken invalidates one token by value.
func (c *Client) RevokeAccessToken(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token required", ErrInvalidInput)
	}

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return fmt.Errorf("encode revoke request: %w", err)
	}
	if _, err := c.dispatch(ctx, http.MethodDelete, "/auth/tokens", body); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}
