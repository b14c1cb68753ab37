package identity

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrAuthorizationDeclined is returned when the identity provider refuses
// to authorize a session key (the user cancelled or was rejected). It is
// the expected, non-exceptional login failure.
var ErrAuthorizationDeclined = errors.New("authorization declined by identity provider")

// Provider authorizes session keys. The session manager calls Authorize
// once per login; the returned delegation binds the session key to the
// user's principal for at most ttl.
type Provider interface {
	Authorize(ctx context.Context, sessionPub ed25519.PublicKey, ttl time.Duration) (*Delegation, error)
}

// HTTPProvider authorizes session keys against a remote identity provider
// over HTTP. The provider endpoint receives the session public key and the
// requested lifetime and answers with a serialized delegation.
type HTTPProvider struct {
	// URL is the provider's authorize endpoint.
	URL string

	// VerifyKey, when set, is used to check the delegation signature
	// before trusting the credential. When nil the credential is accepted
	// unverified; the backend re-verifies on every call.
	VerifyKey ed25519.PublicKey

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

type authorizeRequest struct {
	SessionKey string `json:"session_key"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type authorizeResponse struct {
	Delegation string `json:"delegation"`
	Error      string `json:"error,omitempty"`
}

// Authorize implements [Provider].
func (p *HTTPProvider) Authorize(ctx context.Context, sessionPub ed25519.PublicKey, ttl time.Duration) (*Delegation, error) {
	if p == nil || p.URL == "" {
		return nil, errors.New("identity provider URL not configured")
	}
	if ttl <= 0 || ttl > MaxCredentialLifetime {
		ttl = MaxCredentialLifetime
	}

	payload, err := json.Marshal(authorizeRequest{
		SessionKey: base64.StdEncoding.EncodeToString(sessionPub),
		TTLSeconds: int64(ttl / time.Second),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrAuthorizationDeclined
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("identity provider returned %d: %s", resp.StatusCode, body)
	}

	var decoded authorizeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if decoded.Delegation == "" {
		if decoded.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrAuthorizationDeclined, decoded.Error)
		}
		return nil, errors.New("provider response missing delegation")
	}

	return ParseDelegation(decoded.Delegation, p.VerifyKey)
}
