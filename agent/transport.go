package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// CallKind selects the backend call path.
type CallKind uint8

const (
	// CallQuery is the fast, uncommitted read path.
	CallQuery CallKind = iota
	// CallUpdate is the consensus-committed write path.
	CallUpdate
)

// String returns the wire name of the call kind.
func (k CallKind) String() string {
	if k == CallUpdate {
		return "call"
	}
	return "query"
}

// Target is the derived call target: where a call goes and who it is sent
// as. Targets are rebuilt by [Agent.Rebind] on every identity change and
// must never be cached across a swap.
type Target struct {
	Host       string
	CanisterID string
	Sender     string
}

// Transport moves one envelope to the backend and returns the reply.
// Implementations must not retry, coalesce, or reorder calls.
type Transport interface {
	Call(ctx context.Context, kind CallKind, target Target, payload CallPayload) (ResponseEnvelope, error)

	// FetchRootKey retrieves the backend's root signing key. Only local
	// development networks are queried for it; the production key ships
	// with the client.
	FetchRootKey(ctx context.Context, host string) ([]byte, error)
}

// CallPayload is the signed wire frame around one request envelope.
type CallPayload struct {
	RequestID  string          `json:"request_id"`
	Sender     string          `json:"sender"`
	Credential string          `json:"credential,omitempty"`
	Signature  string          `json:"signature,omitempty"`
	Envelope   RequestEnvelope `json:"envelope"`
}

// HTTPTransport dispatches calls to a canister gateway over HTTP.
type HTTPTransport struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

type gatewayStatus struct {
	RootKey string `json:"root_key"`
}

// Call implements [Transport].
func (t *HTTPTransport) Call(ctx context.Context, kind CallKind, target Target, payload CallPayload) (ResponseEnvelope, error) {
	if target.Host == "" || target.CanisterID == "" {
		return ResponseEnvelope{}, errors.New("call target not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ResponseEnvelope{}, err
	}

	url := fmt.Sprintf("%s/api/v2/canister/%s/%s", target.Host, target.CanisterID, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ResponseEnvelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client().Do(req)
	if err != nil {
		return ResponseEnvelope{}, fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ResponseEnvelope{}, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ResponseEnvelope{}, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, raw)
	}

	var envelope ResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ResponseEnvelope{}, fmt.Errorf("decode gateway response: %w", err)
	}
	return envelope, nil
}

// FetchRootKey implements [Transport]. It reads the gateway status
// document and returns the advertised root key.
func (t *HTTPTransport) FetchRootKey(ctx context.Context, host string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/api/v2/status", nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, raw)
	}

	var status gatewayStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode status document: %w", err)
	}
	if status.RootKey == "" {
		return nil, errors.New("status document missing root key")
	}
	key, err := base64.StdEncoding.DecodeString(status.RootKey)
	if err != nil {
		return nil, fmt.Errorf("decode root key: %w", err)
	}
	return key, nil
}

func (t *HTTPTransport) client() *http.Client {
	if t != nil && t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}
