package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/openmemory/openmemory-go/identity"
)

// Agent is the client binding: one backend target plus the identity calls
// are dispatched as. A single Agent is shared by the whole client; only the
// session manager mutates it, through [Agent.Rebind].
type Agent struct {
	host       string
	canisterID string
	transport  Transport

	mu      sync.RWMutex
	id      identity.Identity
	target  Target
	rootKey []byte
}

// New creates a binding for the given host and canister, bound to the
// anonymous identity. The transport is required.
func New(host, canisterID string, transport Transport) (*Agent, error) {
	if host == "" {
		return nil, errors.New("host required")
	}
	if canisterID == "" {
		return nil, errors.New("canister id required")
	}
	if transport == nil {
		return nil, errors.New("transport required")
	}
	a := &Agent{
		host:       host,
		canisterID: canisterID,
		transport:  transport,
	}
	a.Rebind(identity.Anonymous{})
	return a, nil
}

// Rebind swaps the active identity and rebuilds the derived call target in
// one step. Every identity transition (login, logout, restore confirmation)
// must go through here; a target built from a previous identity must never
// serve another call.
func (a *Agent) Rebind(id identity.Identity) {
	if id == nil {
		id = identity.Anonymous{}
	}
	a.mu.Lock()
	a.id = id
	a.target = Target{
		Host:       a.host,
		CanisterID: a.canisterID,
		Sender:     id.Principal(),
	}
	a.mu.Unlock()
}

// Identity returns the currently-bound identity.
func (a *Agent) Identity() identity.Identity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.id
}

// Target returns a copy of the current derived call target.
func (a *Agent) Target() Target {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.target
}

// FetchRootKey retrieves and pins the backend's root signing key. It must
// only be used against local development networks; trusting a fetched key
// from a production host defeats the point of shipping one.
func (a *Agent) FetchRootKey(ctx context.Context) error {
	key, err := a.transport.FetchRootKey(ctx, a.host)
	if err != nil {
		return fmt.Errorf("fetch root key: %w", err)
	}
	a.mu.Lock()
	a.rootKey = key
	a.mu.Unlock()
	return nil
}

// RootKey returns the pinned root key, nil when none was fetched.
func (a *Agent) RootKey() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rootKey
}

// Query dispatches the envelope over the fast read path.
func (a *Agent) Query(ctx context.Context, env RequestEnvelope) (ResponseEnvelope, error) {
	return a.call(ctx, CallQuery, env)
}

// Update dispatches the envelope over the committed write path.
func (a *Agent) Update(ctx context.Context, env RequestEnvelope) (ResponseEnvelope, error) {
	return a.call(ctx, CallUpdate, env)
}

func (a *Agent) call(ctx context.Context, kind CallKind, env RequestEnvelope) (ResponseEnvelope, error) {
	a.mu.RLock()
	id := a.id
	target := a.target
	a.mu.RUnlock()

	payload := CallPayload{
		RequestID:  uuid.New().String(),
		Sender:     target.Sender,
		Credential: id.Credential(),
		Envelope:   env,
	}

	// Update calls are signed by the session key; the anonymous identity
	// cannot sign, and the read path does not require it.
	if kind == CallUpdate && !id.Anonymous() {
		sig, err := id.Sign(signingMessage(payload.RequestID, env))
		if err != nil {
			return ResponseEnvelope{}, fmt.Errorf("sign call: %w", err)
		}
		payload.Signature = encodeSignature(sig)
	}

	return a.transport.Call(ctx, kind, target, payload)
}

func signingMessage(requestID string, env RequestEnvelope) []byte {
	var b strings.Builder
	b.Grow(len(requestID) + len(env.Method) + len(env.URL) + len(env.Body) + 3)
	b.WriteString(requestID)
	b.WriteByte('\n')
	b.WriteString(env.Method)
	b.WriteByte('\n')
	b.WriteString(env.URL)
	b.WriteByte('\n')
	b.Write(env.Body)
	return []byte(b.String())
}
