package agent

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/openmemory/openmemory-go/identity"
)

// recordingTransport captures the last dispatched call.
type recordingTransport struct {
	lastKind    CallKind
	lastTarget  Target
	lastPayload CallPayload
	calls       int
}

func (r *recordingTransport) Call(_ context.Context, kind CallKind, target Target, payload CallPayload) (ResponseEnvelope, error) {
	r.calls++
	r.lastKind = kind
	r.lastTarget = target
	r.lastPayload = payload
	return ResponseEnvelope{StatusCode: 200, Body: []byte("{}")}, nil
}

func (r *recordingTransport) FetchRootKey(context.Context, string) ([]byte, error) {
	return []byte{0xAA}, nil
}

func newDelegatedIdentity(t *testing.T) *identity.Delegated {
	t.Helper()
	_, issuer, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate issuer key: %v", err)
	}
	key, err := identity.NewSessionKey()
	if err != nil {
		t.Fatalf("NewSessionKey failed: %v", err)
	}
	d, err := identity.IssueDelegation(issuer, "test", key.Public(), time.Hour)
	if err != nil {
		t.Fatalf("IssueDelegation failed: %v", err)
	}
	id, err := identity.NewDelegated(key, d)
	if err != nil {
		t.Fatalf("NewDelegated failed: %v", err)
	}
	return id
}

func TestNewBindsAnonymous(t *testing.T) {
	transport := &recordingTransport{}
	a, err := New("http://127.0.0.1:4943", "canister", transport)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !a.Identity().Anonymous() {
		t.Fatal("fresh agent not bound to anonymous")
	}
	if got := a.Target().Sender; got != identity.AnonymousPrincipal {
		t.Fatalf("target sender = %q, want anonymous", got)
	}
}

func TestNewValidatesInputs(t *testing.T) {
	transport := &recordingTransport{}
	if _, err := New("", "canister", transport); err == nil {
		t.Fatal("New accepted empty host")
	}
	if _, err := New("http://h", "", transport); err == nil {
		t.Fatal("New accepted empty canister")
	}
	if _, err := New("http://h", "canister", nil); err == nil {
		t.Fatal("New accepted nil transport")
	}
}

func TestRebindRebuildsTarget(t *testing.T) {
	transport := &recordingTransport{}
	a, err := New("http://127.0.0.1:4943", "canister", transport)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	id := newDelegatedIdentity(t)
	a.Rebind(id)
	if got := a.Target().Sender; got != id.Principal() {
		t.Fatalf("target sender = %q, want %q", got, id.Principal())
	}

	// Rebinding nil falls back to anonymous rather than leaving the old
	// identity in place.
	a.Rebind(nil)
	if !a.Identity().Anonymous() {
		t.Fatal("Rebind(nil) did not fall back to anonymous")
	}
	if got := a.Target().Sender; got != identity.AnonymousPrincipal {
		t.Fatalf("target sender = %q, want anonymous", got)
	}
}

func TestQueryCarriesNoSignature(t *testing.T) {
	transport := &recordingTransport{}
	a, err := New("http://127.0.0.1:4943", "canister", transport)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a.Rebind(newDelegatedIdentity(t))

	env := RequestEnvelope{Method: "GET", URL: "/health"}
	if _, err := a.Query(context.Background(), env); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if transport.lastKind != CallQuery {
		t.Fatalf("kind = %v, want query", transport.lastKind)
	}
	if transport.lastPayload.Signature != "" {
		t.Fatal("query carried a signature")
	}
	if transport.lastPayload.RequestID == "" {
		t.Fatal("payload missing request id")
	}
}

func TestUpdateSignsWithSessionKey(t *testing.T) {
	transport := &recordingTransport{}
	a, err := New("http://127.0.0.1:4943", "canister", transport)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	id := newDelegatedIdentity(t)
	a.Rebind(id)

	env := RequestEnvelope{Method: "POST", URL: "/memories", Body: []byte(`{"content":"x"}`)}
	if _, err := a.Update(context.Background(), env); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	payload := transport.lastPayload
	if transport.lastKind != CallUpdate {
		t.Fatalf("kind = %v, want call", transport.lastKind)
	}
	if payload.Sender != id.Principal() {
		t.Fatalf("sender = %q, want %q", payload.Sender, id.Principal())
	}
	if payload.Credential != id.Credential() {
		t.Fatal("payload does not carry the delegation credential")
	}
	if payload.Signature == "" {
		t.Fatal("update missing signature")
	}

	sig, err := DecodeSignature(payload.Signature)
	if err != nil {
		t.Fatalf("DecodeSignature failed: %v", err)
	}
	message := signingMessage(payload.RequestID, env)
	if !verifySignature(id, message, sig) {
		t.Fatal("signature does not verify over the signing message")
	}
}

// verifySignature checks sig against the identity's session key by
// re-signing; ed25519 signatures are deterministic.
func verifySignature(id *identity.Delegated, message, sig []byte) bool {
	expected, err := id.Sign(message)
	if err != nil {
		return false
	}
	if len(expected) != len(sig) {
		return false
	}
	for i := range expected {
		if expected[i] != sig[i] {
			return false
		}
	}
	return true
}

func TestUpdateAsAnonymousIsUnsigned(t *testing.T) {
	transport := &recordingTransport{}
	a, err := New("http://127.0.0.1:4943", "canister", transport)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	env := RequestEnvelope{Method: "POST", URL: "/memories"}
	if _, err := a.Update(context.Background(), env); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if transport.lastPayload.Signature != "" {
		t.Fatal("anonymous update carried a signature")
	}
	if transport.lastPayload.Credential != "" {
		t.Fatal("anonymous update carried a credential")
	}
}

func TestCallKindWireNames(t *testing.T) {
	if CallQuery.String() != "query" {
		t.Fatalf("CallQuery = %q", CallQuery.String())
	}
	if CallUpdate.String() != "call" {
		t.Fatalf("CallUpdate = %q", CallUpdate.String())
	}
}

func TestEnvelopeHeaderLookup(t *testing.T) {
	env := RequestEnvelope{Headers: []HeaderField{
		{"Content-Type", "application/json"},
		{"X-API-Key", "secret"},
	}}
	if v, ok := env.Header("X-API-Key"); !ok || v != "secret" {
		t.Fatalf("Header(X-API-Key) = (%q, %v)", v, ok)
	}
	if _, ok := env.Header("Authorization"); ok {
		t.Fatal("Header found an absent header")
	}
}
