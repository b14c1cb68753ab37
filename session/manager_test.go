package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openmemory/openmemory-go/agent"
	"github.com/openmemory/openmemory-go/identity"
)

// stubTransport records calls and serves a static root key.
type stubTransport struct {
	calls        atomic.Int64
	rootKeyCalls atomic.Int64
}

func (s *stubTransport) Call(context.Context, agent.CallKind, agent.Target, agent.CallPayload) (agent.ResponseEnvelope, error) {
	s.calls.Add(1)
	return agent.ResponseEnvelope{StatusCode: 200, Body: []byte("{}")}, nil
}

func (s *stubTransport) FetchRootKey(context.Context, string) ([]byte, error) {
	s.rootKeyCalls.Add(1)
	return []byte{0x01, 0x02}, nil
}

// issuingProvider self-issues delegations with a controllable lifetime and
// failure mode.
type issuingProvider struct {
	key     ed25519.PrivateKey
	ttl     time.Duration
	failErr error
}

func newIssuingProvider(t *testing.T, ttl time.Duration) *issuingProvider {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate issuer key: %v", err)
	}
	return &issuingProvider{key: key, ttl: ttl}
}

func (p *issuingProvider) Authorize(_ context.Context, sessionPub ed25519.PublicKey, ttl time.Duration) (*identity.Delegation, error) {
	if p.failErr != nil {
		return nil, p.failErr
	}
	if p.ttl > 0 {
		ttl = p.ttl
	}
	return identity.IssueDelegation(p.key, "test", sessionPub, ttl)
}

func newTestManager(t *testing.T, provider identity.Provider) (*Manager, *agent.Agent, *MemStore, *stubTransport) {
	t.Helper()
	manager, binding, transport := newManagerOnStore(t, provider, NewMemStore())
	return manager, binding, manager.store.(*MemStore), transport
}

// newManagerOnStore builds a manager over an existing store, simulating a
// fresh process attaching to durable state.
func newManagerOnStore(t *testing.T, provider identity.Provider, store StateStore) (*Manager, *agent.Agent, *stubTransport) {
	t.Helper()

	transport := &stubTransport{}
	binding, err := agent.New("http://127.0.0.1:4943", "test-canister", transport)
	if err != nil {
		t.Fatalf("agent.New failed: %v", err)
	}
	manager, err := NewManager(binding, provider, store, 0, true)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return manager, binding, transport
}

func TestInitializeIdempotentAndFetchesRootKey(t *testing.T) {
	manager, binding, _, transport := newTestManager(t, newIssuingProvider(t, 0))
	ctx := context.Background()

	if manager.State() != StateUninitialized {
		t.Fatalf("state before Initialize = %v", manager.State())
	}
	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
	if got := transport.rootKeyCalls.Load(); got != 1 {
		t.Fatalf("root key fetched %d times, want 1", got)
	}
	if binding.RootKey() == nil {
		t.Fatal("root key not pinned on the binding")
	}
	if manager.State() != StateUnauthenticated {
		t.Fatalf("state after Initialize = %v", manager.State())
	}
	if !binding.Identity().Anonymous() {
		t.Fatal("binding not anonymous after Initialize")
	}
}

func TestLoginBeforeInitialize(t *testing.T) {
	manager, _, _, _ := newTestManager(t, newIssuingProvider(t, 0))

	if _, err := manager.Login(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Login before Initialize = %v, want ErrNotInitialized", err)
	}
}

func TestLoginRebindsAgentAndSetsFlag(t *testing.T) {
	manager, binding, store, _ := newTestManager(t, newIssuingProvider(t, 0))
	ctx := context.Background()
	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	ok, err := manager.Login(ctx)
	if err != nil || !ok {
		t.Fatalf("Login = (%v, %v), want (true, nil)", ok, err)
	}

	if binding.Identity().Anonymous() {
		t.Fatal("binding still anonymous after login")
	}
	if got := binding.Target().Sender; got != manager.Principal() {
		t.Fatalf("target sender %q does not match principal %q", got, manager.Principal())
	}
	if manager.State() != StateAuthenticated {
		t.Fatalf("state after login = %v", manager.State())
	}

	flag, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if flag != FlagTrue {
		t.Fatalf("persisted flag = %q, want %q", flag, FlagTrue)
	}
}

func TestLoginFailureClearsFlag(t *testing.T) {
	provider := newIssuingProvider(t, 0)
	manager, binding, store, _ := newTestManager(t, provider)
	ctx := context.Background()
	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Seed a stale flag, then fail the login; the flag must be cleared.
	if err := store.Save(ctx, FlagTrue); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	provider.failErr = identity.ErrAuthorizationDeclined

	ok, err := manager.Login(ctx)
	if ok {
		t.Fatal("Login reported success on provider failure")
	}
	if !errors.Is(err, identity.ErrAuthorizationDeclined) {
		t.Fatalf("Login cause = %v, want ErrAuthorizationDeclined", err)
	}
	flag, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if flag != "" {
		t.Fatalf("flag after failed login = %q, want \"\"", flag)
	}
	if !binding.Identity().Anonymous() {
		t.Fatal("binding not anonymous after failed login")
	}
}

func TestLogoutRestoresAnonymous(t *testing.T) {
	manager, binding, store, _ := newTestManager(t, newIssuingProvider(t, 0))
	ctx := context.Background()
	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if ok, err := manager.Login(ctx); err != nil || !ok {
		t.Fatalf("Login = (%v, %v)", ok, err)
	}

	if err := manager.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if !binding.Identity().Anonymous() {
		t.Fatal("binding not anonymous after logout")
	}
	if manager.Principal() != "" {
		t.Fatalf("principal after logout = %q", manager.Principal())
	}
	flag, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if flag != "" {
		t.Fatalf("flag after logout = %q, want \"\"", flag)
	}
}

func TestIsAuthenticatedDetectsExpiry(t *testing.T) {
	manager, binding, store, _ := newTestManager(t, newIssuingProvider(t, time.Nanosecond))
	ctx := context.Background()
	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if ok, err := manager.Login(ctx); err != nil || !ok {
		t.Fatalf("Login = (%v, %v)", ok, err)
	}

	time.Sleep(time.Millisecond)

	if manager.IsAuthenticated(ctx) {
		t.Fatal("expired delegation reported authenticated")
	}
	if !binding.Identity().Anonymous() {
		t.Fatal("binding not anonymous after detected expiry")
	}
	flag, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if flag != "" {
		t.Fatalf("flag after expiry = %q, want \"\"", flag)
	}
}

func TestRestoreSemantics(t *testing.T) {
	manager, _, store, _ := newTestManager(t, newIssuingProvider(t, 0))
	ctx := context.Background()
	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// No flag: restore reports false without a login attempt.
	ok, err := manager.Restore(ctx)
	if err != nil || ok {
		t.Fatalf("Restore on empty store = (%v, %v), want (false, nil)", ok, err)
	}

	// A flag with no delegation is stale: restore clears it.
	if err := store.Save(ctx, FlagTrue); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ok, err = manager.Restore(ctx)
	if err != nil || ok {
		t.Fatalf("Restore with stale flag = (%v, %v), want (false, nil)", ok, err)
	}
	flag, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if flag != "" {
		t.Fatalf("stale flag not cleared: %q", flag)
	}

	// After a real login, restore confirms and is idempotent.
	if ok, err := manager.Login(ctx); err != nil || !ok {
		t.Fatalf("Login = (%v, %v)", ok, err)
	}
	for i := 0; i < 3; i++ {
		ok, err = manager.Restore(ctx)
		if err != nil || !ok {
			t.Fatalf("Restore #%d = (%v, %v), want (true, nil)", i, ok, err)
		}
	}
}

func TestRestoreResumesSessionAcrossManagers(t *testing.T) {
	provider := newIssuingProvider(t, 0)
	store := NewMemStore()
	ctx := context.Background()

	first, _, _ := newManagerOnStore(t, provider, store)
	if err := first.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if ok, err := first.Login(ctx); err != nil || !ok {
		t.Fatalf("Login = (%v, %v)", ok, err)
	}
	principal := first.Principal()

	// A second manager on the same store stands in for a new process. It
	// must resume the session from durable state without a provider round
	// trip.
	provider.failErr = identity.ErrAuthorizationDeclined
	second, binding, _ := newManagerOnStore(t, provider, store)
	if err := second.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
	ok, err := second.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !ok {
		t.Fatal("Restore did not resume the persisted session")
	}
	if got := second.Principal(); got != principal {
		t.Fatalf("restored principal %q, want %q", got, principal)
	}
	if binding.Identity().Anonymous() {
		t.Fatal("binding anonymous after restore")
	}
	if got := binding.Target().Sender; got != principal {
		t.Fatalf("target sender %q, want %q", got, principal)
	}
}

func TestInitializeDropsExpiredCredential(t *testing.T) {
	provider := newIssuingProvider(t, time.Nanosecond)
	store := NewMemStore()
	ctx := context.Background()

	first, _, _ := newManagerOnStore(t, provider, store)
	if err := first.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if ok, err := first.Login(ctx); err != nil || !ok {
		t.Fatalf("Login = (%v, %v)", ok, err)
	}

	time.Sleep(time.Millisecond)

	second, binding, _ := newManagerOnStore(t, provider, store)
	if err := second.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
	if !binding.Identity().Anonymous() {
		t.Fatal("binding not anonymous after expired credential")
	}
	ok, err := second.Restore(ctx)
	if err != nil || ok {
		t.Fatalf("Restore with expired credential = (%v, %v), want (false, nil)", ok, err)
	}
	flag, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if flag != "" {
		t.Fatalf("flag after expired restore = %q, want \"\"", flag)
	}
	record, err := store.LoadCredential(ctx)
	if err != nil {
		t.Fatalf("LoadCredential failed: %v", err)
	}
	if record != nil {
		t.Fatal("expired credential record not cleared")
	}
}

func TestPrincipalStableAcrossChecks(t *testing.T) {
	manager, _, _, _ := newTestManager(t, newIssuingProvider(t, 0))
	ctx := context.Background()
	if err := manager.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if ok, err := manager.Login(ctx); err != nil || !ok {
		t.Fatalf("Login = (%v, %v)", ok, err)
	}

	principal := manager.Principal()
	if principal == "" || principal == identity.AnonymousPrincipal {
		t.Fatalf("unexpected principal %q", principal)
	}
	for i := 0; i < 5; i++ {
		if !manager.IsAuthenticated(ctx) {
			t.Fatalf("IsAuthenticated #%d = false", i)
		}
		if got := manager.Principal(); got != principal {
			t.Fatalf("principal drifted: %q -> %q", principal, got)
		}
	}
}
