package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openmemory/openmemory-go/agent"
	"github.com/openmemory/openmemory-go/identity"
)

// ErrNotInitialized is returned when a session operation runs before
// [Manager.Initialize].
var ErrNotInitialized = errors.New("session manager not initialized")

// State is the tri-valued session condition.
type State uint8

const (
	// StateUninitialized means Initialize has not completed.
	StateUninitialized State = iota
	// StateUnauthenticated means no valid delegation is held.
	StateUnauthenticated
	// StateAuthenticated means a live delegation is bound to the agent.
	StateAuthenticated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "uninitialized"
	}
}

// Manager owns identity acquisition, the persisted session state, and the
// agent binding lifecycle. Construct one per client; safe for concurrent use.
type Manager struct {
	binding  *agent.Agent
	provider identity.Provider
	store    StateStore

	maxTTL       time.Duration
	localNetwork bool

	mu          sync.Mutex
	initialized bool
	current     *identity.Delegated
}

// NewManager wires a manager to its collaborators. maxTTL bounds the
// credential lifetime requested at login; zero selects
// [identity.MaxCredentialLifetime].
func NewManager(binding *agent.Agent, provider identity.Provider, store StateStore, maxTTL time.Duration, localNetwork bool) (*Manager, error) {
	if binding == nil {
		return nil, errors.New("agent binding required")
	}
	if provider == nil {
		return nil, errors.New("identity provider required")
	}
	if store == nil {
		return nil, errors.New("state store required")
	}
	if maxTTL <= 0 || maxTTL > identity.MaxCredentialLifetime {
		maxTTL = identity.MaxCredentialLifetime
	}
	return &Manager{
		binding:      binding,
		provider:     provider,
		store:        store,
		maxTTL:       maxTTL,
		localNetwork: localNetwork,
	}, nil
}

// Initialize prepares the manager for use. It is idempotent; only the
// first call has effect. Against a local development network it fetches
// and pins the backend's root signing key before any call is made. A
// credential persisted by an earlier process is reloaded here so Restore
// can confirm the session without a new login; an expired or unreadable
// record is dropped and startup proceeds anonymous.
// Store and root-key failures are fatal to startup and returned.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}
	if m.localNetwork {
		if err := m.binding.FetchRootKey(ctx); err != nil {
			return err
		}
	}
	m.binding.Rebind(identity.Anonymous{})

	record, err := m.store.LoadCredential(ctx)
	if err != nil {
		return err
	}
	if len(record) > 0 {
		if id, derr := identity.DecodeDelegated(record); derr != nil {
			m.clearPersisted(ctx)
		} else {
			m.current = id
			m.binding.Rebind(id)
		}
	}

	m.initialized = true
	return nil
}

// Login acquires a fresh delegated identity. On success the agent binding
// is rebuilt with the new identity and the credential record plus flag are
// persisted. On any failure both are cleared and (false, cause) is
// returned; callers are
// expected to treat the boolean as the outcome and the cause as
// diagnostic, except for [ErrNotInitialized] which is a usage error.
func (m *Manager) Login(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return false, ErrNotInitialized
	}

	key, err := identity.NewSessionKey()
	if err != nil {
		m.clearPersisted(ctx)
		return false, fmt.Errorf("generate session key: %w", err)
	}

	delegation, err := m.provider.Authorize(ctx, key.Public(), m.maxTTL)
	if err != nil {
		m.clearPersisted(ctx)
		return false, err
	}

	id, err := identity.NewDelegated(key, delegation)
	if err != nil {
		m.clearPersisted(ctx)
		return false, err
	}

	// Swap and rebind together so no call can see the new identity with a
	// stale binding or the other way around.
	m.current = id
	m.binding.Rebind(id)

	// Persist the credential record before the flag; a flag without a
	// record reads as a stale session, never the other way around.
	record, err := identity.EncodeDelegated(id)
	if err != nil {
		return true, err
	}
	if err := m.store.SaveCredential(ctx, record); err != nil {
		return true, err
	}
	if err := m.store.Save(ctx, FlagTrue); err != nil {
		return true, err
	}
	return true, nil
}

// Logout drops the delegation, rebinds the agent to the anonymous
// identity, and clears the persisted credential and flag.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}

	m.current = nil
	m.binding.Rebind(identity.Anonymous{})
	if err := m.store.ClearCredential(ctx); err != nil {
		return err
	}
	return m.store.Clear(ctx)
}

// IsAuthenticated is the single source of truth for session state. It
// queries the held delegation directly, detects expiry, defensively
// rebinds the agent when authenticated, and resynchronizes the persisted
// flag either way. Flag-store failures do not change the returned boolean.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isAuthenticatedLocked(ctx)
}

func (m *Manager) isAuthenticatedLocked(ctx context.Context) bool {
	if !m.initialized || m.current == nil {
		m.clearPersisted(ctx)
		return false
	}
	if m.current.Expired(time.Now()) {
		m.current = nil
		m.binding.Rebind(identity.Anonymous{})
		m.clearPersisted(ctx)
		return false
	}

	m.binding.Rebind(m.current)
	_ = m.store.Save(ctx, FlagTrue)
	return true
}

// Restore confirms a previously-persisted session at startup. It reads
// the flag; when set it defers to IsAuthenticated for ground truth against
// the credential reloaded during Initialize, clearing the persisted state
// if the credential expired or is absent. It never performs an interactive
// login, and it is idempotent.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return false, ErrNotInitialized
	}

	flag, err := m.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if flag != FlagTrue {
		return false, nil
	}
	return m.isAuthenticatedLocked(ctx), nil
}

// Principal returns the authenticated principal, "" when unauthenticated.
func (m *Manager) Principal() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.Principal()
}

// Identity returns the current identity, anonymous when unauthenticated.
func (m *Manager) Identity() identity.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return identity.Anonymous{}
	}
	return m.current
}

// State reports the tri-valued session condition without side effects.
// A held-but-expired delegation still reports authenticated until the next
// IsAuthenticated call detects the expiry.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case !m.initialized:
		return StateUninitialized
	case m.current == nil:
		return StateUnauthenticated
	default:
		return StateAuthenticated
	}
}

func (m *Manager) clearPersisted(ctx context.Context) {
	_ = m.store.ClearCredential(ctx)
	_ = m.store.Clear(ctx)
}
