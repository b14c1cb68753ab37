package openmemory

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/openmemory/openmemory-go/agent"
	"github.com/openmemory/openmemory-go/identity"
	"github.com/openmemory/openmemory-go/session"
)

// Builder assembles a [Client]. Construction is allocation-only; no I/O
// happens until [Client.Initialize]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	stateStore session.StateStore
	provider   identity.Provider
	transport  agent.Transport
	auditSink  AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the persisted session flag with Redis. Ignored when an
// explicit state store is also provided.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStateStore overrides the session state store. Without this (or
// WithRedis) session state lives in process memory and does not survive
// restarts.
func (b *Builder) WithStateStore(store session.StateStore) *Builder {
	b.stateStore = store
	return b
}

// WithIdentityProvider overrides the identity provider. The default is an
// [identity.HTTPProvider] against the configured provider URL.
func (b *Builder) WithIdentityProvider(p identity.Provider) *Builder {
	b.provider = p
	return b
}

// WithTransport overrides the backend transport, primarily for tests.
func (b *Builder) WithTransport(t agent.Transport) *Builder {
	b.transport = t
	return b
}

// WithAuditSink receives session and dispatch audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the counter set.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the dispatch latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the client. It performs no
// network I/O; call [Client.Initialize] before the first operation.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.stateStore
	if store == nil {
		if b.redis != nil {
			store = session.NewRedisStore(b.redis, cfg.Session.StoragePrefix)
		} else {
			store = session.NewMemStore()
		}
	}

	provider := b.provider
	if provider == nil {
		provider = &identity.HTTPProvider{URL: cfg.ResolvedProviderURL()}
	}

	transport := b.transport
	if transport == nil {
		transport = &agent.HTTPTransport{}
	}

	binding, err := agent.New(cfg.ResolvedHost(), cfg.CanisterID, transport)
	if err != nil {
		return nil, err
	}

	manager, err := session.NewManager(
		binding,
		provider,
		store,
		cfg.Session.MaxCredentialTTL,
		cfg.Network == NetworkLocal,
	)
	if err != nil {
		return nil, err
	}

	client := &Client{
		config:  cfg,
		binding: binding,
		session: manager,
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	b.built = true
	return client, nil
}
