package openmemory

import (
	"errors"
	"strings"
	"time"

	"github.com/openmemory/openmemory-go/identity"
)

// Network selects which backend deployment the client talks to.
type Network string

const (
	// NetworkProduction targets the public network.
	NetworkProduction Network = "production"
	// NetworkLocal targets a local development replica; its root signing
	// key is fetched and trusted at Initialize.
	NetworkLocal Network = "local"
)

// AuthScheme selects the authentication header attached to mutating calls.
type AuthScheme string

const (
	// AuthSchemeAPIKey sends X-API-Key with a static key. This is the
	// reference behavior; the backend accepts it in place of a delegation
	// signature.
	AuthSchemeAPIKey AuthScheme = "api-key"
	// AuthSchemeDelegation sends the delegation credential as a bearer
	// token.
	AuthSchemeDelegation AuthScheme = "delegation"
)

const (
	defaultCanisterID      = "77fv5-oiaaa-aaaal-qsoea-cai"
	defaultProductionHost  = "https://ic0.app"
	defaultLocalHost       = "http://127.0.0.1:4943"
	defaultProviderURL     = "https://identity.ic0.app/authorize"
	defaultLocalProvider   = "http://127.0.0.1:4943/authorize"
	defaultAPIKeyHeader    = "X-API-Key"
	defaultStoragePrefix   = "om"
	defaultAuditBufferSize = 256
)

/*
====================================
CONFIG SECTIONS
====================================
*/

// AuthConfig controls the bridge's authentication header policy.
type AuthConfig struct {
	Scheme AuthScheme
	// APIKey is required for AuthSchemeAPIKey.
	APIKey string
	// HeaderName overrides the API-key header name.
	HeaderName string
}

// SessionConfig controls identity lifetime and flag persistence.
type SessionConfig struct {
	// MaxCredentialTTL bounds the delegation lifetime requested at login.
	// Zero means identity.MaxCredentialLifetime (30 days).
	MaxCredentialTTL time.Duration
	// StoragePrefix namespaces the persisted flag key in shared stores.
	StoragePrefix string
}

// CallConfig controls per-dispatch behavior.
type CallConfig struct {
	// Timeout bounds one backend call. Zero disables the bound, matching
	// the reference behavior.
	Timeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the lock-free counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Config is the complete client configuration. Instances are cloned at
// Build and treated as immutable afterwards.
type Config struct {
	// Network selects production or local hosts; Host and ProviderURL
	// override the per-network defaults when non-empty.
	Network     Network
	CanisterID  string
	Host        string
	ProviderURL string

	Auth    AuthConfig
	Session SessionConfig
	Call    CallConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// DefaultConfig returns the production defaults: API-key auth, 30-day
// credential lifetime, no call timeout, audit and metrics enabled.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Network:    NetworkProduction,
		CanisterID: defaultCanisterID,
		Auth: AuthConfig{
			Scheme:     AuthSchemeAPIKey,
			HeaderName: defaultAPIKeyHeader,
		},
		Session: SessionConfig{
			MaxCredentialTTL: identity.MaxCredentialLifetime,
			StoragePrefix:    defaultStoragePrefix,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: defaultAuditBufferSize,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the clone exists so Build-time
	// copies stay correct if reference fields are ever added.
	return cfg
}

// ResolvedHost returns the backend host for the configured network.
func (c Config) ResolvedHost() string {
	if c.Host != "" {
		return strings.TrimRight(c.Host, "/")
	}
	if c.Network == NetworkLocal {
		return defaultLocalHost
	}
	return defaultProductionHost
}

// ResolvedProviderURL returns the identity-provider endpoint for the
// configured network.
func (c Config) ResolvedProviderURL() string {
	if c.ProviderURL != "" {
		return c.ProviderURL
	}
	if c.Network == NetworkLocal {
		return defaultLocalProvider
	}
	return defaultProviderURL
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	switch c.Network {
	case NetworkProduction, NetworkLocal:
	default:
		return errors.New("Network must be production or local")
	}

	if strings.TrimSpace(c.CanisterID) == "" {
		return errors.New("CanisterID required")
	}

	switch c.Auth.Scheme {
	case AuthSchemeAPIKey:
		if strings.TrimSpace(c.Auth.APIKey) == "" {
			return errors.New("Auth.APIKey required for api-key scheme")
		}
	case AuthSchemeDelegation:
	default:
		return errors.New("Auth.Scheme must be api-key or delegation")
	}

	if c.Session.MaxCredentialTTL < 0 {
		return errors.New("Session.MaxCredentialTTL must not be negative")
	}
	if c.Session.MaxCredentialTTL > identity.MaxCredentialLifetime {
		return errors.New("Session.MaxCredentialTTL exceeds the credential lifetime cap")
	}
	if c.Call.Timeout < 0 {
		return errors.New("Call.Timeout must not be negative")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("Audit.BufferSize must not be negative")
	}
	return nil
}
