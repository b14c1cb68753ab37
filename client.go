package openmemory

import (
	"context"
	"errors"
	"time"

	"github.com/openmemory/openmemory-go/agent"
	"github.com/openmemory/openmemory-go/identity"
	"github.com/openmemory/openmemory-go/session"
)

// Client is the typed facade over the request bridge and session manager.
// Build one through [Builder]; methods are safe for concurrent use, but no
// ordering is guaranteed between concurrently-issued calls.
type Client struct {
	config  Config
	binding *agent.Agent
	session *session.Manager
	audit   *auditDispatcher
	metrics *Metrics
}

// Initialize prepares the client: against a local network it fetches and
// pins the replica root key. Idempotent; failures are fatal to startup and
// must not be ignored.
func (c *Client) Initialize(ctx context.Context) error {
	if err := c.session.Initialize(ctx); err != nil {
		return err
	}
	c.emitAudit(ctx, auditEventInitialized, true, nil, nil)
	return nil
}

// Close flushes the audit queue. The client must not be used afterwards.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.audit.Close()
}

// Login runs the identity-provider flow with a bounded credential
// lifetime. The outcome is the boolean: declined or failed authorization
// is (false, nil), never an error. The error return is reserved for usage
// mistakes such as calling before Initialize.
func (c *Client) Login(ctx context.Context) (bool, error) {
	ok, cause := c.session.Login(ctx)
	if ok {
		c.metricInc(MetricLoginSuccess)
		c.emitAudit(ctx, auditEventLoginSuccess, true, nil, nil)
		return true, nil
	}
	if errors.Is(cause, session.ErrNotInitialized) {
		return false, ErrClientNotReady
	}

	c.metricInc(MetricLoginFailure)
	c.emitAudit(ctx, auditEventLoginFailure, false, cause, nil)
	return false, nil
}

// Logout clears the identity, rebinds the agent to anonymous, and clears
// the persisted flag.
func (c *Client) Logout(ctx context.Context) error {
	principal := c.session.Principal()
	if err := c.session.Logout(ctx); err != nil {
		if errors.Is(err, session.ErrNotInitialized) {
			return ErrClientNotReady
		}
		return err
	}
	c.metricInc(MetricLogout)
	c.emitAudit(ctx, auditEventLogout, true, nil, map[string]string{"principal": principal})
	return nil
}

// IsAuthenticated queries ground truth and resynchronizes the persisted
// flag. The persisted flag only accelerates UI decisions before this
// check completes; it is never consulted here.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	before := c.session.State()
	ok := c.session.IsAuthenticated(ctx)
	if !ok && before == session.StateAuthenticated {
		c.metricInc(MetricSessionExpired)
		c.emitAudit(ctx, auditEventSessionExpired, false, ErrSessionExpired, nil)
	}
	return ok
}

// Restore confirms a persisted session at startup without an interactive
// login. True means the session was restored silently; false means the
// caller should present a normal logged-out state.
func (c *Client) Restore(ctx context.Context) (bool, error) {
	ok, err := c.session.Restore(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNotInitialized) {
			return false, ErrClientNotReady
		}
		return false, err
	}
	if ok {
		c.metricInc(MetricSessionRestored)
		c.emitAudit(ctx, auditEventSessionRestored, true, nil, nil)
	}
	return ok, nil
}

// Principal returns the authenticated principal, "" when logged out.
func (c *Client) Principal() string {
	return c.session.Principal()
}

// Identity returns the active identity, anonymous when logged out.
func (c *Client) Identity() identity.Identity {
	return c.session.Identity()
}

// SessionState reports the tri-valued session condition.
func (c *Client) SessionState() session.State {
	return c.session.State()
}

// MetricsSnapshot copies the current counters for exporters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// AuditDropped reports events dropped under dispatcher backpressure.
func (c *Client) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}

func (c *Client) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Client) metricObserve(id MetricID, d time.Duration) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Observe(id, d)
}

func (c *Client) emitAudit(ctx context.Context, eventType string, success bool, cause error, metadata map[string]string) {
	if c == nil || c.audit == nil {
		return
	}

	if source := sourceFromContext(ctx); source != "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["source"] = source
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Principal: c.session.Principal(),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	c.audit.Emit(ctx, event)
}
