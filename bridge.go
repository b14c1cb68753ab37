package openmemory

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/openmemory/openmemory-go/agent"
	"github.com/openmemory/openmemory-go/session"
)

// dispatch translates one HTTP-shaped call into exactly one backend call.
//
// The rules it must never bend:
//
//   - GET goes over the query path with no authentication header.
//   - Everything else goes over the update path and requires a confirmed
//     session, checked against ground truth immediately before use; when
//     the check fails the transport is never invoked.
//   - A non-200 status and an undecodable 200 body are distinct failure
//     kinds ([StatusError] vs [DecodeError]).
func (c *Client) dispatch(ctx context.Context, method, url string, body []byte) (json.RawMessage, error) {
	if c.session.State() == session.StateUninitialized {
		return nil, ErrClientNotReady
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}

	env := agent.RequestEnvelope{
		Method:  method,
		URL:     url,
		Headers: []agent.HeaderField{{"Content-Type", "application/json"}},
		Body:    body,
	}

	mutating := method != http.MethodGet
	if mutating {
		// Ground truth, queried at dispatch time. Never cached: a login or
		// logout may have landed since the previous call.
		if !c.IsAuthenticated(ctx) {
			c.metricInc(MetricDispatchRejected)
			c.emitAudit(ctx, auditEventDispatchRejected, false, ErrAuthenticationRequired, map[string]string{
				"method": method,
				"url":    url,
			})
			return nil, ErrAuthenticationRequired
		}
		env.Headers = append(env.Headers, c.authHeader())
	}

	if c.config.Call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Call.Timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		resp agent.ResponseEnvelope
		err  error
	)
	if mutating {
		c.metricInc(MetricUpdateCall)
		resp, err = c.binding.Update(ctx, env)
	} else {
		c.metricInc(MetricQueryCall)
		resp, err = c.binding.Query(ctx, env)
	}
	c.metricObserve(MetricDispatchLatency, time.Since(start))

	if err != nil {
		c.metricInc(MetricDispatchFailure)
		c.emitAudit(ctx, auditEventDispatchFailed, false, err, map[string]string{
			"method": method,
			"url":    url,
		})
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(resp.Body)}
		c.metricInc(MetricDispatchFailure)
		c.emitAudit(ctx, auditEventDispatchFailed, false, statusErr, map[string]string{
			"method": method,
			"url":    url,
		})
		return nil, statusErr
	}

	if !json.Valid(resp.Body) {
		decodeErr := &DecodeError{Op: method + " " + url, Cause: errInvalidJSON}
		c.metricInc(MetricDecodeFailure)
		c.emitAudit(ctx, auditEventDispatchFailed, false, decodeErr, map[string]string{
			"method": method,
			"url":    url,
		})
		return nil, decodeErr
	}
	return json.RawMessage(append([]byte(nil), resp.Body...)), nil
}

// authHeader builds the credential header for mutating calls. The scheme
// is configurable: the reference backend accepts a static API key in place
// of a delegation signature, but deployments verifying delegations can
// switch without touching call sites.
func (c *Client) authHeader() agent.HeaderField {
	switch c.config.Auth.Scheme {
	case AuthSchemeDelegation:
		return agent.HeaderField{"Authorization", "Bearer " + c.session.Identity().Credential()}
	default:
		name := c.config.Auth.HeaderName
		if name == "" {
			name = defaultAPIKeyHeader
		}
		return agent.HeaderField{name, c.config.Auth.APIKey}
	}
}
