package openmemory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openmemory/openmemory-go/agent"
)

func TestDispatchRejectsMutationWithoutSession(t *testing.T) {
	client, transport, done := buildTestClient(t, testConfig())
	defer done()

	_, err := client.dispatch(context.Background(), "POST", "/memories", []byte("{}"))
	if !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("dispatch = %v, want ErrAuthenticationRequired", err)
	}
	// The refusal happens before the transport; zero backend calls.
	if got := transport.callCount(); got != 0 {
		t.Fatalf("transport called %d times, want 0", got)
	}

	snapshot := client.MetricsSnapshot()
	if snapshot.Counters[MetricDispatchRejected] != 1 {
		t.Fatalf("rejection counter = %d, want 1", snapshot.Counters[MetricDispatchRejected])
	}
}

func TestDispatchGETNeverCarriesAuthHeader(t *testing.T) {
	client, transport, done := buildTestClient(t, testConfig())
	defer done()
	loginTestClient(t, client)

	if _, err := client.dispatch(context.Background(), "GET", "/health", nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	kind, payload := transport.last()
	if kind != agent.CallQuery {
		t.Fatalf("GET dispatched as %v, want query", kind)
	}
	if _, ok := payload.Envelope.Header("X-API-Key"); ok {
		t.Fatal("GET carried the API key header")
	}
	if _, ok := payload.Envelope.Header("Authorization"); ok {
		t.Fatal("GET carried an Authorization header")
	}
}

func TestDispatchMutationCarriesAPIKey(t *testing.T) {
	client, transport, done := buildTestClient(t, testConfig())
	defer done()
	loginTestClient(t, client)

	if _, err := client.dispatch(context.Background(), "POST", "/memories", []byte("{}")); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	kind, payload := transport.last()
	if kind != agent.CallUpdate {
		t.Fatalf("POST dispatched as %v, want update", kind)
	}
	key, ok := payload.Envelope.Header("X-API-Key")
	if !ok || key != "test-key" {
		t.Fatalf("API key header = (%q, %v), want (test-key, true)", key, ok)
	}
	if ct, ok := payload.Envelope.Header("Content-Type"); !ok || ct != "application/json" {
		t.Fatalf("Content-Type = (%q, %v)", ct, ok)
	}
}

func TestDispatchDelegationSchemeUsesBearer(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Scheme = AuthSchemeDelegation
	cfg.Auth.APIKey = ""
	client, transport, done := buildTestClient(t, cfg)
	defer done()
	loginTestClient(t, client)

	if _, err := client.dispatch(context.Background(), "POST", "/memories", []byte("{}")); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	_, payload := transport.last()
	auth, ok := payload.Envelope.Header("Authorization")
	if !ok || !strings.HasPrefix(auth, "Bearer ") {
		t.Fatalf("Authorization = (%q, %v), want Bearer credential", auth, ok)
	}
	if strings.TrimPrefix(auth, "Bearer ") != client.Identity().Credential() {
		t.Fatal("bearer token does not match the delegation credential")
	}
}

func TestDispatchNormalizesMethodAndURL(t *testing.T) {
	client, transport, done := buildTestClient(t, testConfig())
	defer done()

	if _, err := client.dispatch(context.Background(), " get ", "health", nil); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	_, payload := transport.last()
	if payload.Envelope.Method != "GET" {
		t.Fatalf("method = %q, want GET", payload.Envelope.Method)
	}
	if payload.Envelope.URL != "/health" {
		t.Fatalf("url = %q, want /health", payload.Envelope.URL)
	}
}

func TestDispatchStatusErrorCarriesCodeAndBody(t *testing.T) {
	client, transport, done := buildTestClient(t, testConfig())
	defer done()
	transport.respondWith(500, "index corrupted")

	_, err := client.dispatch(context.Background(), "GET", "/health", nil)
	if err == nil {
		t.Fatal("dispatch succeeded on a 500")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error %T is not *StatusError", err)
	}
	if statusErr.Code != 500 {
		t.Fatalf("code = %d, want 500", statusErr.Code)
	}
	if !strings.Contains(statusErr.Error(), "500") || !strings.Contains(statusErr.Error(), "index corrupted") {
		t.Fatalf("message %q missing code or body", statusErr.Error())
	}
	if !errors.Is(err, ErrBackendRejected) {
		t.Fatal("status error does not match ErrBackendRejected")
	}
	if errors.Is(err, ErrMalformedResponse) {
		t.Fatal("status error matched ErrMalformedResponse")
	}
}

func TestDispatchDecodeErrorIsDistinctKind(t *testing.T) {
	client, transport, done := buildTestClient(t, testConfig())
	defer done()
	transport.respondWith(200, "<html>not json</html>")

	_, err := client.dispatch(context.Background(), "GET", "/health", nil)
	if err == nil {
		t.Fatal("dispatch succeeded on an unparsable 200")
	}

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error %T is not *DecodeError", err)
	}
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatal("decode error does not match ErrMalformedResponse")
	}
	if errors.Is(err, ErrBackendRejected) {
		t.Fatal("decode error matched ErrBackendRejected")
	}

	snapshot := client.MetricsSnapshot()
	if snapshot.Counters[MetricDecodeFailure] != 1 {
		t.Fatalf("decode failure counter = %d, want 1", snapshot.Counters[MetricDecodeFailure])
	}
}

func TestDispatchChecksSessionPerCall(t *testing.T) {
	client, transport, done := buildTestClient(t, testConfig())
	defer done()
	ctx := context.Background()
	loginTestClient(t, client)

	if _, err := client.dispatch(ctx, "POST", "/memories", []byte("{}")); err != nil {
		t.Fatalf("dispatch while authenticated failed: %v", err)
	}
	callsAfterFirst := transport.callCount()

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// The session check is per dispatch, never cached from the last call.
	if _, err := client.dispatch(ctx, "POST", "/memories", []byte("{}")); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("dispatch after logout = %v, want ErrAuthenticationRequired", err)
	}
	if got := transport.callCount(); got != callsAfterFirst {
		t.Fatalf("transport called %d times after logout, want %d", got, callsAfterFirst)
	}
}

func TestDispatchCountsCallKinds(t *testing.T) {
	client, _, done := buildTestClient(t, testConfig())
	defer done()
	ctx := context.Background()
	loginTestClient(t, client)

	if _, err := client.dispatch(ctx, "GET", "/health", nil); err != nil {
		t.Fatalf("query dispatch failed: %v", err)
	}
	if _, err := client.dispatch(ctx, "POST", "/memories", []byte("{}")); err != nil {
		t.Fatalf("update dispatch failed: %v", err)
	}

	snapshot := client.MetricsSnapshot()
	if snapshot.Counters[MetricQueryCall] != 1 {
		t.Fatalf("query counter = %d, want 1", snapshot.Counters[MetricQueryCall])
	}
	if snapshot.Counters[MetricUpdateCall] != 1 {
		t.Fatalf("update counter = %d, want 1", snapshot.Counters[MetricUpdateCall])
	}
	if len(snapshot.Histograms[MetricDispatchLatency]) == 0 {
		t.Fatal("latency histogram empty with histograms enabled")
	}
}

func TestDispatchBeforeInitialize(t *testing.T) {
	client, err := New().WithConfig(testConfig()).WithTransport(&fakeTransport{}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer client.Close()

	if _, err := client.dispatch(context.Background(), "GET", "/health", nil); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("dispatch before Initialize = %v, want ErrClientNotReady", err)
	}
}
