package internaldefs

import (
	openmemory "github.com/openmemory/openmemory-go"
)

// CounterDef binds one counter ID to its exported name and help text.
type CounterDef struct {
	ID   openmemory.MetricID
	Name string
	Help string
}

// HistogramDef binds one histogram ID to its exported name and help text.
type HistogramDef struct {
	ID   openmemory.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a fixed order.
var CounterDefs = []CounterDef{
	{ID: openmemory.MetricLoginSuccess, Name: "openmemory_login_success_total", Help: "Successful login flows."},
	{ID: openmemory.MetricLoginFailure, Name: "openmemory_login_failure_total", Help: "Declined or failed login flows."},
	{ID: openmemory.MetricLogout, Name: "openmemory_logout_total", Help: "Logout operations."},
	{ID: openmemory.MetricSessionRestored, Name: "openmemory_session_restored_total", Help: "Restores that confirmed a live session."},
	{ID: openmemory.MetricSessionExpired, Name: "openmemory_session_expired_total", Help: "Detected credential expiries."},
	{ID: openmemory.MetricQueryCall, Name: "openmemory_query_call_total", Help: "Dispatches over the read path."},
	{ID: openmemory.MetricUpdateCall, Name: "openmemory_update_call_total", Help: "Dispatches over the write path."},
	{ID: openmemory.MetricDispatchRejected, Name: "openmemory_dispatch_rejected_total", Help: "Mutating dispatches refused for lack of a confirmed session."},
	{ID: openmemory.MetricDispatchFailure, Name: "openmemory_dispatch_failure_total", Help: "Transport and backend-status dispatch failures."},
	{ID: openmemory.MetricDecodeFailure, Name: "openmemory_decode_failure_total", Help: "Responses with undecodable or unrecognized bodies."},
}

// HistogramDefs lists every exported histogram in a fixed order.
var HistogramDefs = []HistogramDef{
	{ID: openmemory.MetricDispatchLatency, Name: "openmemory_dispatch_latency_ms", Help: "Dispatch latency histogram."},
}

// HistogramBounds are the bucket upper bounds in milliseconds, rendered
// the way the Prometheus text format expects them.
var HistogramBounds = []string{
	"1",
	"5",
	"10",
	"50",
	"100",
	"500",
	"2000",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with characters legal in
// OTel instrument names.
var HistogramBoundSuffix = []string{
	"1",
	"5",
	"10",
	"50",
	"100",
	"500",
	"2000",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// required by both exposition formats.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
