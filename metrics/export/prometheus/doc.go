// Package prometheus renders openmemory client metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts an [openmemory.Client] and exposes an
// [net/http.Handler] that renders all counters and histograms. Counter
// names are prefixed openmemory_*_total; the single histogram is
// openmemory_dispatch_latency_ms.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the
//     Handler.
//   - Mutate client state.
package prometheus
