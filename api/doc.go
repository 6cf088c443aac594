// Package api implements queuectl's control-plane HTTP surface: one
// handler per control operation, each a thin translation onto the
// exported methods of queuectl.Core.
//
// Routing is github.com/go-chi/chi/v5. Administrative routes (config,
// shutdown) are additionally wrapped in requireLoopback, which refuses
// any request whose remote address is not loopback. /metrics exposes
// Prometheus-format counters and gauges derived from Core.Status and
// the lifecycle transitions Core reports through the queuectl.Metrics
// hook.
package api
