// Package observability provides the zap logger factory and the Prometheus
// collectors for the bridge.
package observability
