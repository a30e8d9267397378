// Package observability provides trace-correlated structured logging,
// OpenTelemetry tracing setup and the attribute vocabulary shared by
// the wayline engine's spans.
package observability
