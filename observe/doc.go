// Package observe provides telemetry for the gateway: OpenTelemetry
// tracing and metrics plus a structured JSON logger with automatic
// redaction of credential-bearing fields.
//
// An Observer bundles the configured providers. Request-scoped
// telemetry attaches RequestMeta (token ID, tool, provider) to spans,
// metric attributes, and log entries.
package observe
