// Package tracing wraps OpenTelemetry so orchestration steps, job phases and
// API requests can be traced without importing the SDK directly.
package tracing
