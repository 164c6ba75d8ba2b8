// Package tracing wraps OpenTelemetry so that system calls can be traced
// without the rest of the kernel importing the SDK directly.
package tracing
