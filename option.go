package kcore

import (
	"io"

	"github.com/viant/kcore/service/ptable"
	"github.com/viant/kcore/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises a Service
type Option func(s *Service)

// WithConsole sets where process table dumps and diagnostics are written
func WithConsole(w io.Writer) Option {
	return func(s *Service) {
		s.console = newConsole(w)
	}
}

// WithHalt sets the function called on fatal kernel invariant violations
func WithHalt(halt ptable.HaltFunc) Option {
	return func(s *Service) {
		s.halt = halt
	}
}

// WithBootID overrides the generated boot identifier
func WithBootID(id string) Option {
	return func(s *Service) {
		s.bootID = id
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter.
// The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err == nil {
			s.tracing = true
		}
	}
}
