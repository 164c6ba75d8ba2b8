package kcore

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/kcore/internal/expand"
	"github.com/viant/kcore/service/ptable"
	"github.com/viant/kcore/service/scheduler"
	"github.com/viant/kcore/service/vm/memory"
	"gopkg.in/yaml.v3"
)

// Rank ratio validation modes
const (
	ValidationStrict     = "strict"
	ValidationPermissive = "permissive"
)

// Config is a serialisable representation of the kernel configuration. The
// zero value of a nested section is replaced by its package default.
type Config struct {
	Table     ptable.Config    `json:"table" yaml:"table"`
	Scheduler scheduler.Config `json:"scheduler" yaml:"scheduler"`
	Memory    memory.Config    `json:"memory" yaml:"memory"`
	// Validation is either strict (negative rank ratios are rejected) or permissive (applied with a warning)
	Validation string        `json:"validation" yaml:"validation"`
	Tracing    TracingConfig `json:"tracing" yaml:"tracing"`
	Events     EventsConfig  `json:"events" yaml:"events"`
}

// TracingConfig controls system call spans
type TracingConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Output is a trace file, stdout when empty
	Output string `json:"output" yaml:"output"`
}

// EventsConfig controls the lifecycle event bus
type EventsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Buffer  int  `json:"buffer" yaml:"buffer"`
	// MaxRetries bounds redeliveries of an event a listener failed on
	MaxRetries int           `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay time.Duration `json:"retryDelay" yaml:"retryDelay"`
}

// DefaultConfig returns a two CPU kernel with 64 process slots
func DefaultConfig() *Config {
	return &Config{
		Table:      ptable.DefaultConfig(),
		Scheduler:  scheduler.DefaultConfig(),
		Memory:     memory.DefaultConfig(),
		Validation: ValidationStrict,
		Events:     EventsConfig{Enabled: true, Buffer: 1024, MaxRetries: 3, RetryDelay: 10 * time.Millisecond},
	}
}

// Validate returns an error describing the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Table.Validate(); err != nil {
		return fmt.Errorf("table: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if c.Memory.Frames < 0 {
		return fmt.Errorf("memory.frames must be >= 0")
	}
	switch c.Validation {
	case "", ValidationStrict, ValidationPermissive:
	default:
		return fmt.Errorf("unsupported validation mode: %v", c.Validation)
	}
	if c.Events.Buffer < 0 {
		return fmt.Errorf("events.buffer must be >= 0")
	}
	if c.Events.MaxRetries < 0 || c.Events.RetryDelay < 0 {
		return fmt.Errorf("events.maxRetries and events.retryDelay must be >= 0")
	}
	return nil
}

// Permissive reports whether negative rank ratios are accepted
func (c *Config) Permissive() bool {
	return c.Validation == ValidationPermissive
}

// LoadConfig reads a YAML configuration from URL on top of DefaultConfig.
// ${env.KEY} expressions are expanded before decoding.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal([]byte(expand.Env(string(data))), ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}
