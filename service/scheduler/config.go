package scheduler

import (
	"fmt"
	"time"
)

// Config represents scheduler configuration
type Config struct {
	// CPUs is the number of dispatch loops
	CPUs int `json:"cpus" yaml:"cpus"`
	// TickInterval is the timer interrupt period
	TickInterval time.Duration `json:"tickInterval" yaml:"tickInterval"`
	// CycleQuantum is added to the executed cycle of a process on every dispatch
	CycleQuantum float64 `json:"cycleQuantum" yaml:"cycleQuantum"`
	// IdleDelay is how long a CPU backs off when no process is runnable
	IdleDelay time.Duration `json:"idleDelay" yaml:"idleDelay"`
	// Interactive lists process names always kept in round-robin
	Interactive []string `json:"interactive" yaml:"interactive"`
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		CPUs:         2,
		TickInterval: 10 * time.Millisecond,
		CycleQuantum: 0.1,
		IdleDelay:    500 * time.Microsecond,
		Interactive:  []string{"sh", "proc_info"},
	}
}

// Validate checks configuration
func (c Config) Validate() error {
	if c.CPUs <= 0 {
		return fmt.Errorf("invalid cpu count: %d", c.CPUs)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("invalid tick interval: %v", c.TickInterval)
	}
	if c.CycleQuantum < 0 {
		return fmt.Errorf("invalid cycle quantum: %v", c.CycleQuantum)
	}
	return nil
}
