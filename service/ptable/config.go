package ptable

import "fmt"

// Config represents process table configuration
type Config struct {
	// Capacity is the number of process slots
	Capacity int `json:"capacity" yaml:"capacity"`
	// AgingThreshold is the number of ticks a runnable process may wait before it is moved to round-robin
	AgingThreshold int64 `json:"agingThreshold" yaml:"agingThreshold"`
	// Permissive applies negative rank ratios with a warning instead of rejecting them
	Permissive bool `json:"permissive" yaml:"permissive"`
}

// DefaultConfig returns the default table configuration
func DefaultConfig() Config {
	return Config{
		Capacity:       64,
		AgingThreshold: 8000,
	}
}

// Validate checks configuration
func (c Config) Validate() error {
	if c.Capacity < 2 {
		return fmt.Errorf("invalid table capacity: %d", c.Capacity)
	}
	if c.AgingThreshold <= 0 {
		return fmt.Errorf("invalid aging threshold: %d", c.AgingThreshold)
	}
	return nil
}
