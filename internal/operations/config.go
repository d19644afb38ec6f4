package operations

import (
	"time"
)

// Defaults
const (
	DefaultConcurrency  = 4
	DefaultFetchTimeout = 30 * time.Minute
	DefaultStepTimeout  = 10 * time.Minute
)

// Config tunes run execution.
type Config struct {
	// Concurrency bounds the number of bulletins fetched at once.
	Concurrency int `json:"concurrency"`

	// StepTimeouts bounds each step by ID; missing steps use
	// DefaultStepTimeout.
	StepTimeouts map[string]time.Duration `json:"step_timeouts"`
}

// NewConfig returns the default run configuration
func NewConfig() *Config {
	return &Config{
		Concurrency: DefaultConcurrency,
		StepTimeouts: map[string]time.Duration{
			StepIDFetch: DefaultFetchTimeout,
		},
	}
}

// GetStepTimeout returns the timeout for a specific Step
func (c *Config) GetStepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok && timeout > 0 {
		return timeout
	}
	return DefaultStepTimeout
}

// SetStepTimeout sets the timeout for a specific Step
func (c *Config) SetStepTimeout(stepID string, timeout time.Duration) {
	if c.StepTimeouts == nil {
		c.StepTimeouts = make(map[string]time.Duration)
	}
	c.StepTimeouts[stepID] = timeout
}
