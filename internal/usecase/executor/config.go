package executor

import "time"

const (
	defaultMaxIterations      = 10
	defaultRunTimeout         = 5 * time.Minute
	defaultToolTimeout        = 30 * time.Second
	defaultMaxConcurrentTools = 4
	defaultMaxProtocolErrors  = 1
	defaultMaxObservationLen  = 20000
)

type Config struct {
	MaxIterations      int
	RunTimeout         time.Duration
	ToolTimeout        time.Duration
	MaxConcurrentTools int
	// MaxProtocolErrors is how many consecutive protocol errors the model may
	// recover from before the run fails. Zero means the default, negative
	// means none.
	MaxProtocolErrors int
	MaxObservationLen int
	Temperature       float32
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:      defaultMaxIterations,
		RunTimeout:         defaultRunTimeout,
		ToolTimeout:        defaultToolTimeout,
		MaxConcurrentTools: defaultMaxConcurrentTools,
		MaxProtocolErrors:  defaultMaxProtocolErrors,
		MaxObservationLen:  defaultMaxObservationLen,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = d.RunTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = d.ToolTimeout
	}
	if c.MaxConcurrentTools <= 0 {
		c.MaxConcurrentTools = d.MaxConcurrentTools
	}
	switch {
	case c.MaxProtocolErrors == 0:
		c.MaxProtocolErrors = d.MaxProtocolErrors
	case c.MaxProtocolErrors < 0:
		c.MaxProtocolErrors = 0
	}
	if c.MaxObservationLen <= 0 {
		c.MaxObservationLen = d.MaxObservationLen
	}
	return c
}
