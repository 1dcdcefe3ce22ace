package detect

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is returned when a loop configuration fails validation.
var ErrInvalidConfig = errors.New("invalid detection config")

// Sampling policy names.
const (
	PolicyCount = "count"
	PolicyTime  = "time"
)

// Capture mode names.
const (
	CaptureManual = "manual"
	CaptureAuto   = "auto"
)

// Config controls when detection runs and how text is captured.
type Config struct {
	// Policy is "count" (every EveryN frames) or "time" (every Interval).
	Policy string `json:"policy" yaml:"policy" mapstructure:"policy"`

	// EveryN is the frame stride for the count policy.
	EveryN int `json:"every_n" yaml:"every_n" mapstructure:"every_n"`

	// Interval is the minimum time between detections for the time policy.
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// Threshold is the confidence a detection must exceed to be drawn or logged.
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`

	// CaptureMode is "manual" (log on capture signal) or "auto" (log every fresh pass).
	CaptureMode string `json:"capture_mode" yaml:"capture_mode" mapstructure:"capture_mode"`
}

// DefaultConfig returns the count-based, manual-capture configuration.
func DefaultConfig() Config {
	return Config{
		Policy:      PolicyCount,
		EveryN:      10,
		Interval:    3 * time.Second,
		Threshold:   DefaultThreshold,
		CaptureMode: CaptureManual,
	}
}

// Legacy returns the defaults for one of the two historical variants:
// "count" samples every 10th frame with manual capture, "time" samples
// every 3 seconds and logs automatically.
func Legacy(policy string) Config {
	cfg := DefaultConfig()
	if policy == PolicyTime {
		cfg.Policy = PolicyTime
		cfg.CaptureMode = CaptureAuto
	}
	return cfg
}

// Validate returns every problem with the configuration.
func (c Config) Validate() []string {
	var issues []string

	switch c.Policy {
	case PolicyCount:
		if c.EveryN < 1 {
			issues = append(issues, fmt.Sprintf("every_n must be at least 1, got %d", c.EveryN))
		}
	case PolicyTime:
		if c.Interval <= 0 {
			issues = append(issues, fmt.Sprintf("interval must be positive, got %s", c.Interval))
		}
	default:
		issues = append(issues, fmt.Sprintf("unknown sampling policy %q (want count or time)", c.Policy))
	}

	if c.Threshold < 0 || c.Threshold >= 1 {
		issues = append(issues, fmt.Sprintf("threshold must be in [0, 1), got %g", c.Threshold))
	}

	switch c.CaptureMode {
	case CaptureManual, CaptureAuto:
	default:
		issues = append(issues, fmt.Sprintf("unknown capture mode %q (want manual or auto)", c.CaptureMode))
	}

	return issues
}

// Err folds Validate into a single error wrapping ErrInvalidConfig.
func (c Config) Err() error {
	issues := c.Validate()
	if len(issues) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(issues, "; "))
}
