package config

import "git.home.luguber.info/inful/libforge/internal/foundation/normalization"

// RetryBackoffMode names the delay curve between sync retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var backoffModes = normalization.NewNormalizer("retry.backoff", map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"constant":    RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
	"exp":         RetryBackoffExponential,
}, "")

// NormalizeRetryBackoff maps user input onto a mode, or "" when unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return backoffModes.Normalize(raw)
}

// RetryConfig is the project's retry section. Only source sync retries;
// build and patch failures never do.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	// MaxRetries counts retries after the first attempt. Nil means default.
	MaxRetries *int `yaml:"max_retries,omitempty"`
}
