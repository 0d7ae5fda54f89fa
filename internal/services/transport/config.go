// File: internal/services/transport/config.go
package transport

import (
	"fmt"
	"net/url"
	"time"
)

// RetryConfig bounds the attempt loop.
type RetryConfig struct {
	MaxAttempts  int           // Total attempts, including the first one
	InitialDelay time.Duration // Wait after the first failure; doubled after each later one

	// RetryClientErrors keeps non-429 4xx responses on the retry path.
	// When false they fail on the attempt that produced them.
	RetryClientErrors bool
}

// DefaultRetryConfig mirrors the behaviour the front-end shipped with.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      1000 * time.Millisecond,
		RetryClientErrors: true,
	}
}

func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	if c.InitialDelay <= 0 {
		return fmt.Errorf("initial delay must be positive")
	}
	return nil
}

// Config describes the single endpoint a RetryingTransport talks to.
type Config struct {
	Endpoint string        // Full generation URL, without the key query parameter
	APIKey   string        // Sent as ?key=; may be empty when injected by the environment
	Timeout  time.Duration // Per-call timeout; zero means none
	Retry    RetryConfig
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint %q is not an absolute URL", c.Endpoint)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return c.Retry.Validate()
}

// requestURL appends the credential the way the API expects it.
func (c *Config) requestURL() (string, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", c.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
