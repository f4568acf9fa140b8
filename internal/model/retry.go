package model

import (
	"strings"
	"time"
)

// RetryConfig controls retry behavior for model calls.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns defaults tuned for LLM provider APIs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = d.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = d.MaxInterval
	}
	return c
}

// retryablePatterns are matched case-insensitively against err.Error().
// String matching is the only option here: neither Genkit nor the provider
// SDKs expose typed errors for transient failures.
var retryablePatterns = []string{
	"rate limit", "quota exceeded", "429",
	"500", "502", "503", "504", "unavailable",
	"connection reset", "timeout", "temporary",
}

// retryableError reports whether err looks transient.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// offlinePatterns identify provider-side account or billing failures.
// These are diagnosable and map to a distinct service-offline condition
// rather than a generic internal error.
var offlinePatterns = []string{
	"billing", "payment required", "402", "account suspended",
}

// OfflineError reports whether err indicates the model gateway is
// unusable for account reasons rather than transient load.
func OfflineError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range offlinePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
