package ets

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Defaults for ClientConfig
const (
	DefaultTimeout          = 30 * time.Second
	DefaultPageSize         = 100
	DefaultMaxPages         = 200
	DefaultMaxResponseBytes = 10 * 1024 * 1024
	DefaultRateLimitQPS     = 5
	DefaultRateLimitBurst   = 5
)

// Errors for client configuration
var (
	ErrConfigMissingBaseURL = errors.New("ets: base url is required")
	ErrConfigInvalidBaseURL = errors.New("ets: base url must be an absolute http(s) url")
	ErrConfigMissingToken   = errors.New("ets: token is required")
)

// ClientConfig holds everything one tenant's client needs. Values are passed
// explicitly; the client reads no globals.
type ClientConfig struct {
	// BaseURL is the root of the REST API, without the /webservice/v1 suffix
	BaseURL string
	// Token is the decoded API token sent in the Basic authorization header
	Token string
	// Timeout bounds every call, including rate-limit waits and retries of a single attempt
	Timeout time.Duration
	// PageSize is the rp value used when listing
	PageSize int
	// MaxPages stops pagination against a server that never reports an end
	MaxPages int
	// MaxResponseBytes caps the body read from a single response
	MaxResponseBytes int64
	// RateLimitQPS is the sustained request rate; zero or less disables limiting
	RateLimitQPS float64
	// RateLimitBurst is the token bucket size
	RateLimitBurst int
	// Retry applies to read-only calls
	Retry RetryPolicy
}

// DefaultClientConfig returns a config with defaults and no endpoint
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:          DefaultTimeout,
		PageSize:         DefaultPageSize,
		MaxPages:         DefaultMaxPages,
		MaxResponseBytes: DefaultMaxResponseBytes,
		RateLimitQPS:     DefaultRateLimitQPS,
		RateLimitBurst:   DefaultRateLimitBurst,
		Retry:            DefaultRetryPolicy(),
	}
}

// Validate checks required fields and fills zero values with defaults
func (c *ClientConfig) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrConfigInvalidBaseURL
	}
	if c.Token == "" {
		return ErrConfigMissingToken
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 1
	}
	c.Retry = c.Retry.normalized()
	return nil
}

// endpoint returns the URL of a webservice resource
func (c *ClientConfig) endpoint(resource string) string {
	return c.BaseURL + "/webservice/v1/" + resource
}
