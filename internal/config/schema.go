// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for telegate.
package config

import "gopkg.in/yaml.v3"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "bot.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Security holds process-wide secrets and limits.
	Security *SecurityConfig `yaml:"security,omitempty"`
}

// SecurityConfig holds secrets shared across modules.
type SecurityConfig struct {
	// InternalSecret seeds the per-app webhook secret token derivation.
	// Required: without it inbound webhooks cannot be verified.
	InternalSecret string `yaml:"internal_secret"`

	// CookieSecret signs the short-lived identity claim cookies.
	// Falls back to InternalSecret when empty.
	CookieSecret string `yaml:"cookie_secret,omitempty"`

	// RateLimits bounds authentication attempts on the public endpoints.
	RateLimits RateLimitConfig `yaml:"rate_limits"`
}

// RateLimitConfig holds request rate limits.
type RateLimitConfig struct {
	// AuthPerMin limits /users/authenticate requests per minute. 0 = default.
	AuthPerMin int `yaml:"auth_per_min"`

	// IntentsPerMin limits intent minting per session per minute. 0 = default.
	IntentsPerMin int `yaml:"intents_per_min"`
}
