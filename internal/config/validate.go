package config

import (
	"errors"
	"fmt"

	"github.com/telegate-io/telegate/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, and enforces the
// security section invariants.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateSecurity(cfg.Security)...)

	return errors.Join(errs...)
}

func validateSecurity(sec *SecurityConfig) []error {
	var errs []error

	if sec == nil || sec.InternalSecret == "" {
		errs = append(errs, errors.New("config: security.internal_secret is required (webhook secrets are derived from it)"))
		return errs
	}

	if len(sec.InternalSecret) < 16 {
		errs = append(errs, errors.New("config: security.internal_secret must be at least 16 characters"))
	}

	if sec.RateLimits.AuthPerMin < 0 {
		errs = append(errs, fmt.Errorf("config: security.rate_limits.auth_per_min must not be negative, got %d", sec.RateLimits.AuthPerMin))
	}

	return errs
}
