package config

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/modlens/internal/sqlutil"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateSchema()...)
	errors = append(errors, c.validateVariants()...)
	errors = append(errors, c.validateSimulation()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateSchema() ValidationErrors {
	var errors ValidationErrors

	if c.Schema.Sample == "" {
		errors = append(errors, ValidationError{
			Field:   "schema.sample",
			Message: "sample database path is required",
		})
	}

	if c.Schema.SentinelTable != "" {
		if err := sqlutil.ValidateIdentifier(c.Schema.SentinelTable); err != nil {
			errors = append(errors, ValidationError{
				Field:   "schema.sentinel_table",
				Message: err.Error(),
			})
		}
	}

	return errors
}

func (c *Config) validateVariants() ValidationErrors {
	var errors ValidationErrors

	for _, name := range c.ListVariants() {
		if c.Variants[name] == "" {
			errors = append(errors, ValidationError{
				Field:   "variants." + name,
				Message: "database path is required",
			})
		}
	}

	return errors
}

func (c *Config) validateSimulation() ValidationErrors {
	var errors ValidationErrors

	if c.Simulation.BusyTimeoutMS < 0 {
		errors = append(errors, ValidationError{
			Field:   "simulation.busy_timeout_ms",
			Message: "busy_timeout_ms cannot be negative",
		})
	}

	validMethods := map[string]bool{"count": true, "sha256": true, "": true}
	if !validMethods[c.Simulation.VerifyMethod] {
		errors = append(errors, ValidationError{
			Field:   "simulation.verify_method",
			Message: "verify_method must be 'count' or 'sha256'",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
