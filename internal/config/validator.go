package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration value
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors aggregates all validation failures for one Load
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// ValidLogLevels returns the accepted logging.level values
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the configuration for invalid values.
// Returns a list of validation errors, empty if the config is valid.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, c.validatePaths()...)
	errs = append(errs, c.validateExpiry()...)
	errs = append(errs, c.validatePool()...)
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateDaemon()...)

	return errs
}

func (c *Config) validatePaths() []ValidationError {
	var errs []ValidationError

	if c.Paths.DataDir == "" {
		errs = append(errs, ValidationError{
			Field:   "paths.data_dir",
			Value:   c.Paths.DataDir,
			Message: "must not be empty",
		})
	}
	if c.Paths.TemplateDir == "" {
		errs = append(errs, ValidationError{
			Field:   "paths.template_dir",
			Value:   c.Paths.TemplateDir,
			Message: "must not be empty",
		})
	}
	if c.Paths.InstancesDir == "" {
		errs = append(errs, ValidationError{
			Field:   "paths.instances_dir",
			Value:   c.Paths.InstancesDir,
			Message: "must not be empty",
		})
	}

	return errs
}

func (c *Config) validateExpiry() []ValidationError {
	var errs []ValidationError

	if c.Expiry.AbsoluteSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "expiry.absolute_seconds",
			Value:   c.Expiry.AbsoluteSeconds,
			Message: "must be positive",
		})
	}
	if c.Expiry.InactivitySeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "expiry.inactivity_seconds",
			Value:   c.Expiry.InactivitySeconds,
			Message: "must be positive",
		})
	}

	return errs
}

func (c *Config) validatePool() []ValidationError {
	var errs []ValidationError

	if c.Pool.InstanceLimit <= 0 {
		errs = append(errs, ValidationError{
			Field:   "pool.instance_limit",
			Value:   c.Pool.InstanceLimit,
			Message: "must be positive",
		})
	}
	if c.Pool.PerClientLimit <= 0 {
		errs = append(errs, ValidationError{
			Field:   "pool.per_client_limit",
			Value:   c.Pool.PerClientLimit,
			Message: "must be positive",
		})
	}
	if strings.HasPrefix(c.Pool.ActivitySubpath, "/") {
		errs = append(errs, ValidationError{
			Field:   "pool.activity_subpath",
			Value:   c.Pool.ActivitySubpath,
			Message: "must be relative to the instance root",
		})
	}

	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError

	valid := false
	for _, level := range ValidLogLevels() {
		if strings.EqualFold(c.Logging.Level, level) {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errs
}

func (c *Config) validateDaemon() []ValidationError {
	var errs []ValidationError

	for field, schedule := range map[string]string{
		"daemon.cleanup_schedule": c.Daemon.CleanupSchedule,
		"daemon.prepare_schedule": c.Daemon.PrepareSchedule,
		"daemon.stats_schedule":   c.Daemon.StatsSchedule,
	} {
		if strings.TrimSpace(schedule) == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Value:   schedule,
				Message: "must not be empty",
			})
		}
	}

	return errs
}
