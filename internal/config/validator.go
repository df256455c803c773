package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "fleet.compositions[0].entries[1].count")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// roleNameRegex is the legal shape of a role name: one or more word characters
var roleNameRegex = regexp.MustCompile(`^\w+$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// IsValidRoleName reports whether name is a legal role name
func IsValidRoleName(name string) bool {
	return roleNameRegex.MatchString(name)
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateFleet()...)
	errors = append(errors, c.validateCompositions()...)
	errors = append(errors, c.validatePool()...)
	errors = append(errors, c.validateDispatch()...)
	errors = append(errors, c.validateWorkspace()...)
	errors = append(errors, c.validateBackend()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateFleet validates the scalar FleetConfig fields and the role vocabulary
func (c *Config) validateFleet() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Fleet.Name) == "" {
		errors = append(errors, ValidationError{
			Field:   "fleet.name",
			Value:   c.Fleet.Name,
			Message: "must not be empty",
		})
	}

	if c.Fleet.MaxInstances < 0 {
		errors = append(errors, ValidationError{
			Field:   "fleet.max_instances",
			Value:   c.Fleet.MaxInstances,
			Message: "must be non-negative (0 means unlimited)",
		})
	}

	if c.Fleet.RetryTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "fleet.retry_timeout_seconds",
			Value:   c.Fleet.RetryTimeoutSeconds,
			Message: "must be non-negative",
		})
	}

	for i, role := range c.Fleet.Roles {
		if !IsValidRoleName(role) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("fleet.roles[%d]", i),
				Value:   role,
				Message: "must contain only letters, digits and underscores",
			})
		}
	}

	return errors
}

// validateCompositions validates every composition and its entries
func (c *Config) validateCompositions() []ValidationError {
	var errors []ValidationError

	vocabulary := c.Fleet.RoleVocabulary()
	names := make(map[string]bool, len(c.Fleet.Compositions))

	for i, comp := range c.Fleet.Compositions {
		prefix := fmt.Sprintf("fleet.compositions[%d]", i)

		if comp.Name == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".name",
				Value:   comp.Name,
				Message: "must not be empty",
			})
		} else if names[comp.Name] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".name",
				Value:   comp.Name,
				Message: "duplicate composition name",
			})
		}
		names[comp.Name] = true

		errors = append(errors, validateSelector(prefix+".selector", comp.Selector)...)

		roots := 0
		for j, entry := range comp.Entries {
			entryPrefix := fmt.Sprintf("%s.entries[%d]", prefix, j)

			if !slices.Contains(vocabulary, entry.Role) {
				errors = append(errors, ValidationError{
					Field:   entryPrefix + ".role",
					Value:   entry.Role,
					Message: fmt.Sprintf("must be one of: %s", strings.Join(vocabulary, ", ")),
				})
			}
			if entry.Count < 1 {
				errors = append(errors, ValidationError{
					Field:   entryPrefix + ".count",
					Value:   entry.Count,
					Message: "must be at least 1",
				})
			}
			if entry.Role == RootRole {
				roots++
				if entry.Count > 1 {
					errors = append(errors, ValidationError{
						Field:   entryPrefix + ".count",
						Value:   entry.Count,
						Message: "ROOT entry must have count 1",
					})
				}
			}
			errors = append(errors, validateSelector(entryPrefix+".selector", entry.Selector)...)
		}

		if roots != 1 {
			errors = append(errors, ValidationError{
				Field:   prefix + ".entries",
				Value:   roots,
				Message: "must contain exactly one ROOT entry",
			})
		}
	}

	return errors
}

// validateSelector checks that a selector is present and compiles as a glob
func validateSelector(field, selector string) []ValidationError {
	if selector == "" {
		return []ValidationError{{
			Field:   field,
			Value:   selector,
			Message: "must not be empty",
		}}
	}
	if _, err := glob.Compile(selector); err != nil {
		return []ValidationError{{
			Field:   field,
			Value:   selector,
			Message: fmt.Sprintf("invalid pattern: %v", err),
		}}
	}
	return nil
}

// validatePool validates the PoolConfig
func (c *Config) validatePool() []ValidationError {
	var errors []ValidationError

	if c.Pool.MaxWorkers < 0 {
		errors = append(errors, ValidationError{
			Field:   "pool.max_workers",
			Value:   c.Pool.MaxWorkers,
			Message: "must be non-negative (0 means unlimited)",
		})
	}

	return errors
}

// validateDispatch validates the DispatchConfig
func (c *Config) validateDispatch() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidOutOfRangePolicies(), c.Dispatch.OutOfRange) {
		errors = append(errors, ValidationError{
			Field:   "dispatch.out_of_range",
			Value:   c.Dispatch.OutOfRange,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOutOfRangePolicies(), ", ")),
		})
	}

	if c.Dispatch.MaxOrdinal < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.max_ordinal",
			Value:   c.Dispatch.MaxOrdinal,
			Message: "must be non-negative (0 means unbounded)",
		})
	}

	return errors
}

// validateWorkspace validates the WorkspaceConfig
func (c *Config) validateWorkspace() []ValidationError {
	var errors []ValidationError

	if strings.ContainsRune(c.Workspace.Dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "workspace.dir",
			Value:   c.Workspace.Dir,
			Message: "path contains invalid null character",
		})
	}

	suffix := c.Workspace.RootSuffix
	switch {
	case suffix == "":
		errors = append(errors, ValidationError{
			Field:   "workspace.root_suffix",
			Value:   suffix,
			Message: "must not be empty",
		})
	case strings.ContainsAny(suffix, "/\\\x00") || suffix == "." || suffix == "..":
		errors = append(errors, ValidationError{
			Field:   "workspace.root_suffix",
			Value:   suffix,
			Message: "must be a single path element",
		})
	}

	return errors
}

// validateBackend validates the static backend node list
func (c *Config) validateBackend() []ValidationError {
	var errors []ValidationError

	names := make(map[string]bool, len(c.Backend.Nodes))
	for i, node := range c.Backend.Nodes {
		prefix := fmt.Sprintf("backend.nodes[%d]", i)

		if node.Name == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".name",
				Value:   node.Name,
				Message: "must not be empty",
			})
		} else if names[node.Name] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".name",
				Value:   node.Name,
				Message: "duplicate node name",
			})
		}
		names[node.Name] = true

		if node.Slots < 0 {
			errors = append(errors, ValidationError{
				Field:   prefix + ".slots",
				Value:   node.Slots,
				Message: "must be non-negative",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
