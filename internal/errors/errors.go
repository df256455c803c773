// Package errors provides centralized error definitions and error handling utilities
// for the compound worker subsystem. It defines domain-specific errors, semantic
// error types, error constructors with context wrapping, and error classification
// helpers.
//
// # Error Types
//
// Domain-specific errors follow the fleet lifecycle:
//   - ConfigurationError: no composition matches, or a composition is malformed
//   - DeclinedError: a matching composition is cooling down or the worker cap is reached
//   - ProvisioningError: a backend request failed, was interrupted, or returned the wrong count
//   - LaunchError: one or more members failed to connect
//   - DispatchError: a wrapped step failed on one or more matched members
//   - CleanupError: a rollback or teardown step failed (logged, never escalated)
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewProvisioningError("role request failed", errors.ErrCountMismatch).
//	    WithComposition("web").WithRole("db")
//
//	if errors.Is(err, errors.ErrCountMismatch) { ... }
//
//	var perr *errors.ProvisioningError
//	if errors.As(err, &perr) { ... }
//
//	if errors.IsDeclined(err) { ... } // "no work", not a failure
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Configuration sentinel errors
var (
	// ErrNoMatchingComposition indicates that no composition selector matches the demand.
	ErrNoMatchingComposition = New("no matching composition")
	// ErrMissingRoot indicates that a composition or assembly has no ROOT entry.
	ErrMissingRoot = New("missing ROOT entry")
	// ErrRootCount indicates that the ROOT entry asks for more than one member.
	ErrRootCount = New("ROOT entry must have count 1")
	// ErrInvalidRole indicates a role name outside the vocabulary or with bad characters.
	ErrInvalidRole = New("invalid role")
	// ErrInvalidCount indicates a role entry with a count below 1.
	ErrInvalidCount = New("invalid member count")
	// ErrInvalidSelector indicates a selector pattern that does not compile.
	ErrInvalidSelector = New("invalid selector")
)

// Provisioning sentinel errors
var (
	// ErrCooldownActive indicates that a composition failed recently and is cooling down.
	ErrCooldownActive = New("composition cooldown active")
	// ErrCapacityReached indicates that the compound worker cap is reached.
	ErrCapacityReached = New("compound worker capacity reached")
	// ErrCountMismatch indicates that the backend returned a different number of members than requested.
	ErrCountMismatch = New("backend returned wrong member count")
	// ErrInterrupted indicates that a provisioning or launch task was interrupted.
	ErrInterrupted = New("task interrupted")
)

// Membership sentinel errors
var (
	// ErrMemberNotFound indicates that a member could not be found.
	ErrMemberNotFound = New("member not found")
	// ErrNestedCompound indicates an attempt to use a compound worker as a member.
	ErrNestedCompound = New("member is itself a compound worker")
	// ErrAlreadyOccupied indicates that a member is occupied by another compound worker.
	ErrAlreadyOccupied = New("member already occupied")
	// ErrDuplicateMember indicates that a member appears twice in one registry.
	ErrDuplicateMember = New("member already registered")
	// ErrRegistrySealed indicates a mutation of a registry after assembly finished.
	ErrRegistrySealed = New("registry is sealed")
)

// Launch and dispatch sentinel errors
var (
	// ErrConnectFailed indicates that a member did not come online.
	ErrConnectFailed = New("member failed to connect")
	// ErrStepFailed indicates that a wrapped step reported failure.
	ErrStepFailed = New("step failed")
	// ErrOrdinalOutOfRange indicates that a dispatch ordinal matched no member.
	ErrOrdinalOutOfRange = New("ordinal out of range")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// FleetError is the base interface for all errors in this module.
// It extends the standard error interface with additional methods for
// error handling and classification.
type FleetError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// IsRetryable returns true if a later, independent attempt may succeed.
	IsRetryable() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConfigurationError reports that no composition can serve a demand, or that a
// composition or manual assembly is malformed. It is never retried and no
// cooldown applies.
//
// Example:
//
//	err := errors.NewConfigurationError("no composition for demand", errors.ErrNoMatchingComposition).
//	    WithDemand("web")
type ConfigurationError struct {
	baseError
	Composition string
	Demand      string
	Field       string
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithComposition adds a composition name to the error context.
func (e *ConfigurationError) WithComposition(name string) *ConfigurationError {
	e.Composition = name
	return e
}

// WithDemand adds the demand that could not be served.
func (e *ConfigurationError) WithDemand(demand string) *ConfigurationError {
	e.Demand = demand
	return e
}

// WithField adds the offending configuration field.
func (e *ConfigurationError) WithField(field string) *ConfigurationError {
	e.Field = field
	return e
}

// Error returns the formatted error message.
func (e *ConfigurationError) Error() string {
	var parts []string
	if e.Composition != "" {
		parts = append(parts, fmt.Sprintf("composition=%s", e.Composition))
	}
	if e.Demand != "" {
		parts = append(parts, fmt.Sprintf("demand=%s", e.Demand))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	return e.format("configuration error", parts)
}

// Is checks if this error matches the target.
func (e *ConfigurationError) Is(target error) bool {
	if _, ok := target.(*ConfigurationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DeclinedError reports that the provisioner turned a demand away for now:
// its composition is cooling down after a failure, or the worker cap is
// reached. Nothing was requested from the backend, and a later attempt may
// succeed.
//
// Example:
//
//	err := errors.NewDeclinedError("cooling down for another 4m0s", errors.ErrCooldownActive).
//	    WithComposition("web").WithDemand("web")
type DeclinedError struct {
	baseError
	Composition string
	Demand      string
}

// NewDeclinedError creates a new DeclinedError.
func NewDeclinedError(message string, cause error) *DeclinedError {
	return &DeclinedError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			retryable: true,
		},
	}
}

// WithComposition adds the matched composition to the error context.
func (e *DeclinedError) WithComposition(name string) *DeclinedError {
	e.Composition = name
	return e
}

// WithDemand adds the demand that was turned away.
func (e *DeclinedError) WithDemand(demand string) *DeclinedError {
	e.Demand = demand
	return e
}

// Error returns the formatted error message.
func (e *DeclinedError) Error() string {
	var parts []string
	if e.Composition != "" {
		parts = append(parts, fmt.Sprintf("composition=%s", e.Composition))
	}
	if e.Demand != "" {
		parts = append(parts, fmt.Sprintf("demand=%s", e.Demand))
	}
	return e.format("declined", parts)
}

// Is checks if this error matches the target.
func (e *DeclinedError) Is(target error) bool {
	if _, ok := target.(*DeclinedError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ProvisioningError reports a failed provisioning attempt. By the time a
// caller sees it, everything acquired in the attempt has been rolled back and
// the composition's cooldown is set.
//
// Example:
//
//	err := errors.NewProvisioningError("role request failed", errors.ErrCountMismatch).
//	    WithComposition("web").WithRole("db")
type ProvisioningError struct {
	baseError
	Composition string
	Role        string
	Worker      string
}

// NewProvisioningError creates a new ProvisioningError.
func NewProvisioningError(message string, cause error) *ProvisioningError {
	return &ProvisioningError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			retryable: true,
		},
	}
}

// WithComposition adds a composition name to the error context.
func (e *ProvisioningError) WithComposition(name string) *ProvisioningError {
	e.Composition = name
	return e
}

// WithRole adds the failing role to the error context.
func (e *ProvisioningError) WithRole(role string) *ProvisioningError {
	e.Role = role
	return e
}

// WithWorker adds the compound worker name to the error context.
func (e *ProvisioningError) WithWorker(name string) *ProvisioningError {
	e.Worker = name
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ProvisioningError) WithRetryable(r bool) *ProvisioningError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ProvisioningError) Error() string {
	var parts []string
	if e.Composition != "" {
		parts = append(parts, fmt.Sprintf("composition=%s", e.Composition))
	}
	if e.Worker != "" {
		parts = append(parts, fmt.Sprintf("worker=%s", e.Worker))
	}
	if e.Role != "" {
		parts = append(parts, fmt.Sprintf("role=%s", e.Role))
	}
	return e.format("provisioning error", parts)
}

// Is checks if this error matches the target.
func (e *ProvisioningError) Is(target error) bool {
	if _, ok := target.(*ProvisioningError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// LaunchError reports that a compound worker could not be brought online.
// The root member is never connected when this is returned.
type LaunchError struct {
	baseError
	Worker  string
	Members []string // members that failed to connect
}

// NewLaunchError creates a new LaunchError.
func NewLaunchError(message string, cause error) *LaunchError {
	return &LaunchError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithWorker adds the compound worker name to the error context.
func (e *LaunchError) WithWorker(name string) *LaunchError {
	e.Worker = name
	return e
}

// WithMembers records the members that failed to connect.
func (e *LaunchError) WithMembers(members ...string) *LaunchError {
	e.Members = append(e.Members, members...)
	return e
}

// Error returns the formatted error message.
func (e *LaunchError) Error() string {
	var parts []string
	if e.Worker != "" {
		parts = append(parts, fmt.Sprintf("worker=%s", e.Worker))
	}
	if len(e.Members) > 0 {
		parts = append(parts, fmt.Sprintf("members=%s", strings.Join(e.Members, "|")))
	}
	return e.format("launch error", parts)
}

// Is checks if this error matches the target.
func (e *LaunchError) Is(target error) bool {
	if _, ok := target.(*LaunchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DispatchError reports that a wrapped step failed on one or more members.
type DispatchError struct {
	baseError
	Worker  string
	Role    string
	Ordinal int
	Members []string // members whose step failed
}

// NewDispatchError creates a new DispatchError.
func NewDispatchError(message string, cause error) *DispatchError {
	return &DispatchError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
		Ordinal: -1, // -1 indicates not set
	}
}

// WithWorker adds the compound worker name to the error context.
func (e *DispatchError) WithWorker(name string) *DispatchError {
	e.Worker = name
	return e
}

// WithRole adds the dispatch role to the error context.
func (e *DispatchError) WithRole(role string) *DispatchError {
	e.Role = role
	return e
}

// WithOrdinal adds the dispatch ordinal to the error context.
func (e *DispatchError) WithOrdinal(ordinal int) *DispatchError {
	e.Ordinal = ordinal
	return e
}

// WithMembers records the members whose step failed.
func (e *DispatchError) WithMembers(members ...string) *DispatchError {
	e.Members = append(e.Members, members...)
	return e
}

// Error returns the formatted error message.
func (e *DispatchError) Error() string {
	var parts []string
	if e.Worker != "" {
		parts = append(parts, fmt.Sprintf("worker=%s", e.Worker))
	}
	if e.Role != "" {
		parts = append(parts, fmt.Sprintf("role=%s", e.Role))
	}
	if e.Ordinal >= 0 {
		parts = append(parts, fmt.Sprintf("ordinal=%d", e.Ordinal))
	}
	if len(e.Members) > 0 {
		parts = append(parts, fmt.Sprintf("members=%s", strings.Join(e.Members, "|")))
	}
	return e.format("dispatch error", parts)
}

// Is checks if this error matches the target.
func (e *DispatchError) Is(target error) bool {
	if _, ok := target.(*DispatchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CleanupError reports a failed rollback or teardown step. It is always
// logged and never propagated into a job outcome.
type CleanupError struct {
	baseError
	Worker string
	Member string
	Action string // "release", "terminate", "deregister", "disconnect"
}

// NewCleanupError creates a new CleanupError.
func NewCleanupError(message string, cause error) *CleanupError {
	return &CleanupError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithWorker adds the compound worker name to the error context.
func (e *CleanupError) WithWorker(name string) *CleanupError {
	e.Worker = name
	return e
}

// WithMember adds the member name to the error context.
func (e *CleanupError) WithMember(name string) *CleanupError {
	e.Member = name
	return e
}

// WithAction adds the cleanup action that failed.
func (e *CleanupError) WithAction(action string) *CleanupError {
	e.Action = action
	return e
}

// Error returns the formatted error message.
func (e *CleanupError) Error() string {
	var parts []string
	if e.Worker != "" {
		parts = append(parts, fmt.Sprintf("worker=%s", e.Worker))
	}
	if e.Member != "" {
		parts = append(parts, fmt.Sprintf("member=%s", e.Member))
	}
	if e.Action != "" {
		parts = append(parts, fmt.Sprintf("action=%s", e.Action))
	}
	return e.format("cleanup error", parts)
}

// Is checks if this error matches the target.
func (e *CleanupError) Is(target error) bool {
	if _, ok := target.(*CleanupError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("member", "db-1")
//	fmt.Println(err) // "member not found: db-1"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message: fmt.Sprintf("%s not found", resourceType),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceID)
	}
	return fmt.Sprintf("%s not found", e.ResourceType)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message: fmt.Sprintf("%s already exists", resourceType),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.ResourceID != "" {
		return fmt.Sprintf("%s already exists: %s", e.ResourceType, e.ResourceID)
	}
	return fmt.Sprintf("%s already exists", e.ResourceType)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("count must be at least 1").WithField("entries[1].count").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message: message,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation error")
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" [field=%s]", e.Field))
	}
	sb.WriteString(": ")
	sb.WriteString(e.message)
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (got: %v)", e.Value))
	}
	if e.cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.cause))
	}
	return sb.String()
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsDeclined returns true if the error is a legitimate "can't help" answer
// from the provisioner rather than a failure: no composition matches the
// demand, the matched composition is cooling down, or the worker cap is
// reached.
func IsDeclined(err error) bool {
	if err == nil {
		return false
	}
	var declined *DeclinedError
	if As(err, &declined) {
		return true
	}
	return Is(err, ErrNoMatchingComposition) || Is(err, ErrCooldownActive) || Is(err, ErrCapacityReached)
}

// IsRetryable returns true if the error represents a transient condition
// that a later, independent attempt may get past.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrCooldownActive) || Is(err, ErrCapacityReached) {
		return true
	}

	var fleetErr FleetError
	if As(err, &fleetErr) {
		return fleetErr.IsRetryable()
	}
	return false
}
