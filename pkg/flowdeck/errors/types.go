package errors

import (
	"fmt"
	"time"
)

// ValidationError reports missing or invalid configuration on a node.
// NodeID names the node the editor should select so the user can fix it.
type ValidationError struct {
	NodeID  string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// RateLimitError reports an exhausted quota.
type RateLimitError struct {
	Kind      string
	Limit     int
	Remaining int
	Reset     time.Time
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit %d, resets %s)",
		e.Kind, e.Limit, e.Reset.UTC().Format(time.RFC3339))
}

// ServiceError wraps a failed call to an external collaborator.
type ServiceError struct {
	// Service names the collaborator ("flowise", "openai", "voice", ...).
	Service string
	// StatusCode is the HTTP status, or 0 when the request never completed.
	StatusCode int
	// Message is the collaborator's own error text, if it sent one.
	Message string
	// Err is the transport-level cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Service, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Service, e.Message)
	}
}

// Unwrap returns the transport cause.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Validation creates a ValidationError.
func Validation(nodeID, field, message string) *ValidationError {
	return &ValidationError{NodeID: nodeID, Field: field, Message: message}
}

// NotFound creates a NotFoundError.
func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}
