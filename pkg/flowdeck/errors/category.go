// Package errors classifies the failures a dashboard action can end in.
//
// Every failure is terminal for the action that caused it: nothing here
// retries. The category decides how the failure is surfaced:
//   - Validation: missing per-node configuration, shown inline on the node
//   - RateLimited: the user's daily quota is spent, shown as its own notice
//   - Unauthenticated: the action needs a signed-in user
//   - NotFound: a flow, prompt or document does not exist
//   - External: a hosted collaborator answered with an error
package errors

import (
	"context"
	"errors"
	"net/http"
)

// Category represents how an error should be surfaced.
type Category int

const (
	// CategoryInternal is the fallback for errors nobody classified.
	CategoryInternal Category = iota

	// CategoryValidation indicates missing or invalid user-supplied configuration.
	CategoryValidation

	// CategoryRateLimited indicates a per-user quota was exhausted.
	CategoryRateLimited

	// CategoryUnauthenticated indicates the action requires a signed-in user.
	CategoryUnauthenticated

	// CategoryNotFound indicates a missing flow, prompt, chat or document.
	CategoryNotFound

	// CategoryExternal indicates a collaborator service failed.
	CategoryExternal
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryInternal:
		return "internal"
	case CategoryValidation:
		return "validation"
	case CategoryRateLimited:
		return "rate_limited"
	case CategoryUnauthenticated:
		return "unauthenticated"
	case CategoryNotFound:
		return "not_found"
	case CategoryExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ErrUnauthenticated is returned when an action needs a user and none is present.
var ErrUnauthenticated = errors.New("user is not authenticated")

// Categorize determines how an error should be surfaced.
func Categorize(err error) Category {
	if err == nil {
		return CategoryInternal
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return CategoryValidation
	}

	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return CategoryRateLimited
	}

	if errors.Is(err, ErrUnauthenticated) {
		return CategoryUnauthenticated
	}

	var nfErr *NotFoundError
	if errors.As(err, &nfErr) {
		return CategoryNotFound
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		if svcErr.StatusCode == http.StatusTooManyRequests {
			return CategoryRateLimited
		}
		return CategoryExternal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryExternal
	}

	return CategoryInternal
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch Categorize(err) {
	case CategoryValidation:
		return http.StatusUnprocessableEntity
	case CategoryRateLimited:
		return http.StatusTooManyRequests
	case CategoryUnauthenticated:
		return http.StatusUnauthorized
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the text shown to the user for err.
// External failures include the collaborator's message when one was given.
func UserMessage(err error) string {
	switch Categorize(err) {
	case CategoryValidation:
		var valErr *ValidationError
		errors.As(err, &valErr)
		return valErr.Message
	case CategoryRateLimited:
		return "You have reached your chat limit for today."
	case CategoryUnauthenticated:
		return "User is not authenticated."
	case CategoryNotFound:
		var nfErr *NotFoundError
		if errors.As(err, &nfErr) {
			return nfErr.Error()
		}
		return "Not found."
	case CategoryExternal:
		var svcErr *ServiceError
		if errors.As(err, &svcErr) && svcErr.Message != "" {
			return "Request failed: " + svcErr.Message
		}
		return "Request failed. Please try again."
	default:
		return "An error occurred. Please try again."
	}
}
