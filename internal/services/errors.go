package services

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindGeocode
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindGeocode:
		return "geocode"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// ServiceError is the error type returned by every service operation that
// fails for a reason the caller can act on.
type ServiceError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches on Kind and Code so wrapped copies of a sentinel still compare
// equal to it.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

func newError(kind ErrorKind, code, message string) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: message}
}

var (
	ErrUnauthorized       = newError(KindUnauthorized, "UNAUTHORIZED", "authentication required")
	ErrInvalidCredentials = newError(KindUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")

	ErrNotRideCreator     = newError(KindForbidden, "NOT_RIDE_CREATOR", "only the ride creator can do this")
	ErrCannotJoinOwn      = newError(KindForbidden, "CANNOT_JOIN_OWN_RIDE", "cannot join own ride")
	ErrRideNotFound       = newError(KindNotFound, "RIDE_NOT_FOUND", "ride not found")
	ErrUserNotFound       = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrCreatorCannotLeave = newError(KindValidation, "CREATOR_CANNOT_LEAVE", "creator cannot leave their own ride")
	ErrNotAMember         = newError(KindValidation, "NOT_A_MEMBER", "user is not a member of this ride")
	ErrInvalidID          = newError(KindValidation, "INVALID_ID", "invalid id")
	ErrCapacityTooLow     = newError(KindValidation, "CAPACITY_BELOW_MEMBERS", "max_members cannot be below the current member count")

	ErrDuplicateUser = newError(KindConflict, "DUPLICATE_USER", "user with this email already exists")
	ErrAlreadyJoined = newError(KindConflict, "ALREADY_JOINED", "already joined this ride")
	ErrRideFull      = newError(KindConflict, "RIDE_FULL", "ride is full")

	ErrGeocodeFailed   = newError(KindGeocode, "GEOCODE_FAILED", "could not resolve location")
	ErrTooManyAttempts = newError(KindRateLimited, "TOO_MANY_ATTEMPTS", "too many login attempts, try again later")
)

// ValidationError builds a validation failure with optional per-field details.
func ValidationError(message string, details map[string]string) *ServiceError {
	return &ServiceError{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}
}

// GeocodeError wraps a geocoder failure for the given place text.
func GeocodeError(place string, err error) *ServiceError {
	return &ServiceError{
		Kind:    KindGeocode,
		Code:    ErrGeocodeFailed.Code,
		Message: fmt.Sprintf("could not resolve location %q", place),
		Err:     err,
	}
}

// internalError wraps a store failure. The cause is kept for logging only.
func internalError(op string, err error) *ServiceError {
	return &ServiceError{
		Kind:    KindInternal,
		Code:    "INTERNAL_ERROR",
		Message: op,
		Err:     err,
	}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
