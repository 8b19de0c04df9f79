package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Input and state errors
	ErrValidation          = fmt.Errorf("invalid input")
	ErrNotFound            = fmt.Errorf("not found")
	ErrNotLinked           = fmt.Errorf("device not linked to an account")
	ErrConstraintViolation = fmt.Errorf("constraint violation")
	ErrNotAuthenticated    = fmt.Errorf("not authenticated")

	// Upstream errors
	ErrUpstreamAuth      = fmt.Errorf("upstream authorization failed")
	ErrUpstreamTransient = fmt.Errorf("upstream unavailable")
	ErrAPIRequest        = fmt.Errorf("API request failed")

	// Image pipeline errors
	ErrTranscode = fmt.Errorf("transcode failed")

	ErrTimeout = fmt.Errorf("operation timed out")
)

// UpstreamError carries a non-success upstream response for diagnostics.
//
// The body is meant for logs; callers must not echo it to device clients.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%v: status %d", ErrAPIRequest, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return ErrAPIRequest
}

// Kind is the stable tag attached to structured error responses.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindNotLinked           Kind = "not_linked"
	KindNotAuthenticated    Kind = "not_authenticated"
	KindUpstreamAuth        Kind = "upstream_auth"
	KindUpstreamTransient   Kind = "upstream_transient"
	KindUpstream            Kind = "upstream"
	KindTranscode           Kind = "transcode"
	KindConstraintViolation Kind = "constraint_violation"
	KindInternal            Kind = "internal"
)

// KindOf classifies err into one of the [Kind] tags. Unknown errors are [KindInternal].
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotLinked):
		return KindNotLinked
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotAuthenticated):
		return KindNotAuthenticated
	case errors.Is(err, ErrConstraintViolation):
		return KindConstraintViolation
	case errors.Is(err, ErrUpstreamAuth):
		return KindUpstreamAuth
	case errors.Is(err, ErrUpstreamTransient), errors.Is(err, ErrTimeout):
		return KindUpstreamTransient
	case errors.Is(err, ErrAPIRequest):
		return KindUpstream
	case errors.Is(err, ErrTranscode):
		return KindTranscode
	default:
		return KindInternal
	}
}

// SafeMessage returns a message for err that is fine to show to an end user or device.
func SafeMessage(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return err.Error()
	case KindNotFound:
		return "device not found"
	case KindNotLinked:
		return "device not linked to an account"
	case KindNotAuthenticated:
		return "not authenticated"
	case KindConstraintViolation:
		return "already exists"
	case KindUpstreamAuth:
		return "spotify authorization expired, sign in again"
	case KindUpstreamTransient:
		return "spotify is unavailable, try again later"
	case KindUpstream:
		return "spotify request failed"
	case KindTranscode:
		return "cover art could not be converted"
	default:
		return "internal server error"
	}
}
