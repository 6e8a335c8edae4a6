// Package venueerr defines a typed error hierarchy produced at the venue
// adapter boundary (spec.md §7, §9). Callers classify errors by type
// switch or errors.As, never by matching substrings in an error message.
package venueerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind tags the taxonomy category of an error.
type Kind string

const (
	KindValidation    Kind = "validation"     // HTTP 400
	KindNotFound      Kind = "not_found"      // HTTP 404
	KindConfiguration Kind = "configuration"  // HTTP 400, field-specific
	KindConnectivity  Kind = "connectivity"   // timeouts, resets — retryable
	KindVenueReject   Kind = "venue_rejection" // rate-limited, margin, post-only cross
	KindFatal         Kind = "fatal"          // executor dead, unrecoverable
)

// Error is the common shape for every classified error the adapter returns.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "place_order"
	Field   string // set for KindConfiguration
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s): %s", e.Op, e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so errors.Is
// matches two classified errors by Kind rather than by identity (e.g. two
// KindConnectivity errors from different ops).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Validation builds a KindValidation error.
func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

// NotFound builds a KindNotFound error.
func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

// Configuration builds a KindConfiguration error naming the offending field.
func Configuration(op, field, msg string) error {
	return &Error{Kind: KindConfiguration, Op: op, Field: field, Message: msg}
}

// Connectivity wraps a transport-level cause as KindConnectivity.
func Connectivity(op string, cause error) error {
	return &Error{Kind: KindConnectivity, Op: op, Message: cause.Error(), Err: cause}
}

// VenueReject builds a KindVenueReject error (rate limit, margin, post-only cross).
func VenueReject(op, msg string) error {
	return &Error{Kind: KindVenueReject, Op: op, Message: msg}
}

// Fatal wraps an unrecoverable cause as KindFatal.
func Fatal(op string, cause error) error {
	return &Error{Kind: KindFatal, Op: op, Message: cause.Error(), Err: cause}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ClassifyKind extracts the Kind of err, or KindFatal if err is not one of
// this package's classified errors (used by the HTTP surface's diagnostic
// responses, spec.md §6 "POST /config/exchange/test").
func ClassifyKind(err error) Kind {
	k, ok := KindOf(err)
	if !ok {
		return KindFatal
	}
	return k
}

// HTTPStatus maps a classified error's Kind to the status code named by
// spec.md §7's taxonomy table.
func HTTPStatus(err error) int {
	switch ClassifyKind(err) {
	case KindValidation, KindConfiguration:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConnectivity, KindVenueReject:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsTimeout reports whether err is a KindConnectivity error whose wrapped
// cause is context.DeadlineExceeded or a net.Error timeout. Used only for
// the PositionManager's log suppression (spec.md §4.3); never used for
// classification decisions, which always go through Kind.
func IsTimeout(err error) bool {
	k, ok := KindOf(err)
	if !ok || k != KindConnectivity {
		return false
	}

	var e *Error
	if !errors.As(err, &e) || e.Err == nil {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
