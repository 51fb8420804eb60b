package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
)

// ErrorKind classifies an adapter failure. Timeouts and network errors are
// transient; parse, auth and storage errors indicate a code, credential or
// database problem and must not be retried automatically.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindNetworkError ErrorKind = "network_error"
	KindParseError   ErrorKind = "parse_error"
	KindAuthError    ErrorKind = "auth_error"

	// KindStorageError marks a failure persisting already-fetched records.
	// Not retried: the fetch succeeded, so replaying it cannot fix the store.
	KindStorageError ErrorKind = "storage_error"
)

// Error is a typed adapter failure carrying the source id and a
// classification used for retry decisions and observability.
type Error struct {
	Source model.Source
	Kind   ErrorKind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a classified adapter error for the given source.
func NewError(source model.Source, kind ErrorKind, err error) *Error {
	return &Error{Source: source, Kind: kind, Err: err}
}

// Classify wraps an arbitrary error from an adapter's client call, inferring
// the kind from the error chain when the adapter did not classify it itself.
func Classify(source model.Source, err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(source, KindTimeout, err)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return NewError(source, KindParseError, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewError(source, KindTimeout, err)
		}
		return NewError(source, KindNetworkError, err)
	}
	return NewError(source, KindNetworkError, err)
}

// Retryable reports whether the error is worth retrying: timeouts and
// network errors are, parse and auth errors are not.
func Retryable(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == KindTimeout || ae.Kind == KindNetworkError
}
