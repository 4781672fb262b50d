// Package stationerr defines the station's error kinds (§7), structured
// errors with a kind, an HTTP status, and a human-readable info payload,
// mirrored from infrastructure/errors.ServiceError.
package stationerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the station's seven error categories.
type Kind string

const (
	KindValidation            Kind = "validation_error"
	KindNotFound              Kind = "not_found"
	KindForbidden             Kind = "forbidden"
	KindNotAllowedModification Kind = "not_allowed_modification"
	KindExecutionError        Kind = "execution_error"
	KindAdapterError          Kind = "adapter_error"
	KindFatal                 Kind = "fatal"
)

// StationError is the structured error every station-facing boundary
// returns, carrying enough detail to render a precise HTTP response
// without inspecting internals (§7 "surface all user-visible failures
// with an error kind + human-readable info").
type StationError struct {
	Kind       Kind
	Info       string
	HTTPStatus int
	Err        error
}

func (e *StationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Info, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Info)
}

func (e *StationError) Unwrap() error { return e.Err }

func new_(kind Kind, status int, info string) *StationError {
	return &StationError{Kind: kind, Info: info, HTTPStatus: status}
}

func wrap(kind Kind, status int, info string, err error) *StationError {
	return &StationError{Kind: kind, Info: info, HTTPStatus: status, Err: err}
}

// Validation builds a ValidationError (§7): structural or cross-reference
// failure at create time; the request is not persisted.
func Validation(info string) *StationError {
	return new_(KindValidation, http.StatusBadRequest, info)
}

// ValidationWrap wraps an underlying error (typically *domain.ValidationError)
// as a StationError, preserving its message as Info.
func ValidationWrap(err error) *StationError {
	return wrap(KindValidation, http.StatusBadRequest, err.Error(), err)
}

// NotFound builds a NotFound error for a missing referenced entity.
func NotFound(resource, id string) *StationError {
	return new_(KindNotFound, http.StatusNotFound, fmt.Sprintf("%s %s not found", resource, id))
}

// Forbidden builds a Forbidden error: caller lacks permission or is not an
// eligible approver.
func Forbidden(info string) *StationError {
	return new_(KindForbidden, http.StatusForbidden, info)
}

// NotAllowedModification builds a NotAllowedModification error: a decision
// on a non-Created request, or a second decision from one approver.
func NotAllowedModification(info string) *StationError {
	return new_(KindNotAllowedModification, http.StatusConflict, info)
}

// ExecutionFailed builds an ExecutionError: handler.execute failed; the
// caller is expected to record reason into the Request's Failed status.
func ExecutionFailed(reason string) *StationError {
	return new_(KindExecutionError, http.StatusUnprocessableEntity, reason)
}

// Adapter builds an AdapterError: an outbound call to a collaborator
// failed. retryable mirrors ledger.AdapterError.Retryable so the execution
// job can decide whether to re-attempt on the next tick.
func Adapter(info string, retryable bool, err error) *StationError {
	kind := KindAdapterError
	status := http.StatusBadGateway
	if !retryable {
		status = http.StatusUnprocessableEntity
	}
	return wrap(kind, status, info, err)
}

// Fatal builds a Fatal/Trap error: an invariant violation that halts the
// operation before the triggering write commits. A service call that
// returns it is rendered at the HTTP boundary as a 500.
func Fatal(info string, err error) *StationError {
	return wrap(KindFatal, http.StatusInternalServerError, info, err)
}

// As extracts a *StationError from an error chain.
func As(err error) (*StationError, bool) {
	var se *StationError
	ok := errors.As(err, &se)
	return se, ok
}

// HTTPStatus returns the HTTP status code for err, defaulting to 500 for
// anything that isn't a *StationError.
func HTTPStatus(err error) int {
	if se, ok := As(err); ok {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
