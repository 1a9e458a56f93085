package analysis

import (
	"errors"
	"net/http"
)

// ErrorKind names a terminal failure category of an analysis request.
type ErrorKind string

const (
	KindValidation     ErrorKind = "ValidationError"
	KindStartFailure   ErrorKind = "StartFailure"
	KindExitFailure    ErrorKind = "EngineExitFailure"
	KindMalformed      ErrorKind = "MalformedOutput"
	KindEngineReported ErrorKind = "EngineReportedFailure"
	KindTimeout        ErrorKind = "Timeout"
	KindCanceled       ErrorKind = "Canceled"
	KindInternal       ErrorKind = "InternalError"
)

// Error is the classified failure of one analysis request.
type Error struct {
	Kind    ErrorKind
	Message string
	Details string
	Raw     string // captured payload stream
	Stderr  string // captured diagnostic stream
	Err     error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return string(e.Kind) + ": " + e.Message + ": " + e.Details
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Envelope is the wire shape of a failed request.
type Envelope struct {
	ErrorKind ErrorKind `json:"errorKind"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Raw       string    `json:"raw,omitempty"`
	Stderr    string    `json:"stderr,omitempty"`
}

// Envelope renders the error for the caller. Raw output is only attached for
// exit and decode failures; validation errors never carry engine output.
func (e *Error) Envelope() Envelope {
	env := Envelope{
		ErrorKind: e.Kind,
		Message:   e.Message,
		Details:   e.Details,
	}
	switch e.Kind {
	case KindExitFailure, KindMalformed:
		env.Raw = e.Raw
	}
	if e.Kind != KindValidation {
		env.Stderr = e.Stderr
	}
	return env
}

// HTTPStatus maps the kind to the status code returned to the dashboard.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindStartFailure, KindCanceled:
		return http.StatusServiceUnavailable
	case KindExitFailure, KindMalformed:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AsError extracts the classified error from err, wrapping unknown errors
// so the caller still receives an envelope.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{
		Kind:    KindInternal,
		Message: "internal error",
		Details: err.Error(),
		Err:     err,
	}
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}
