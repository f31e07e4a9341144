package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput means the submitted text was empty after trimming.
	ErrEmptyInput = errors.New("empty input")
	// ErrServiceUnreachable means no response was received from the analysis service.
	ErrServiceUnreachable = errors.New("service unreachable")
	// ErrServiceError means the service answered with a non-2xx status.
	ErrServiceError = errors.New("service error")
	// ErrMalformedResponse means a 2xx body could not be parsed into a Result.
	ErrMalformedResponse = errors.New("malformed response")
)

// Failure is the terminal error of one submission.
type Failure struct {
	Kind   error
	Status int
	Cause  error
}

// NewFailure builds a Failure of the given kind.
func NewFailure(kind error, cause error) *Failure {
	return &Failure{Kind: kind, Cause: cause}
}

// StatusFailure builds a ServiceError failure for an HTTP status code.
func StatusFailure(status int) *Failure {
	return &Failure{Kind: ErrServiceError, Status: status}
}

// Reason is the short machine-readable code shown in Failed states.
func (f *Failure) Reason() string {
	switch f.Kind {
	case ErrEmptyInput:
		return "empty_input"
	case ErrServiceUnreachable:
		return "service_unreachable"
	case ErrServiceError:
		return fmt.Sprintf("ServiceError(%d)", f.Status)
	case ErrMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Message is a single human-readable sentence for the operator.
func (f *Failure) Message() string {
	switch f.Kind {
	case ErrEmptyInput:
		return "please enter a log to analyze"
	case ErrServiceUnreachable:
		return "analysis service unreachable"
	case ErrServiceError:
		return fmt.Sprintf("analysis service returned error status %d", f.Status)
	case ErrMalformedResponse:
		return "analysis service returned a malformed response"
	default:
		return "analysis failed"
	}
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Message(), f.Cause)
	}
	return f.Message()
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (f *Failure) Unwrap() []error {
	if f.Cause != nil {
		return []error{f.Kind, f.Cause}
	}
	return []error{f.Kind}
}
