package anticaptcha

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidImage is returned by Solve when the payload is not binary image data.
	ErrInvalidImage = errors.New("anticaptcha: invalid image provided")
	// ErrTimeout is the failure cause of a task whose automatic checks ran out while the service was
	// still processing.
	ErrTimeout = errors.New("anticaptcha: task timed out")
	// ErrNotSubmitted is returned when an operation needs the service's task id but the task never
	// received one.
	ErrNotSubmitted = errors.New("anticaptcha: task was never submitted")
)

// ServiceError is a response of the solving service carrying a non-zero errorId.
type ServiceError struct {
	Endpoint         string
	ErrorId          int
	ErrorCode        string
	ErrorDescription string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf(
		"anticaptcha: %s: service error %d (%s): %s",
		e.Endpoint, e.ErrorId, e.ErrorCode, e.ErrorDescription,
	)
}

// TransportError is a failure to talk to the solving service at all: a socket error, a non-200 status
// or an undecodable body.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("anticaptcha: %s: %s", e.Endpoint, e.Err.Error())
	}
	return fmt.Sprintf("anticaptcha: %s: invalid statusCode: %d", e.Endpoint, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a task failure may go away by submitting the image again: service side
// errors and timeouts are, transport failures and invalid input are not.
func Retryable(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr) || errors.Is(err, ErrTimeout)
}
