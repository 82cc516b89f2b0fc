package gord

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("gord: invalid login credentials")
	ErrCaptchaRejected    = errors.New("gord: captcha solution was not accepted")
	ErrAuthExhausted      = errors.New("gord: too many login attempts")
	ErrMissingToken       = errors.New("gord: could not find authenticity token")
)

// TransportError is a request to the site that failed or answered with a status other than 200.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gord: %s: %s", e.Endpoint, e.Err.Error())
	}
	return fmt.Sprintf("gord: %s: invalid statusCode: %d", e.Endpoint, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned once every login attempt has failed with a retryable cause.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s (%d attempts): last: %s", ErrAuthExhausted.Error(), e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrAuthExhausted, e.Last}
}
