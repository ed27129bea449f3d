package loginform

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenNotFound is wrapped by a ParseError when the login page has no anti-forgery token.
	ErrTokenNotFound = errors.New("anti-forgery token not found")
	// ErrLoginFailed is returned by a LoginCheck that decided the session is not authenticated.
	ErrLoginFailed = errors.New("login failed")
)

// NetworkError is a transport level failure (dns, refused connection, timeout, cancellation).
type NetworkError struct {
	Op  string
	Url string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Url, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError means a structural query over a fetched document did not yield what was required.
type ParseError struct {
	Query string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Query, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// HttpStatusError is only produced in strict status mode.
type HttpStatusError struct {
	Op         string
	Url        string
	StatusCode int
}

func (e *HttpStatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.Url, e.StatusCode)
}
