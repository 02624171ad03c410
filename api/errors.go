package api

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated: log in first")
	ErrParse            = errors.New("could not parse server response")
)

// RejectedError is a domain failure: a non-2xx status or an envelope with isSuccess=false.
type RejectedError struct {
	Status  int
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	switch {
	case e.Message != "" && e.Code != "":
		return fmt.Sprintf("request rejected (%d %s): %s", e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("request rejected (%d): %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("request rejected (%d)", e.Status)
	}
}

// NetworkError wraps DNS, connection and timeout failures.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MessageOr returns the server-provided message of a rejection, or fallback.
func MessageOr(err error, fallback string) string {
	var rej *RejectedError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	return fallback
}
