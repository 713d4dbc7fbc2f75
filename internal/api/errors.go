package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParse marks a payload that does not have the expected site overview
// shape. It is not transient; retrying will not help.
var ErrParse = errors.New("unexpected site payload")

// ParseError describes which part of the payload was wrong.
type ParseError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Field, e.Reason)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// Attempt is the result of one request to the site endpoint.
type Attempt struct {
	StatusCode int
	Body       string
	Err        error
}

func (a Attempt) ok() bool {
	return a.Err == nil && a.StatusCode == 200 && strings.Contains(a.Body, validPayloadMarker)
}

func (a Attempt) String() string {
	if a.Err != nil {
		return fmt.Sprintf("status %d, error %v", a.StatusCode, a.Err)
	}
	return fmt.Sprintf("status %d, body %q", a.StatusCode, truncate(a.Body, 200))
}

// FetchError is returned when both the first request and the retry with
// reseeded cookies were rejected. Usually the configured cookies have
// expired and need to be copied from a fresh browser session.
type FetchError struct {
	URL    string
	First  Attempt
	Second Attempt
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after cookie reseed: first: %s; retry: %s", e.URL, e.First, e.Second)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
