package gitsource

import (
	"fmt"
	"strings"
)

// Typed sync errors so callers can branch on the failure class without
// string matching.

type AuthError struct {
	Op  string
	URL string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op  string
	URL string
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err)
}
func (e *NotFoundError) Unwrap() error { return e.Err }

// classify wraps transport failures into typed variants when the error
// text identifies one. go-git surfaces these as plain errors, so string
// matching here keeps it out of every caller.
func classify(op, url string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "auth"), strings.Contains(l, "permission denied"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "not found"), strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	default:
		return fmt.Errorf("%s %s: %w", op, url, err)
	}
}
