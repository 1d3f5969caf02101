// Package validate holds the client-input error type shared by every entity
// service and small helpers for checking loosely typed request fields.
package validate

import (
	"errors"
	"fmt"
	"strings"
)

// Error is returned when a request is missing or carries malformed input.
// Handlers map it to 400.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Errorf builds an *Error.
func Errorf(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// IsError reports whether err is (or wraps) an *Error.
func IsError(err error) bool {
	var verr *Error
	return errors.As(err, &verr)
}

// Present reports whether fields[key] holds a non-empty value.
func Present(fields map[string]any, key string) bool {
	switch v := fields[key].(type) {
	case nil:
		return false
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	default:
		return true
	}
}

// Missing returns the keys that are not Present, in the order given.
func Missing(fields map[string]any, keys ...string) []string {
	var out []string
	for _, k := range keys {
		if !Present(fields, k) {
			out = append(out, k)
		}
	}
	return out
}

// Required returns an *Error listing the missing names, or nil when none are.
func Required(names ...string) error {
	switch len(names) {
	case 0:
		return nil
	case 1:
		return &Error{Message: names[0] + " is required"}
	default:
		return &Error{Message: strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1] + " are required"}
	}
}
