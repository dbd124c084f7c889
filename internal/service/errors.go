// Package service holds the error kinds shared by the slots, users and
// booking services.
package service

import (
	"fmt"

	"doodle/backend/internal/store"
)

var (
	ErrUserNotFound    = fmt.Errorf("user %w", store.ErrNotFound)
	ErrSlotNotFound    = fmt.Errorf("slot %w", store.ErrNotFound)
	ErrMeetingNotFound = fmt.Errorf("meeting %w", store.ErrNotFound)
)

// ValidationError reports a malformed request.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func Validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// NotFound replaces a bare store.ErrNotFound with the more specific kind.
// Errors that already name what was missing pass through unchanged.
func NotFound(err, kind error) error {
	if err == nil {
		return nil
	}
	if err == store.ErrNotFound {
		return kind
	}
	return err
}
