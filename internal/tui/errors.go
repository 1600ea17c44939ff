package tui

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the user quits an interactive run early.
var ErrCancelled = errors.New("cancelled")

// wrapErr formats an error with a contextual prefix.
func wrapErr(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
