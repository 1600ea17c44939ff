package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/feedscout/internal/feed"
)

// StatusKind indicates severity for status lines.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusWarn
	StatusError
)

func (k StatusKind) Style() lipgloss.Style {
	switch k {
	case StatusSuccess:
		return StatusSuccessStyle
	case StatusWarn:
		return StatusWarnStyle
	case StatusError:
		return StatusErrorStyle
	default:
		return StatusInfoStyle
	}
}

// KindOf maps a validation outcome to a severity. A run waiting on the
// user's choice is a warning, not a failure.
func KindOf(res *feed.ValidationResult) StatusKind {
	switch {
	case res == nil:
		return StatusInfo
	case res.IsValid:
		return StatusSuccess
	case res.RequiresUserSelection:
		return StatusWarn
	default:
		return StatusError
	}
}
