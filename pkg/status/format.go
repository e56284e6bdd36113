package status

import (
	"fmt"
	"path/filepath"
)

// FileFormatter defines how moves and progress are worded in the log
type FileFormatter interface {
	// FormatMove formats the outcome of one member move
	FormatMove(from, to string, status FileStatus) string

	// FormatProgress formats a progress message for the named operation
	FormatProgress(operation string, current, total int) string

	// FormatError formats an error message
	FormatError(err error) string
}

// DefaultFileFormatter provides a default implementation of FileFormatter
type DefaultFileFormatter struct{}

// NewDefaultFileFormatter creates a new DefaultFileFormatter
func NewDefaultFileFormatter() *DefaultFileFormatter {
	return &DefaultFileFormatter{}
}

// FormatMove formats a member move with emojis
func (f *DefaultFileFormatter) FormatMove(from, to string, status FileStatus) string {
	switch status {
	case StatusMoved:
		return fmt.Sprintf("📦 Moved %s → %s", filepath.Base(from), to)
	case StatusReverted:
		return fmt.Sprintf("↩️  Restored %s", from)
	case StatusSkipped:
		return fmt.Sprintf("⏭️  Skipped %s", from)
	case StatusFailed:
		return fmt.Sprintf("❌ Failed %s", from)
	default:
		return fmt.Sprintf("⏳ Pending %s", from)
	}
}

// FormatProgress formats a progress message with percentage
func (f *DefaultFileFormatter) FormatProgress(operation string, current, total int) string {
	var percentage float64
	if total == 0 {
		percentage = 0
		if current > 0 {
			percentage = 100
		}
	} else {
		percentage = float64(current) / float64(total) * 100
	}

	if current >= total {
		return fmt.Sprintf("✅ %s: %d/%d (%.0f%%)", operation, current, total, percentage)
	}
	return fmt.Sprintf("⏳ %s: %d/%d (%.0f%%)", operation, current, total, percentage)
}

// FormatError formats an error message with emoji
func (f *DefaultFileFormatter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("❌ Error: %v", err)
}
