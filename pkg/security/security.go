package security

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

// Limits
const (
	// MaxRecordIDLength is the maximum length for durable record IDs
	MaxRecordIDLength = 255

	// MaxAnswerLength is the maximum size in bytes for a stored answer (64KB)
	MaxAnswerLength = 64 << 10

	// MaxErrorMessageLength is the maximum length for job failure reasons
	MaxErrorMessageLength = 4096

	// MaxWriteAttempts is the hard limit for durable write attempts
	MaxWriteAttempts = 20

	// MaxCoalesceWindow is the longest allowed write coalescing window
	MaxCoalesceWindow = 10 * time.Second
)

// validRecordID matches alphanumeric, hyphens, underscores, dots and colons
var validRecordID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-\.:]*$`)

// ValidateRecordID validates a durable record ID
func ValidateRecordID(id string) error {
	if id == "" || len(id) > MaxRecordIDLength {
		return core.ErrInvalidRecordID
	}
	if !validRecordID.MatchString(id) {
		return core.ErrInvalidRecordID
	}
	return nil
}

// ValidateAnswer enforces the answer size limit
func ValidateAnswer(answer string) error {
	if len(answer) > MaxAnswerLength {
		return core.ErrAnswerTooLong
	}
	return nil
}

// SanitizeErrorMessage truncates and strips control characters from failure
// reasons before they are surfaced or stored
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampWriteAttempts ensures the write attempt count is within limits
func ClampWriteAttempts(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxWriteAttempts {
		return MaxWriteAttempts
	}
	return n
}

// ClampCoalesceWindow ensures the coalescing window is within limits
func ClampCoalesceWindow(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxCoalesceWindow {
		return MaxCoalesceWindow
	}
	return d
}
