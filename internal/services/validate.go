package services

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxContentLength is the content limit used when none is configured.
const DefaultMaxContentLength = 8000

// ValidationReason identifies which content rule was violated.
type ValidationReason string

const (
	ReasonEmpty   ValidationReason = "empty"
	ReasonTooLong ValidationReason = "too_long"
)

// ValidationError reports clip content that violates the content rules.
// It never corresponds to a storage mutation.
type ValidationError struct {
	Reason ValidationReason
	Limit  int // configured maximum, set for ReasonTooLong
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonTooLong:
		return fmt.Sprintf("content too long (> %d characters)", e.Limit)
	default:
		return "content must not be empty"
	}
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeContent converts CRLF and bare CR line endings to LF and trims
// surrounding whitespace, including the information separators. A nil input normalizes to the empty string.
func NormalizeContent(raw *string) string {
	if raw == nil {
		return ""
	}
	return strings.TrimFunc(lineEndings.Replace(*raw), isSpace)
}

// isSpace extends unicode.IsSpace with the ASCII information separators
// U+001C through U+001F.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// ValidateContent normalizes raw and checks it against the content rules.
// Length is measured in characters, not bytes.
func ValidateContent(raw *string, maxLength int) (string, error) {
	text := NormalizeContent(raw)
	if text == "" {
		return "", &ValidationError{Reason: ReasonEmpty}
	}
	if utf8.RuneCountInString(text) > maxLength {
		return "", &ValidationError{Reason: ReasonTooLong, Limit: maxLength}
	}
	return text, nil
}
