package services

import (
	"strings"
	"testing"
)

func strptr(s string) *string { return &s }

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name string
		raw  *string
		want string
	}{
		{"nil", nil, ""},
		{"plain", strptr("hello"), "hello"},
		{"trims", strptr("  \thello\n "), "hello"},
		{"crlf", strptr("a\r\nb"), "a\nb"},
		{"bare cr", strptr("a\rb"), "a\nb"},
		{"mixed endings", strptr("line1\r\nline2\r"), "line1\nline2"},
		{"inner whitespace kept", strptr("a  \n\n  b"), "a  \n\n  b"},
		{"blank", strptr("\r\n \r"), ""},
		{"information separators", strptr("\x1c\x1dhi\x1e\x1f"), "hi"},
		{"unicode spaces", strptr("\u00a0\u2003hi\u3000"), "hi"},
		{"inner separator kept", strptr("a\x1fb"), "a\x1fb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeContent(tt.raw); got != tt.want {
				t.Errorf("NormalizeContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name       string
		raw        *string
		max        int
		want       string
		wantReason ValidationReason
	}{
		{"ok", strptr(" hi "), 10, "hi", ""},
		{"nil", nil, 10, "", ReasonEmpty},
		{"whitespace", strptr(" \n\t"), 10, "", ReasonEmpty},
		{"unit separator only", strptr("\x1f"), 10, "", ReasonEmpty},
		{"vertical tab and form feed", strptr("\v\f"), 10, "", ReasonEmpty},
		{"exact", strptr("abc"), 3, "abc", ""},
		{"over", strptr("abcd"), 3, "", ReasonTooLong},
		{"runes not bytes", strptr("日本語"), 3, "日本語", ""},
		{"measured after trim", strptr(strings.Repeat(" ", 20) + "ab"), 2, "ab", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateContent(tt.raw, tt.max)
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("ValidateContent() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("ValidateContent() = %q, want %q", got, tt.want)
				}
				return
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("ValidateContent() error = %v, want *ValidationError", err)
			}
			if verr.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", verr.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	tooLong := &ValidationError{Reason: ReasonTooLong, Limit: 8000}
	if got, want := tooLong.Error(), "content too long (> 8000 characters)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	empty := &ValidationError{Reason: ReasonEmpty}
	if got, want := empty.Error(), "content must not be empty"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
