package util

import (
	"strings"
	"unicode"

	"github.com/samber/oops"

	"go-account-service/internal/model"
)

const (
	maxUsernameRunes = 64
	maxFullNameRunes = 128
	maxEmailBytes    = 254
)

// NormalizeEmail trims, strips invisible characters and lower-cases an email
// address so that uniqueness is case-insensitive.
func NormalizeEmail(email string) (string, error) {
	cleaned := strings.ToLower(stripInvisible(strings.TrimSpace(email)))
	if cleaned == "" {
		return "", invalid("email", "email cannot be empty")
	}
	if len(cleaned) > maxEmailBytes {
		return "", invalid("email", "email is too long")
	}
	if strings.ContainsFunc(cleaned, unicode.IsSpace) {
		return "", invalid("email", "email cannot contain whitespace")
	}
	return cleaned, nil
}

// NormalizeUsername keeps the display casing but removes control and
// invisible characters that would let two usernames look identical.
func NormalizeUsername(username string) (string, error) {
	cleaned := strings.TrimSpace(stripInvisible(username))
	if cleaned == "" {
		return "", invalid("username", "username is invalid after sanitization")
	}
	if strings.ContainsFunc(cleaned, unicode.IsSpace) {
		return "", invalid("username", "username cannot contain whitespace")
	}
	if len([]rune(cleaned)) > maxUsernameRunes {
		return "", invalid("username", "username is too long")
	}
	return cleaned, nil
}

func NormalizeFullName(fullName string) (string, error) {
	cleaned := strings.Join(strings.Fields(stripInvisible(fullName)), " ")
	if cleaned == "" {
		return "", invalid("fullName", "full name is invalid after sanitization")
	}

	// Truncate by runes (not bytes) to avoid splitting multi-byte characters.
	runes := []rune(cleaned)
	if len(runes) > maxFullNameRunes {
		runes = runes[:maxFullNameRunes]
	}
	return strings.TrimSpace(string(runes)), nil
}

func stripInvisible(value string) string {
	builder := strings.Builder{}
	builder.Grow(len(value))

	for _, char := range value {
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}
		builder.WriteRune(char)
	}

	return builder.String()
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u200E', // Left-to-Right Mark
		'\u200F', // Right-to-Left Mark
		'\u2060', // Word Joiner
		'\uFEFF', // Zero-Width No-Break Space / BOM
		'\uFFF9', // Interlinear Annotation Anchor
		'\uFFFA', // Interlinear Annotation Separator
		'\uFFFB': // Interlinear Annotation Terminator
		return true
	}

	return unicode.Is(unicode.Cf, r)
}

func invalid(field string, message string) error {
	return oops.Code("VALIDATION").
		With("field", field).
		Wrapf(model.ErrValidation, "%s", message)
}
