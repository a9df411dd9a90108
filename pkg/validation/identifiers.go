// Package validation checks user-supplied names before they reach the
// keyring or a child process environment.
package validation

// MaxIdentifierLen bounds credential reference names.
const MaxIdentifierLen = 128

// IsValidIdentifierChar reports whether ch may appear in a credential
// reference: ASCII letters, digits, hyphen or underscore.
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// IsValidIdentifier reports whether s is a usable credential reference.
// References must start with a letter.
func IsValidIdentifier(s string) bool {
	if s == "" || len(s) > MaxIdentifierLen {
		return false
	}
	for i, ch := range s {
		if i == 0 && !isLetter(ch) {
			return false
		}
		if !IsValidIdentifierChar(ch) {
			return false
		}
	}
	return true
}

// IsValidEnvName reports whether s is a portable environment variable name:
// letters, digits and underscores, not starting with a digit.
func IsValidEnvName(s string) bool {
	if s == "" {
		return false
	}
	for i, ch := range s {
		switch {
		case isLetter(ch), ch == '_':
		case ch >= '0' && ch <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func isLetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
