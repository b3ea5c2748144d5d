package valueobject

import "regexp"

var eanPattern = regexp.MustCompile(`^[0-9]{13}$`)

// EAN is a 13-digit physical product identifier
type EAN string

// IsValidEAN reports whether s is exactly 13 digits. Nothing is trimmed or
// normalized.
func IsValidEAN(s string) bool {
	return eanPattern.MatchString(s)
}

// String returns the EAN digits
func (e EAN) String() string {
	return string(e)
}
