package analysis

import "strings"

// Validate trims text and rejects it when nothing is left.
// The caller's draft is untouched; the trimmed value is what goes downstream.
func Validate(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyInput
	}
	return trimmed, nil
}
