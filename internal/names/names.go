// Package names validates display names and censors chat text. The
// profanity filter is a black box; everything else is local policy.
package names

import (
	"errors"
	"strings"
	"unicode"

	goaway "github.com/TwiN/go-away"
)

var (
	ErrEmpty      = errors.New("name is empty")
	ErrWhitespace = errors.New("names cannot contain spaces")
	ErrProfane    = errors.New("name is not allowed")
)

// Validate checks a display name for local legality. Uniqueness within a
// lobby is the session's concern, not ours.
func Validate(name string) error {
	if name == "" {
		return ErrEmpty
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return ErrWhitespace
	}
	if goaway.IsProfane(name) {
		return ErrProfane
	}
	return nil
}

// Censor returns the text with profanity masked. Clean text comes back
// unchanged.
func Censor(text string) string {
	if goaway.IsProfane(text) {
		return goaway.Censor(text)
	}
	return text
}
