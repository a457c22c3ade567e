package internal

import (
	"strings"
	"unicode/utf8"
)

// ForbiddenCharacters are stripped from every identifier before validation.
const ForbiddenCharacters = `/()"<>\{}`

// MaxNameLength is the longest accepted identifier, in characters.
const MaxNameLength = 256

var forbiddenReplacer = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len(ForbiddenCharacters))
	for _, c := range ForbiddenCharacters {
		pairs = append(pairs, string(c), "")
	}
	return strings.NewReplacer(pairs...)
}()

// Sanitize removes all forbidden characters from s. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	return forbiddenReplacer.Replace(s)
}

// ValidName is a sanitized, non-blank identifier of bounded length.
type ValidName struct {
	value string
}

// NewValidName sanitizes raw and validates the result. field names the record
// field in the returned ValidationError.
func NewValidName(field, raw string) (ValidName, error) {
	value := Sanitize(raw)
	if strings.TrimSpace(value) == "" {
		return ValidName{}, &ValidationError{Field: field, Value: raw, Reason: "is empty after removing forbidden characters"}
	}
	if utf8.RuneCountInString(value) > MaxNameLength {
		return ValidName{}, &ValidationError{Field: field, Value: raw, Reason: "is longer than 256 characters"}
	}
	return ValidName{value: value}, nil
}

func (n ValidName) ToString() string {
	return n.value
}
