package domain

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// iriForbidden are the characters that may not appear inside <...> in a
// SPARQL IRI reference.
const iriForbidden = "<>\"{}|^`\\"

// ValidateIdentifier checks that id is an absolute http(s) IRI with a host
// that can be embedded as an IRI reference.
func ValidateIdentifier(id string) error {
	if id == "" {
		return NewValidationError("identifier", id, ErrInvalidIdentifier)
	}
	if !utf8.ValidString(id) {
		return NewValidationError("identifier", id, ErrInvalidIdentifier)
	}
	for _, r := range id {
		if r <= 0x20 || strings.ContainsRune(iriForbidden, r) {
			return NewValidationError("identifier", id, ErrInvalidIdentifier)
		}
	}
	u, err := url.Parse(id)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewValidationError("identifier", id, ErrInvalidIdentifier)
	}
	return nil
}

// ValidateName checks an organization name before it is sent to a resolver.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || !utf8.ValidString(name) {
		return NewValidationError("name", name, ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return NewValidationError("name", name, ErrInvalidName)
		}
	}
	return nil
}
