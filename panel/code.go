package panel

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const AccessCodeLength = 6

// AccessCode addresses a single panel. It is always AccessCodeLength
// characters and upper case.
type AccessCode string

// ParseAccessCode accepts any valid UTF-8 string of exactly six characters,
// without trimming, and upper-cases it.
func ParseAccessCode(raw string) (AccessCode, error) {
	if err := checkLength(raw); err != nil {
		return "", err
	}
	return AccessCode(strings.ToUpper(raw)), nil
}

func checkLength(raw string) error {
	if !utf8.ValidString(raw) {
		return &ValidationError{Field: "access code", Reason: "must be valid UTF-8"}
	}
	if n := utf8.RuneCountInString(raw); n != AccessCodeLength {
		return &ValidationError{
			Field:  "access code",
			Reason: fmt.Sprintf("must contain %d characters, received %d", AccessCodeLength, n),
		}
	}
	return nil
}

// validate rejects codes that did not come from ParseAccessCode.
func (c AccessCode) validate() error {
	if err := checkLength(string(c)); err != nil {
		return err
	}
	if string(c) != strings.ToUpper(string(c)) {
		return &ValidationError{Field: "access code", Reason: "must be upper case"}
	}
	return nil
}

func (c AccessCode) String() string {
	return string(c)
}

// ResolveTopic returns the configuration topic a panel listens on.
func ResolveTopic(code AccessCode) string {
	return "service/" + string(code) + "/configuration"
}
