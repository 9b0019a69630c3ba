package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Length limits for user supplied text.
const (
	MaxIdeaLength        = 4000
	MaxJobDescription    = 20000
	MaxChatMessages      = 50
	MaxChatMessageLength = 20000
	MaxFullName          = 100
	MaxHeadline          = 160
	MaxLocation          = 100
	MaxBio               = 2000
	MaxPhone             = 32
	MaxSkills            = 1000
	MaxURL               = 255
)

// ValidateLength checks that a trimmed value is between minLen and maxLen runes.
func ValidateLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < minLen {
		if minLen == 1 {
			return fmt.Errorf("%s is required", field)
		}
		return fmt.Errorf("%s must be at least %d characters", field, minLen)
	}
	if maxLen > 0 && n > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", field, maxLen)
	}
	return nil
}

// ValidateOptionalURL accepts an empty value or an absolute http(s) URL.
func ValidateOptionalURL(field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if len(value) > MaxURL {
		return fmt.Errorf("%s must not exceed %d characters", field, MaxURL)
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL", field)
	}
	return nil
}

// ValidateOneOf reports an error unless value is one of allowed.
func ValidateOneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s", field, strings.Join(allowed, ", "))
}
