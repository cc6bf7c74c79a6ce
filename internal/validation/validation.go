// Package validation holds input rules shared by services and handlers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxBotName        = 50
	MaxBotDescription = 500
	MaxTitle          = 200
	MaxDreamContent   = 10000
	MaxTags           = 10
	MaxTagLength      = 30
	MaxComment        = 2000
	MaxRequestDesc    = 2000
	MaxResponse       = 5000
	MaxFeedback       = 2000
	MaxDonationNote   = 500
	MaxDisplayName    = 50
	MaxBio            = 500
	MaxEmail          = 254
	MinPassword       = 8
	MaxPassword       = 128

	DefaultLimit = 20
	MaxLimit     = 50
)

var botNameRegex = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// ValidateBotName checks the public bot name.
func ValidateBotName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(name) > MaxBotName {
		return fmt.Errorf("name must be a string of %d characters or less", MaxBotName)
	}
	if !botNameRegex.MatchString(name) {
		return fmt.Errorf("name can only contain letters, numbers, spaces, hyphens, and underscores")
	}
	return nil
}

// ValidateLength requires value to hold between min and max characters.
// min of zero makes the field optional.
func ValidateLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if min > 0 && n == 0 {
		return fmt.Errorf("%s is required", field)
	}
	if n < min {
		return fmt.Errorf("%s must be at least %d characters", field, min)
	}
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%s must be %d characters or less", field, max)
	}
	return nil
}

// NormalizeTags lowercases and trims tags, drops empties and duplicates
// and enforces the count and length limits.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		if utf8.RuneCountInString(name) > MaxTagLength {
			return nil, fmt.Errorf("tag %q must be %d characters or less", name, MaxTagLength)
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) > MaxTags {
		return nil, fmt.Errorf("a dream can have at most %d tags", MaxTags)
	}
	return out, nil
}

// NormalizeEmail lowercases and trims email and checks its basic shape.
func NormalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return "", fmt.Errorf("email is required")
	}
	if len(e) > MaxEmail {
		return "", fmt.Errorf("email must be %d characters or less", MaxEmail)
	}
	at := strings.Index(e, "@")
	if at <= 0 || at == len(e)-1 || strings.Count(e, "@") != 1 || strings.ContainsAny(e, " \t\r\n") {
		return "", fmt.Errorf("a valid email is required")
	}
	return e, nil
}

// ValidatePassword enforces the password length bounds.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPassword {
		return fmt.Errorf("password must be at least %d characters", MinPassword)
	}
	if n > MaxPassword {
		return fmt.Errorf("password must be %d characters or less", MaxPassword)
	}
	return nil
}

// Page clamps page and limit to the accepted ranges.
func Page(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
