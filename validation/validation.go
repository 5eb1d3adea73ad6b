package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// Violations maps a field name to a violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records code for field unless the field already has a violation.
func (v Violations) Add(field, code string) {
	if _, exists := v[field]; !exists {
		v[field] = code
	}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func RequiredID(field string, id uint, v Violations) {
	if id == 0 {
		v.Add(field, "required")
	}
}

func Email(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != strings.TrimSpace(value) {
		v.Add(field, "invalid_email")
	}
}

func MinLength(field, value string, n int, v Violations) {
	if value != "" && len([]rune(value)) < n {
		v.Add(field, "too_short")
	}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Slug accepts lowercase letters, digits and dashes.
func Slug(field, value string, v Violations) {
	if value != "" && !slugPattern.MatchString(value) {
		v.Add(field, "invalid_slug")
	}
}

func OneOf[T ~string](field string, value T, allowed []T, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.Add(field, "invalid_choice")
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date accepts an empty value or a YYYY-MM-DD date.
func Date(field, value string, v Violations) {
	if value == "" {
		return
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		v.Add(field, "invalid_date")
	}
}

func PositiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v.Add(field, "must_be_positive")
	}
}
