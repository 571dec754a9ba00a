// Package validate canonicalizes and validates raw form input. Everything
// here is pure: no clock, no I/O, no store access, so the same rules can run
// before and independent of any network call.
package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"waitlistd/internal/waitlist/models"
)

// Loose RFC shape: local@domain.tld with a tld of at least two characters.
// Deliberately permissive; the point is catching typos, not full RFC 5322.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

var nonDigits = regexp.MustCompile(`\D`)

// phoneDigits is the exact digit count accepted: two-digit area code plus
// nine-digit mobile number.
const phoneDigits = 11

// Result carries the canonical record together with every rule violation.
// Rules are applied independently; errors are collected, not short-circuited.
type Result struct {
	Valid  bool
	Errors map[string]string
	Record models.CanonicalRecord
}

// Submission canonicalizes raw input and applies all field rules. The record
// is built even when invalid; callers must check Valid before using it.
func Submission(raw models.RawSubmission) Result {
	errs := make(map[string]string)

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		errs["name"] = "name is required"
	} else if utf8.RuneCountInString(name) < 2 {
		errs["name"] = "name must have at least 2 characters"
	}

	email := canonicalEmail(raw.Email)
	if strings.TrimSpace(raw.Email) == "" {
		errs["email"] = "email is required"
	} else if email == models.Invalid {
		errs["email"] = "email is invalid"
	}

	phone := canonicalPhone(raw.Phone)
	if strings.TrimSpace(raw.Phone) == "" {
		errs["phone"] = "phone is required"
	} else if phone == models.Invalid {
		errs["phone"] = "phone must be in the format (99) 99999-9999"
	}

	website := strings.TrimSpace(raw.Website)
	if website != "" {
		// Honeypot tripped. A generic message on a field the form does not
		// render keeps the trap invisible to the bot.
		errs["contact"] = "could not complete the sign-up right now"
	}

	return Result{
		Valid:  len(errs) == 0,
		Errors: errs,
		Record: models.CanonicalRecord{
			Name:    name,
			Email:   email,
			Phone:   phone,
			Website: website,
			Source:  strings.TrimSpace(raw.Source),
		},
	}
}

// canonicalEmail lowercases and trims, returning "" for absent input and
// models.Invalid for input that fails the pattern.
func canonicalEmail(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return ""
	}
	if !emailPattern.MatchString(value) {
		return models.Invalid
	}
	return value
}

// canonicalPhone strips all non-digit characters, returning "" for absent
// input and models.Invalid for any digit count other than phoneDigits.
func canonicalPhone(raw string) string {
	value := nonDigits.ReplaceAllString(raw, "")
	if value == "" && strings.TrimSpace(raw) == "" {
		return ""
	}
	if len(value) != phoneDigits {
		return models.Invalid
	}
	return value
}
