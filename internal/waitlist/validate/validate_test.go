package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waitlistd/internal/waitlist/models"
)

func TestValidSubmissionCanonicalizes(t *testing.T) {
	result := Submission(models.RawSubmission{
		Name:   "  Ana Maria  ",
		Email:  " ANA@Test.com ",
		Phone:  "(11) 91234-5678",
		Source: " instagram ",
	})

	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
	assert.Equal(t, "Ana Maria", result.Record.Name)
	assert.Equal(t, "ana@test.com", result.Record.Email)
	assert.Equal(t, "11912345678", result.Record.Phone)
	assert.Equal(t, "instagram", result.Record.Source)
}

func TestPhoneFormatsCanonicalizeEqually(t *testing.T) {
	formats := []string{
		"(11) 91234-5678",
		"11912345678",
		"11 91234 5678",
		"+11-9-1234-5678",
	}
	for _, phone := range formats {
		result := Submission(models.RawSubmission{
			Name:  "Ana Maria",
			Email: "ana@test.com",
			Phone: phone,
		})
		require.True(t, result.Valid, "phone %q should validate", phone)
		assert.Equal(t, "11912345678", result.Record.Phone, "phone %q", phone)
	}
}

func TestFieldRules(t *testing.T) {
	cases := []struct {
		name    string
		raw     models.RawSubmission
		field   string
		message string
	}{
		{
			name:    "missing name",
			raw:     models.RawSubmission{Email: "ana@test.com", Phone: "11912345678"},
			field:   "name",
			message: "name is required",
		},
		{
			name:    "whitespace-only name",
			raw:     models.RawSubmission{Name: "   ", Email: "ana@test.com", Phone: "11912345678"},
			field:   "name",
			message: "name is required",
		},
		{
			name:    "name too short",
			raw:     models.RawSubmission{Name: "A", Email: "ana@test.com", Phone: "11912345678"},
			field:   "name",
			message: "name must have at least 2 characters",
		},
		{
			name:    "one-character multi-byte name",
			raw:     models.RawSubmission{Name: "É", Email: "ana@test.com", Phone: "11912345678"},
			field:   "name",
			message: "name must have at least 2 characters",
		},
		{
			name:    "missing email",
			raw:     models.RawSubmission{Name: "Ana Maria", Phone: "11912345678"},
			field:   "email",
			message: "email is required",
		},
		{
			name:    "email without tld",
			raw:     models.RawSubmission{Name: "Ana Maria", Email: "ana@test", Phone: "11912345678"},
			field:   "email",
			message: "email is invalid",
		},
		{
			name:    "email with short tld",
			raw:     models.RawSubmission{Name: "Ana Maria", Email: "ana@test.c", Phone: "11912345678"},
			field:   "email",
			message: "email is invalid",
		},
		{
			name:    "email with spaces",
			raw:     models.RawSubmission{Name: "Ana Maria", Email: "ana maria@test.com", Phone: "11912345678"},
			field:   "email",
			message: "email is invalid",
		},
		{
			name:    "missing phone",
			raw:     models.RawSubmission{Name: "Ana Maria", Email: "ana@test.com"},
			field:   "phone",
			message: "phone is required",
		},
		{
			name:    "phone too short",
			raw:     models.RawSubmission{Name: "Ana Maria", Email: "ana@test.com", Phone: "123"},
			field:   "phone",
			message: "phone must be in the format (99) 99999-9999",
		},
		{
			name:    "phone too long",
			raw:     models.RawSubmission{Name: "Ana Maria", Email: "ana@test.com", Phone: "119123456789"},
			field:   "phone",
			message: "phone must be in the format (99) 99999-9999",
		},
		{
			name:    "phone all punctuation",
			raw:     models.RawSubmission{Name: "Ana Maria", Email: "ana@test.com", Phone: "()- "},
			field:   "phone",
			message: "phone must be in the format (99) 99999-9999",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Submission(tc.raw)
			require.False(t, result.Valid)
			assert.Equal(t, tc.message, result.Errors[tc.field])
		})
	}
}

func TestTwoRuneNameIsValid(t *testing.T) {
	result := Submission(models.RawSubmission{Name: "Zé", Email: "ana@test.com", Phone: "11912345678"})
	require.True(t, result.Valid)
	assert.Equal(t, "Zé", result.Record.Name)
}

func TestErrorsAreCollectedNotShortCircuited(t *testing.T) {
	result := Submission(models.RawSubmission{})

	require.False(t, result.Valid)
	assert.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors, "name")
	assert.Contains(t, result.Errors, "email")
	assert.Contains(t, result.Errors, "phone")
}

func TestHoneypotRejectsValidSubmission(t *testing.T) {
	result := Submission(models.RawSubmission{
		Name:    "Ana Maria",
		Email:   "ana@test.com",
		Phone:   "11912345678",
		Website: "https://spam.example",
	})

	require.False(t, result.Valid)
	// The error lands on a field the real form never renders.
	assert.Equal(t, "could not complete the sign-up right now", result.Errors["contact"])
	assert.NotContains(t, result.Errors, "website")
}

func TestInvalidDistinctFromAbsent(t *testing.T) {
	absent := Submission(models.RawSubmission{Name: "Ana Maria"})
	assert.Equal(t, "email is required", absent.Errors["email"])
	assert.Equal(t, "", absent.Record.Email)

	invalid := Submission(models.RawSubmission{Name: "Ana Maria", Email: "nope", Phone: "123"})
	assert.Equal(t, "email is invalid", invalid.Errors["email"])
	assert.Equal(t, models.Invalid, invalid.Record.Email)
	assert.Equal(t, models.Invalid, invalid.Record.Phone)
}
