package models

import (
	"net/http"
	"time"

	"waitlistd/internal/waitlist/crypto"
)

// Invalid marks a canonical email or phone that was present in the raw input
// but failed canonicalization. It is distinct from "" (absent) so validation
// can report "required" and "invalid" separately.
const Invalid = "\x00invalid"

// Marker kinds for the two indexed attributes.
const (
	MarkerKindEmail = "email"
	MarkerKindPhone = "phone"
)

// Response codes surfaced to callers.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeEmailExists      = "EMAIL_EXISTS"
	CodePhoneExists      = "PHONE_EXISTS"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimited      = "RATE_LIMITED"
)

// RawSubmission is the untrusted request body as received from the public
// form. Website is a honeypot field hidden from humans.
type RawSubmission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Source  string `json:"source"`
}

// CanonicalRecord is the normalized form of one submission attempt. Built
// once per attempt, immutable, never persisted directly.
//
// Email is lowercased and trimmed; Phone is digits only. Both use "" for
// absent input and the Invalid sentinel for input that failed its rule.
type CanonicalRecord struct {
	Name    string
	Email   string
	Phone   string
	Website string
	Source  string
}

// WaitlistEntry is the persisted record of one accepted submission. Created
// exactly once, never mutated. Plaintext fields exist only in encrypted form;
// hashes exist only for uniqueness lookups.
type WaitlistEntry struct {
	ID        string
	CreatedAt time.Time
	IP        string
	UserAgent string
	Device    string
	Source    string
	EmailHash string
	PhoneHash string
	NameEnc   crypto.EncryptedField
	EmailEnc  crypto.EncryptedField
	PhoneEnc  crypto.EncryptedField
}

// UniquenessMarker reserves one indexed attribute value. At most one marker
// ever exists per (kind, hash) pair; the store enforces this transactionally.
type UniquenessMarker struct {
	Type        string
	Hash        string
	WaitlistRef string
	CreatedAt   time.Time
}

// MarkerKey builds the store key for a marker: "<kind>_<hash>".
func MarkerKey(kind, hash string) string {
	return kind + "_" + hash
}

// SubmitOutcome is the typed result of one submission attempt. Conflicts and
// validation failures are outcomes, not errors, so handler branching stays
// explicit and exhaustive; only unexpected failures travel as errors.
type SubmitOutcome struct {
	Status  int
	Code    string
	EntryID string
	Errors  map[string]string
}

// Accepted builds the success outcome.
func Accepted(entryID string) SubmitOutcome {
	return SubmitOutcome{Status: http.StatusCreated, EntryID: entryID}
}

// Rejected builds the validation failure outcome.
func Rejected(errors map[string]string) SubmitOutcome {
	return SubmitOutcome{Status: http.StatusBadRequest, Code: CodeValidationError, Errors: errors}
}

// Conflicted builds a duplicate-identity outcome for the given code.
func Conflicted(code string) SubmitOutcome {
	return SubmitOutcome{Status: http.StatusConflict, Code: code}
}

// DecryptedEntry is the operator-facing view of an entry with its fields
// decrypted. It never leaves the admin surface.
type DecryptedEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Source    string    `json:"source,omitempty"`
	Device    string    `json:"device,omitempty"`
}
