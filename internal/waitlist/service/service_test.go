package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"waitlistd/internal/events"
	"waitlistd/internal/waitlist/crypto"
	"waitlistd/internal/waitlist/models"
	"waitlistd/internal/waitlist/store/memory"
	dErrors "waitlistd/pkg/domain-errors"
	"waitlistd/pkg/requestcontext"
)

const (
	anaEmailHash = "3f58eee84a822fd8b0b9962ea1898d664be22b203da2563224c0eed3a41dda91"
	anaPhoneHash = "77b893dbda6c2bdd78912cd7623c778a8fdb053e89c38690fd1e4375d52908d9"
)

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(event events.Event) {
	r.events = append(r.events, event)
}

type ServiceSuite struct {
	suite.Suite
	store   *memory.Store
	cipher  *crypto.Cipher
	emitter *recordingEmitter
	service *Service
	ctx     context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	cipher, err := crypto.NewCipher(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x24}, 32)))
	s.Require().NoError(err)
	s.cipher = cipher
	s.emitter = &recordingEmitter{}
	s.service = New(s.store, cipher, WithEvents(s.emitter))
	s.ctx = requestcontext.WithClientMetadata(context.Background(), "203.0.113.9",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func anaSubmission() models.RawSubmission {
	return models.RawSubmission{
		Name:   "Ana Maria",
		Email:  " ANA@Test.com ",
		Phone:  "(11) 91234-5678",
		Source: "instagram",
	}
}

func (s *ServiceSuite) TestAcceptedSubmission() {
	outcome, err := s.service.Submit(s.ctx, anaSubmission())
	s.Require().NoError(err)
	s.Equal(201, outcome.Status)
	s.NotEmpty(outcome.EntryID)
	s.Empty(outcome.Code)

	// Markers are keyed by hashes of the canonical values.
	marker, ok := s.store.Marker(models.MarkerKindEmail, anaEmailHash)
	s.Require().True(ok)
	s.Equal(outcome.EntryID, marker.WaitlistRef)
	_, ok = s.store.Marker(models.MarkerKindPhone, anaPhoneHash)
	s.True(ok)

	stored, err := s.store.ListEntries(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	entry := stored[0]

	s.Equal(anaEmailHash, entry.EmailHash)
	s.Equal(anaPhoneHash, entry.PhoneHash)
	s.Equal("203.0.113.9", entry.IP)
	s.NotEmpty(entry.Device)

	// Stored fields hold the canonical plaintext, recoverable only by key.
	email, err := s.cipher.Decrypt(entry.EmailEnc)
	s.Require().NoError(err)
	s.Equal("ana@test.com", email)
	phone, err := s.cipher.Decrypt(entry.PhoneEnc)
	s.Require().NoError(err)
	s.Equal("11912345678", phone)
	name, err := s.cipher.Decrypt(entry.NameEnc)
	s.Require().NoError(err)
	s.Equal("Ana Maria", name)
}

func (s *ServiceSuite) TestAcceptedSubmissionEmitsEvent() {
	ctx := requestcontext.WithRequestID(s.ctx, "req-123")
	outcome, err := s.service.Submit(ctx, anaSubmission())
	s.Require().NoError(err)

	s.Require().Len(s.emitter.events, 1)
	event := s.emitter.events[0]
	s.Equal(events.ActionSignup, event.Action)
	s.Equal(outcome.EntryID, event.EntryID)
	s.Equal(anaEmailHash, event.EmailHash)
	s.Equal(anaPhoneHash, event.PhoneHash)
	s.Equal("instagram", event.Source)
	s.Equal("req-123", event.RequestID)
}

func (s *ServiceSuite) TestResubmissionConflicts() {
	_, err := s.service.Submit(s.ctx, anaSubmission())
	s.Require().NoError(err)

	s.Run("same email", func() {
		again := anaSubmission()
		again.Phone = "(21) 98888-7777"
		outcome, err := s.service.Submit(s.ctx, again)
		s.Require().NoError(err)
		s.Equal(409, outcome.Status)
		s.Equal(models.CodeEmailExists, outcome.Code)
	})

	s.Run("same phone different email", func() {
		again := anaSubmission()
		again.Email = "other@test.com"
		outcome, err := s.service.Submit(s.ctx, again)
		s.Require().NoError(err)
		s.Equal(409, outcome.Status)
		s.Equal(models.CodePhoneExists, outcome.Code)
	})

	s.Run("email conflict wins over phone conflict", func() {
		outcome, err := s.service.Submit(s.ctx, anaSubmission())
		s.Require().NoError(err)
		s.Equal(models.CodeEmailExists, outcome.Code)
	})

	s.Run("conflicts do not emit events", func() {
		s.Len(s.emitter.events, 1)
	})

	count, err := s.store.CountEntries(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ServiceSuite) TestEmailVariantsCollide() {
	_, err := s.service.Submit(s.ctx, anaSubmission())
	s.Require().NoError(err)

	variant := anaSubmission()
	variant.Email = "Ana@TEST.com"
	variant.Phone = "(21) 98888-7777"
	outcome, err := s.service.Submit(s.ctx, variant)
	s.Require().NoError(err)
	s.Equal(models.CodeEmailExists, outcome.Code)
}

func (s *ServiceSuite) TestRejectedSubmissionWritesNothing() {
	outcome, err := s.service.Submit(s.ctx, models.RawSubmission{
		Name:  "A",
		Email: "nope",
		Phone: "123",
	})
	s.Require().NoError(err)
	s.Equal(400, outcome.Status)
	s.Equal(models.CodeValidationError, outcome.Code)
	s.Len(outcome.Errors, 3)

	count, err := s.store.CountEntries(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
	s.Empty(s.emitter.events)
}

func (s *ServiceSuite) TestHoneypotWritesNothing() {
	raw := anaSubmission()
	raw.Website = "https://spam.example"
	outcome, err := s.service.Submit(s.ctx, raw)
	s.Require().NoError(err)
	s.Equal(400, outcome.Status)
	s.Equal(models.CodeValidationError, outcome.Code)
	s.Contains(outcome.Errors, "contact")

	count, err := s.store.CountEntries(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ServiceSuite) TestStoreFailureIsInternal() {
	svc := New(failingStore{}, s.cipher)

	_, err := svc.Submit(s.ctx, anaSubmission())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestEntriesDecryptsStoredFields() {
	outcome, err := s.service.Submit(s.ctx, anaSubmission())
	s.Require().NoError(err)

	entries, err := s.service.Entries(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(outcome.EntryID, entries[0].ID)
	s.Equal("Ana Maria", entries[0].Name)
	s.Equal("ana@test.com", entries[0].Email)
	s.Equal("11912345678", entries[0].Phone)
	s.Equal("instagram", entries[0].Source)
}

type failingStore struct{}

func (failingStore) CreateEntry(context.Context, *models.WaitlistEntry) (string, error) {
	return "", errors.New("backend unavailable")
}

func (failingStore) ListEntries(context.Context, int) ([]*models.WaitlistEntry, error) {
	return nil, errors.New("backend unavailable")
}

func (failingStore) CountEntries(context.Context) (int, error) {
	return 0, errors.New("backend unavailable")
}

func (failingStore) Health(context.Context) error {
	return errors.New("backend unavailable")
}
