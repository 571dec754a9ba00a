// Package service coordinates one submission attempt end to end: validate,
// hash, encrypt, persist. Ordering matters and is fixed: validation runs
// before any store access, uniqueness is decided by the store inside one
// atomic unit, and nothing is persisted on any failure path.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"waitlistd/internal/events"
	"waitlistd/internal/platform/metrics"
	"waitlistd/internal/waitlist/crypto"
	"waitlistd/internal/waitlist/models"
	"waitlistd/internal/waitlist/store"
	"waitlistd/internal/waitlist/validate"
	dErrors "waitlistd/pkg/domain-errors"
	"waitlistd/pkg/requestcontext"
)

var tracer = otel.Tracer("waitlistd/internal/waitlist/service")

// EventEmitter is satisfied by events.Emitter. Emission is fire-and-forget;
// the coordinator never waits on the stream.
type EventEmitter interface {
	Emit(event events.Event)
}

type Service struct {
	store   store.Store
	cipher  *crypto.Cipher
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  EventEmitter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(emitter EventEmitter) Option {
	return func(s *Service) { s.events = emitter }
}

func New(st store.Store, cipher *crypto.Cipher, opts ...Option) *Service {
	s := &Service{
		store:  st,
		cipher: cipher,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit processes one sign-up attempt and returns a typed outcome for every
// expected path: accepted, rejected by validation, or conflicting with an
// existing entry. Only unexpected failures (store, cipher) return an error,
// and on those paths nothing has been persisted.
func (s *Service) Submit(ctx context.Context, raw models.RawSubmission) (models.SubmitOutcome, error) {
	ctx, span := tracer.Start(ctx, "waitlist.submit")
	defer span.End()

	result := validate.Submission(raw)
	if !result.Valid {
		if s.metrics != nil {
			s.metrics.IncrementValidationFailure()
		}
		span.SetAttributes(attribute.String("outcome", "rejected"))
		return models.Rejected(result.Errors), nil
	}

	record := result.Record
	emailHash := crypto.Hash(record.Email)
	phoneHash := crypto.Hash(record.Phone)

	entry, err := s.buildEntry(ctx, record, emailHash, phoneHash)
	if err != nil {
		return models.SubmitOutcome{}, err
	}

	id, err := s.store.CreateEntry(ctx, entry)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrEmailTaken):
		if s.metrics != nil {
			s.metrics.IncrementConflict(models.MarkerKindEmail)
		}
		span.SetAttributes(attribute.String("outcome", "conflict_email"))
		return models.Conflicted(models.CodeEmailExists), nil
	case errors.Is(err, store.ErrPhoneTaken):
		if s.metrics != nil {
			s.metrics.IncrementConflict(models.MarkerKindPhone)
		}
		span.SetAttributes(attribute.String("outcome", "conflict_phone"))
		return models.Conflicted(models.CodePhoneExists), nil
	default:
		return models.SubmitOutcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist sign-up")
	}

	if s.metrics != nil {
		s.metrics.IncrementAccepted()
	}
	span.SetAttributes(
		attribute.String("outcome", "accepted"),
		attribute.String("entry_id", id),
	)
	s.logger.InfoContext(ctx, "sign-up accepted",
		"entry_id", id,
		"email_hash", emailHash,
		"phone_hash", phoneHash,
		"source", record.Source,
	)

	if s.events != nil {
		s.events.Emit(events.Event{
			Action:    events.ActionSignup,
			EntryID:   id,
			EmailHash: emailHash,
			PhoneHash: phoneHash,
			Source:    record.Source,
			RequestID: requestcontext.RequestID(ctx),
			Timestamp: requestcontext.Now(ctx),
		})
	}

	return models.Accepted(id), nil
}

// buildEntry encrypts the three personal fields and assembles the entry from
// request-scoped metadata. Plaintext stops existing past this point.
func (s *Service) buildEntry(ctx context.Context, record models.CanonicalRecord, emailHash, phoneHash string) (*models.WaitlistEntry, error) {
	nameEnc, err := s.cipher.Encrypt(record.Name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encrypt name")
	}
	emailEnc, err := s.cipher.Encrypt(record.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encrypt email")
	}
	phoneEnc, err := s.cipher.Encrypt(record.Phone)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encrypt phone")
	}

	ua := requestcontext.UserAgent(ctx)
	return &models.WaitlistEntry{
		CreatedAt: requestcontext.Now(ctx),
		IP:        requestcontext.ClientIP(ctx),
		UserAgent: ua,
		Device:    deviceSummary(ua),
		Source:    record.Source,
		EmailHash: emailHash,
		PhoneHash: phoneHash,
		NameEnc:   nameEnc,
		EmailEnc:  emailEnc,
		PhoneEnc:  phoneEnc,
	}, nil
}

// Entries returns up to limit entries with their fields decrypted, newest
// first. Admin-only surface.
func (s *Service) Entries(ctx context.Context, limit int) ([]models.DecryptedEntry, error) {
	ctx, span := tracer.Start(ctx, "waitlist.entries", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	stored, err := s.store.ListEntries(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list entries")
	}

	out := make([]models.DecryptedEntry, 0, len(stored))
	for _, entry := range stored {
		name, err := s.cipher.Decrypt(entry.NameEnc)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decrypt name")
		}
		email, err := s.cipher.Decrypt(entry.EmailEnc)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decrypt email")
		}
		phone, err := s.cipher.Decrypt(entry.PhoneEnc)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decrypt phone")
		}
		out = append(out, models.DecryptedEntry{
			ID:        entry.ID,
			CreatedAt: entry.CreatedAt,
			Name:      name,
			Email:     email,
			Phone:     phone,
			Source:    entry.Source,
			Device:    entry.Device,
		})
	}
	return out, nil
}

// Count returns the number of accepted entries.
func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.store.CountEntries(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count entries")
	}
	return count, nil
}

// deviceSummary condenses a User-Agent header into "browser/os" for the
// admin view. Empty when the header is absent or unrecognized.
func deviceSummary(header string) string {
	if header == "" {
		return ""
	}
	ua := useragent.New(header)
	name, _ := ua.Browser()
	os := ua.OSInfo().Name
	switch {
	case name != "" && os != "":
		return name + "/" + os
	case name != "":
		return name
	default:
		return os
	}
}
