// Package postgres implements the waitlist Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"waitlistd/internal/waitlist/crypto"
	"waitlistd/internal/waitlist/models"
	"waitlistd/internal/waitlist/store"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateEntry runs the uniqueness protocol inside one transaction: batch-read
// both marker keys, bail out on the first hit (email before phone), then
// write the entry and both markers. A concurrent race past the reads is
// caught by the marker primary key and mapped to the same conflict errors,
// so exactly one of two racing submissions commits.
func (s *Store) CreateEntry(ctx context.Context, entry *models.WaitlistEntry) (string, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	emailKey := models.MarkerKey(models.MarkerKindEmail, entry.EmailHash)
	phoneKey := models.MarkerKey(models.MarkerKindPhone, entry.PhoneHash)

	emailTaken, phoneTaken, err := readMarkers(ctx, tx, emailKey, phoneKey)
	if err != nil {
		return "", err
	}
	if emailTaken {
		return "", store.ErrEmailTaken
	}
	if phoneTaken {
		return "", store.ErrPhoneTaken
	}

	id := uuid.NewString()

	nameEnc, err := json.Marshal(entry.NameEnc)
	if err != nil {
		return "", fmt.Errorf("encode name field: %w", err)
	}
	emailEnc, err := json.Marshal(entry.EmailEnc)
	if err != nil {
		return "", fmt.Errorf("encode email field: %w", err)
	}
	phoneEnc, err := json.Marshal(entry.PhoneEnc)
	if err != nil {
		return "", fmt.Errorf("encode phone field: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO waitlist_entries
			(id, created_at, ip, user_agent, device, source, email_hash, phone_hash, name_enc, email_enc, phone_enc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, entry.CreatedAt, entry.IP, entry.UserAgent, entry.Device, entry.Source,
		entry.EmailHash, entry.PhoneHash, nameEnc, emailEnc, phoneEnc,
	)
	if err != nil {
		return "", fmt.Errorf("insert entry: %w", err)
	}

	if err := insertMarker(ctx, tx, emailKey, models.MarkerKindEmail, entry.EmailHash, id, entry); err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrEmailTaken
		}
		return "", fmt.Errorf("insert email marker: %w", err)
	}
	if err := insertMarker(ctx, tx, phoneKey, models.MarkerKindPhone, entry.PhoneHash, id, entry); err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrPhoneTaken
		}
		return "", fmt.Errorf("insert phone marker: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return id, nil
}

func (s *Store) ListEntries(ctx context.Context, limit int) ([]*models.WaitlistEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, ip, user_agent, device, source, email_hash, phone_hash, name_enc, email_enc, phone_enc
		FROM waitlist_entries
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.WaitlistEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *Store) CountEntries(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM waitlist_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// readMarkers issues both existence checks as one batch so the round trips
// overlap instead of serializing.
func readMarkers(ctx context.Context, tx pgx.Tx, emailKey, phoneKey string) (bool, bool, error) {
	batch := &pgx.Batch{}
	batch.Queue(`SELECT EXISTS (SELECT 1 FROM waitlist_markers WHERE marker_key = $1)`, emailKey)
	batch.Queue(`SELECT EXISTS (SELECT 1 FROM waitlist_markers WHERE marker_key = $1)`, phoneKey)

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	var emailTaken, phoneTaken bool
	if err := results.QueryRow().Scan(&emailTaken); err != nil {
		return false, false, fmt.Errorf("read email marker: %w", err)
	}
	if err := results.QueryRow().Scan(&phoneTaken); err != nil {
		return false, false, fmt.Errorf("read phone marker: %w", err)
	}
	return emailTaken, phoneTaken, nil
}

func insertMarker(ctx context.Context, tx pgx.Tx, key, kind, hash, entryID string, entry *models.WaitlistEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO waitlist_markers (marker_key, kind, hash, entry_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		key, kind, hash, entryID, entry.CreatedAt,
	)
	return err
}

func scanEntry(rows pgx.Rows) (*models.WaitlistEntry, error) {
	var (
		entry                       models.WaitlistEntry
		nameEnc, emailEnc, phoneEnc []byte
	)
	if err := rows.Scan(
		&entry.ID, &entry.CreatedAt, &entry.IP, &entry.UserAgent, &entry.Device, &entry.Source,
		&entry.EmailHash, &entry.PhoneHash, &nameEnc, &emailEnc, &phoneEnc,
	); err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	if err := decodeField(nameEnc, &entry.NameEnc); err != nil {
		return nil, err
	}
	if err := decodeField(emailEnc, &entry.EmailEnc); err != nil {
		return nil, err
	}
	if err := decodeField(phoneEnc, &entry.PhoneEnc); err != nil {
		return nil, err
	}
	return &entry, nil
}

func decodeField(raw []byte, field *crypto.EncryptedField) error {
	if err := json.Unmarshal(raw, field); err != nil {
		return fmt.Errorf("decode encrypted field: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
