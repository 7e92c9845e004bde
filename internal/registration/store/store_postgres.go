package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"garrison/internal/registration/models"
	id "garrison/pkg/domain"
	"garrison/pkg/platform/sentinel"
	"garrison/pkg/requestcontext"
)

// PostgresStore persists registration records in PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL-backed registration store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the registrations table when missing. Intended for
// dev and test wiring; production schemas are migrated out of band.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS registrations (
			id             UUID        PRIMARY KEY,
			name           TEXT        NOT NULL,
			email          TEXT        NOT NULL UNIQUE,
			username       TEXT        NOT NULL,
			user_type      TEXT        NOT NULL,
			password_hash  TEXT        NOT NULL DEFAULT '',
			phone          TEXT        NOT NULL DEFAULT '',
			email_verified BOOLEAN     NOT NULL DEFAULT FALSE,
			phone_verified BOOLEAN     NOT NULL DEFAULT FALSE,
			status         TEXT        NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL,
			completed_at   TIMESTAMPTZ
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure registrations schema: %w", err)
	}
	return nil
}

const recordColumns = `id, name, email, username, user_type, password_hash, phone,
	email_verified, phone_verified, status, created_at, completed_at`

func (s *PostgresStore) Create(ctx context.Context, record *models.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO registrations (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		record.ID.String(), record.Name, record.Email, record.Username,
		string(record.UserType), record.PasswordHash, record.Phone,
		record.EmailVerified, record.PhoneVerified, string(record.Status),
		record.CreatedAt, record.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create registration record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM registrations WHERE id = $1`, userID.String())
	return scanRecord(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM registrations WHERE email = $1`, email)
	return scanRecord(row)
}

func (s *PostgresStore) SetPhone(ctx context.Context, userID id.UserID, phone string) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE registrations SET phone = $2, phone_verified = FALSE
		WHERE id = $1
		RETURNING `+recordColumns, userID.String(), phone)
	return scanRecord(row)
}

func (s *PostgresStore) MarkEmailVerified(ctx context.Context, userID id.UserID) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE registrations SET email_verified = TRUE
		WHERE id = $1
		RETURNING `+recordColumns, userID.String())
	return scanRecord(row)
}

func (s *PostgresStore) MarkPhoneVerified(ctx context.Context, userID id.UserID) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE registrations SET phone_verified = TRUE
		WHERE id = $1
		RETURNING `+recordColumns, userID.String())
	return scanRecord(row)
}

func (s *PostgresStore) Complete(ctx context.Context, userID id.UserID) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE registrations SET status = $2, completed_at = $3
		WHERE id = $1
		RETURNING `+recordColumns,
		userID.String(), string(models.StatusComplete), requestcontext.Now(ctx))
	return scanRecord(row)
}

// DeleteStalePending removes pending records created before the cutoff.
func (s *PostgresStore) DeleteStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM registrations WHERE status = $1 AND created_at < $2
	`, string(models.StatusPending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale registrations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRecord(row pgx.Row) (*models.Record, error) {
	var (
		record      models.Record
		rawID       string
		userType    string
		status      string
		completedAt *time.Time
	)
	err := row.Scan(
		&rawID, &record.Name, &record.Email, &record.Username, &userType,
		&record.PasswordHash, &record.Phone, &record.EmailVerified,
		&record.PhoneVerified, &status, &record.CreatedAt, &completedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("registration record not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load registration record: %w", err)
	}

	userID, err := id.ParseUserID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse stored user id: %w", err)
	}
	record.ID = userID
	record.UserType = models.UserType(userType)
	record.Status = models.Status(status)
	record.CompletedAt = completedAt
	return &record, nil
}
