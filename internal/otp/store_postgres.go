package otp

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"garrison/pkg/platform/sentinel"
	"garrison/pkg/platform/tx"
)

// Clock abstracts time.Now for testability.
type Clock func() time.Time

// PostgresCodeStore persists verification codes in PostgreSQL. Expiry is
// enforced at read time; DeleteExpired reclaims storage.
type PostgresCodeStore struct {
	db    *sql.DB
	clock Clock
}

// PostgresCodeStoreOption configures a PostgresCodeStore instance.
type PostgresCodeStoreOption func(*PostgresCodeStore)

// WithPostgresClock sets the clock function for testability.
func WithPostgresClock(clock Clock) PostgresCodeStoreOption {
	return func(s *PostgresCodeStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgresCodeStore constructs a PostgreSQL-backed code store.
func NewPostgresCodeStore(db *sql.DB, opts ...PostgresCodeStoreOption) *PostgresCodeStore {
	s := &PostgresCodeStore{
		db:    db,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// EnsureSchema creates the verification_codes table when missing. Intended
// for dev and test wiring; production schemas are migrated out of band.
func (s *PostgresCodeStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS verification_codes (
			address     TEXT        NOT NULL,
			channel     TEXT        NOT NULL,
			code        TEXT        NOT NULL,
			issued_at   TIMESTAMPTZ NOT NULL,
			expires_at  TIMESTAMPTZ NOT NULL,
			consumed_at TIMESTAMPTZ,
			PRIMARY KEY (address, channel)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure verification_codes schema: %w", err)
	}
	return nil
}

// Put upserts the code for its (address, channel) pair. The upsert is what
// enforces the at-most-one-active-code invariant under concurrent issuance.
func (s *PostgresCodeStore) Put(ctx context.Context, code *VerificationCode) error {
	query := `
		INSERT INTO verification_codes (address, channel, code, issued_at, expires_at, consumed_at)
		VALUES ($1, $2, $3, $4, $5, NULL)
		ON CONFLICT (address, channel) DO UPDATE SET
			code        = EXCLUDED.code,
			issued_at   = EXCLUDED.issued_at,
			expires_at  = EXCLUDED.expires_at,
			consumed_at = NULL
	`
	_, err := s.querier(ctx).ExecContext(ctx, query, code.Address, string(code.Channel), code.Code, code.IssuedAt, code.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	return nil
}

func (s *PostgresCodeStore) Find(ctx context.Context, address string, channel Channel) (*VerificationCode, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT code, issued_at, expires_at, consumed_at
		FROM verification_codes
		WHERE address = $1 AND channel = $2
	`, address, string(channel))

	return scanCode(row, address, channel)
}

// Consume validates and marks the code consumed inside a transaction with a
// row lock, so racing submissions from the same session serialize on the
// single row and only one can win.
func (s *PostgresCodeStore) Consume(ctx context.Context, address string, channel Channel, submitted string, now time.Time) (*VerificationCode, error) {
	consumeTx, owned, err := s.consumeTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin consume tx: %w", err)
	}
	if owned {
		defer func() { _ = consumeTx.Rollback() }()
	}

	row := consumeTx.QueryRowContext(ctx, `
		SELECT code, issued_at, expires_at, consumed_at
		FROM verification_codes
		WHERE address = $1 AND channel = $2
		FOR UPDATE
	`, address, string(channel))

	record, err := scanCode(row, address, channel)
	if err != nil {
		return nil, err
	}

	if err := record.ValidateForConsume(submitted, now); err != nil {
		return record, err
	}

	if _, err := consumeTx.ExecContext(ctx, `
		UPDATE verification_codes SET consumed_at = $3
		WHERE address = $1 AND channel = $2
	`, address, string(channel), now); err != nil {
		return nil, fmt.Errorf("mark verification code consumed: %w", err)
	}

	if owned {
		if err := consumeTx.Commit(); err != nil {
			return nil, fmt.Errorf("commit consume tx: %w", err)
		}
	}

	record.MarkConsumed(now)
	return record, nil
}

// DeleteExpired removes codes whose retention window has passed as of now.
// Recently expired codes stay so late submissions still get the expired
// answer.
func (s *PostgresCodeStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.querier(ctx).ExecContext(ctx, `DELETE FROM verification_codes WHERE expires_at < $1`, now.Add(-ExpiredCodeRetention))
	if err != nil {
		return 0, fmt.Errorf("delete expired verification codes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted verification codes: %w", err)
	}
	return int(n), nil
}

// querier returns the ambient transaction when the caller opened one,
// otherwise the pool. Lets higher layers scope code writes to their own tx.
func (s *PostgresCodeStore) querier(ctx context.Context) execQuerier {
	if ambient, ok := tx.From(ctx); ok {
		return ambient
	}
	return s.db
}

// consumeTx returns the transaction Consume should run in and whether this
// store owns it (and so must commit or roll back).
func (s *PostgresCodeStore) consumeTx(ctx context.Context) (*sql.Tx, bool, error) {
	if ambient, ok := tx.From(ctx); ok {
		return ambient, false, nil
	}
	owned, err := s.db.BeginTx(ctx, nil)
	return owned, true, err
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCode(row rowScanner, address string, channel Channel) (*VerificationCode, error) {
	var (
		record     VerificationCode
		consumedAt sql.NullTime
	)
	err := row.Scan(&record.Code, &record.IssuedAt, &record.ExpiresAt, &consumedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("verification code not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load verification code: %w", err)
	}
	record.Address = address
	record.Channel = channel
	if consumedAt.Valid {
		t := consumedAt.Time
		record.ConsumedAt = &t
	}
	return &record, nil
}
