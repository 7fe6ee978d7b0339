package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/realty-service/internal/domain"
)

// PendingRegistrationRepository stores unconfirmed signups keyed by e-mail.
type PendingRegistrationRepository interface {
	// Upsert creates or replaces the row for the e-mail, issuing the new code
	// and clearing any correlation id.
	Upsert(ctx context.Context, pending *domain.PendingRegistration) error
	GetByEmail(ctx context.Context, email string) (*domain.PendingRegistration, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*domain.PendingRegistration, error)
	// BindCorrelationID attaches correlationID to the row unless one is
	// already bound, and returns the id that is bound afterwards. The code
	// must be unchanged.
	BindCorrelationID(ctx context.Context, id, code, correlationID string) (string, error)
	DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type pendingRegistrationRepository struct {
	pool *pgxpool.Pool
}

// NewPendingRegistrationRepository returns a Postgres-backed implementation.
func NewPendingRegistrationRepository(pool *pgxpool.Pool) PendingRegistrationRepository {
	return &pendingRegistrationRepository{pool: pool}
}

func (r *pendingRegistrationRepository) Upsert(ctx context.Context, pending *domain.PendingRegistration) error {
	payload, err := json.Marshal(pending.Payload)
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}

	const query = `
        INSERT INTO pending_registrations (email, code, code_issued_at, payload)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (email) DO UPDATE
            SET code=EXCLUDED.code, code_issued_at=EXCLUDED.code_issued_at, payload=EXCLUDED.payload,
                correlation_id=NULL, updated_at=NOW()
        RETURNING id, created_at, updated_at`

	pending.Email = domain.NormalizeEmail(pending.Email)
	pending.CorrelationID = nil
	return r.pool.QueryRow(ctx, query,
		pending.Email,
		pending.Code,
		pending.CodeIssuedAt,
		payload,
	).Scan(&pending.ID, &pending.CreatedAt, &pending.UpdatedAt)
}

const pendingColumns = `id, email, code, code_issued_at, payload, correlation_id, created_at, updated_at`

func (r *pendingRegistrationRepository) GetByEmail(ctx context.Context, email string) (*domain.PendingRegistration, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_registrations WHERE email=$1`
	return scanPending(r.pool.QueryRow(ctx, query, domain.NormalizeEmail(email)))
}

func (r *pendingRegistrationRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.PendingRegistration, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_registrations WHERE correlation_id=$1`
	return scanPending(r.pool.QueryRow(ctx, query, correlationID))
}

func scanPending(row pgx.Row) (*domain.PendingRegistration, error) {
	var (
		pending domain.PendingRegistration
		payload []byte
	)
	if err := row.Scan(
		&pending.ID,
		&pending.Email,
		&pending.Code,
		&pending.CodeIssuedAt,
		&payload,
		&pending.CorrelationID,
		&pending.CreatedAt,
		&pending.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &pending.Payload); err != nil {
		return nil, fmt.Errorf("decode registration %s: %w", pending.ID, err)
	}
	return &pending, nil
}

func (r *pendingRegistrationRepository) BindCorrelationID(ctx context.Context, id, code, correlationID string) (string, error) {
	const query = `
        UPDATE pending_registrations
        SET correlation_id=COALESCE(correlation_id, $1), updated_at=NOW()
        WHERE id=$2 AND code=$3
        RETURNING correlation_id`
	var bound string
	if err := r.pool.QueryRow(ctx, query, correlationID, id, code).Scan(&bound); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrPendingConsumed
		}
		return "", err
	}
	return bound, nil
}

func (r *pendingRegistrationRepository) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM pending_registrations WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
