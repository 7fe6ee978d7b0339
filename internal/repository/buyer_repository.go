package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/persistence"
)

// EntitlementMutation changes an access pass under the buyer row lock.
type EntitlementMutation func(access *domain.Entitlement) error

// BuyerRepository persists buyer profiles and their access pass.
type BuyerRepository interface {
	GetProfile(ctx context.Context, accountID string) (*domain.BuyerProfile, error)
	// UpdateEntitlement records eventID and applies fn to the locked access
	// pass. A replayed eventID yields ErrDuplicateEvent and no change.
	UpdateEntitlement(ctx context.Context, buyerID, eventID, kind string, fn EntitlementMutation) (*domain.Entitlement, error)
}

type buyerRepository struct {
	pool *pgxpool.Pool
}

// NewBuyerRepository returns a Postgres-backed implementation.
func NewBuyerRepository(pool *pgxpool.Pool) BuyerRepository {
	return &buyerRepository{pool: pool}
}

func (r *buyerRepository) GetProfile(ctx context.Context, accountID string) (*domain.BuyerProfile, error) {
	const query = `
        SELECT account_id, preferred_location, city, state, budget_range, selected_plan,
               assigned_agent_id, access_expires_at, access_extensions_used, created_at, updated_at
        FROM buyer_profiles WHERE account_id=$1`

	var profile domain.BuyerProfile
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&profile.AccountID,
		&profile.PreferredLocation,
		&profile.City,
		&profile.State,
		&profile.BudgetRange,
		&profile.SelectedPlan,
		&profile.AssignedAgentID,
		&profile.Access.ExpiresAt,
		&profile.Access.ExtensionsUsed,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *buyerRepository) UpdateEntitlement(ctx context.Context, buyerID, eventID, kind string, fn EntitlementMutation) (*domain.Entitlement, error) {
	var access domain.Entitlement
	err := persistence.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
        SELECT access_expires_at, access_extensions_used
        FROM buyer_profiles WHERE account_id=$1 FOR UPDATE`, buyerID,
		).Scan(&access.ExpiresAt, &access.ExtensionsUsed); err != nil {
			return err
		}

		cmd, err := tx.Exec(ctx, `
        INSERT INTO entitlement_events (event_id, buyer_id, kind) VALUES ($1,$2,$3)
        ON CONFLICT (event_id) DO NOTHING`, eventID, buyerID, kind)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrDuplicateEvent
		}

		if err := fn(&access); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
        UPDATE buyer_profiles SET access_expires_at=$1, access_extensions_used=$2, updated_at=NOW()
        WHERE account_id=$3`, access.ExpiresAt, access.ExtensionsUsed, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &access, nil
}
