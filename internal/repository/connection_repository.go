package repository

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/persistence"
)

// ConnectionRepository persists buyer to realtor connection requests.
type ConnectionRepository interface {
	Create(ctx context.Context, req *domain.ConnectionRequest) error
	GetByID(ctx context.Context, id string) (*domain.ConnectionRequest, error)
	HasOpen(ctx context.Context, buyerID, realtorID string) (bool, error)
	ListForBuyer(ctx context.Context, buyerID string, page Page) ([]domain.ConnectionRequest, error)
	ListPendingForRealtor(ctx context.Context, realtorID string, page Page) ([]domain.ConnectionRequest, error)
	// Resolve moves a pending request owned by realtorID to status. Accepting
	// assigns the agent and rejects the buyer's other pending requests.
	Resolve(ctx context.Context, id, realtorID string, status domain.ConnectionStatus) (*domain.ConnectionResolution, error)
}

type connectionRepository struct {
	pool *pgxpool.Pool
}

// NewConnectionRepository returns a Postgres-backed implementation.
func NewConnectionRepository(pool *pgxpool.Pool) ConnectionRepository {
	return &connectionRepository{pool: pool}
}

func (r *connectionRepository) Create(ctx context.Context, req *domain.ConnectionRequest) error {
	const query = `
        INSERT INTO connection_requests (buyer_id, realtor_id, status)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`

	if req.Status == "" {
		req.Status = domain.ConnectionPending
	}
	err := r.pool.QueryRow(ctx, query, req.BuyerID, req.RealtorID, req.Status).
		Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if isUniqueViolation(err, "uq_connection_requests_open_pair") {
		return ErrDuplicateRequest
	}
	return err
}

const connectionColumns = `id, buyer_id, realtor_id, status, created_at, updated_at`

func (r *connectionRepository) GetByID(ctx context.Context, id string) (*domain.ConnectionRequest, error) {
	var req domain.ConnectionRequest
	if err := pgxscan.Get(ctx, r.pool, &req, `SELECT `+connectionColumns+` FROM connection_requests WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *connectionRepository) HasOpen(ctx context.Context, buyerID, realtorID string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM connection_requests
            WHERE buyer_id=$1 AND realtor_id=$2 AND status='PENDING')`
	var exists bool
	err := r.pool.QueryRow(ctx, query, buyerID, realtorID).Scan(&exists)
	return exists, err
}

func (r *connectionRepository) ListForBuyer(ctx context.Context, buyerID string, page Page) ([]domain.ConnectionRequest, error) {
	query := `SELECT ` + connectionColumns + ` FROM connection_requests
        WHERE buyer_id=$1
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`
	var out []domain.ConnectionRequest
	if err := pgxscan.Select(ctx, r.pool, &out, query, buyerID, page.Limit, page.Offset); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *connectionRepository) ListPendingForRealtor(ctx context.Context, realtorID string, page Page) ([]domain.ConnectionRequest, error) {
	query := `SELECT ` + connectionColumns + ` FROM connection_requests
        WHERE realtor_id=$1 AND status='PENDING'
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`
	var out []domain.ConnectionRequest
	if err := pgxscan.Select(ctx, r.pool, &out, query, realtorID, page.Limit, page.Offset); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *connectionRepository) Resolve(ctx context.Context, id, realtorID string, status domain.ConnectionStatus) (*domain.ConnectionResolution, error) {
	var resolution domain.ConnectionResolution
	err := persistence.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		var buyerID string
		if err := tx.QueryRow(ctx, `SELECT buyer_id FROM connection_requests WHERE id=$1`, id).Scan(&buyerID); err != nil {
			return err
		}

		// Buyer row first so concurrent accepts for one buyer serialize here.
		var assignedAgent *string
		if err := tx.QueryRow(ctx, `SELECT assigned_agent_id FROM buyer_profiles WHERE account_id=$1 FOR UPDATE`, buyerID).
			Scan(&assignedAgent); err != nil {
			return err
		}

		var req domain.ConnectionRequest
		if err := pgxscan.Get(ctx, tx, &req, `SELECT `+connectionColumns+` FROM connection_requests WHERE id=$1 FOR UPDATE`, id); err != nil {
			return err
		}
		if req.RealtorID != realtorID {
			return domain.ErrNotRequestOwner
		}
		if err := req.Transition(status); err != nil {
			return err
		}
		if status == domain.ConnectionAccepted && assignedAgent != nil {
			return domain.ErrBuyerAlreadyMatched
		}

		if err := tx.QueryRow(ctx, `
        UPDATE connection_requests SET status=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING updated_at`, req.Status, req.ID).Scan(&req.UpdatedAt); err != nil {
			return err
		}
		resolution.Request = &req

		if status != domain.ConnectionAccepted {
			return nil
		}

		if _, err := tx.Exec(ctx, `
        UPDATE buyer_profiles SET assigned_agent_id=$1, updated_at=NOW()
        WHERE account_id=$2`, realtorID, buyerID); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
        UPDATE connection_requests SET status='REJECTED', updated_at=NOW()
        WHERE buyer_id=$1 AND status='PENDING' AND id<>$2
        RETURNING id`, buyerID, req.ID)
		if err != nil {
			return err
		}
		rejected, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		resolution.AutoRejected = rejected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resolution, nil
}
