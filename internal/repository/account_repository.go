package repository

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/persistence"
)

// AccountRepository defines persistence access for activated accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// Materialize consumes the pending registration and creates the account
	// and its profile in one transaction.
	Materialize(ctx context.Context, pending *domain.PendingRegistration, account *domain.Account, profile domain.Profile) error
	ListRealtors(ctx context.Context, page Page) ([]domain.RealtorSummary, error)
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

const accountColumns = `id, email, password_hash, role, first_name, last_name, phone_number,
               is_active, is_staff, payment_customer_ref, created_at, updated_at`

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email=$1`
	return scanAccount(r.pool.QueryRow(ctx, query, domain.NormalizeEmail(email)))
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.FirstName,
		&account.LastName,
		&account.PhoneNumber,
		&account.IsActive,
		&account.IsStaff,
		&account.PaymentCustomerRef,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Materialize(ctx context.Context, pending *domain.PendingRegistration, account *domain.Account, profile domain.Profile) error {
	if profile.Role() != account.Role {
		return fmt.Errorf("profile role %q does not match account role %q", profile.Role(), account.Role)
	}

	return persistence.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM pending_registrations WHERE id=$1 AND code=$2`, pending.ID, pending.Code)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrPendingConsumed
		}

		const insertAccount = `
        INSERT INTO accounts (email, password_hash, role, first_name, last_name, phone_number, is_active, is_staff, payment_customer_ref)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, insertAccount,
			account.Email,
			account.PasswordHash,
			account.Role,
			account.FirstName,
			account.LastName,
			account.PhoneNumber,
			account.IsActive,
			account.IsStaff,
			account.PaymentCustomerRef,
		).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt); err != nil {
			if isUniqueViolation(err, "") {
				return ErrDuplicateEmail
			}
			return err
		}

		return insertProfile(ctx, tx, account.ID, profile)
	})
}

func insertProfile(ctx context.Context, tx pgx.Tx, accountID string, profile domain.Profile) error {
	switch {
	case profile.Buyer != nil:
		p := profile.Buyer
		p.AccountID = accountID
		return tx.QueryRow(ctx, `
        INSERT INTO buyer_profiles (account_id, preferred_location, city, state, budget_range, selected_plan)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`,
			accountID, p.PreferredLocation, p.City, p.State, p.BudgetRange, p.SelectedPlan,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
	case profile.Realtor != nil:
		p := profile.Realtor
		p.AccountID = accountID
		return tx.QueryRow(ctx, `
        INSERT INTO realtor_profiles (account_id, license_number, company_brokerage, years_of_experience)
        VALUES ($1,$2,$3,$4)
        RETURNING created_at, updated_at`,
			accountID, p.LicenseNumber, p.CompanyBrokerage, p.YearsOfExperience,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
	case profile.Seller != nil:
		p := profile.Seller
		p.AccountID = accountID
		return tx.QueryRow(ctx, `
        INSERT INTO seller_profiles (account_id, property_type, estimated_value, property_location, city, state)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`,
			accountID, p.PropertyType, p.EstimatedValue, p.PropertyLocation, p.City, p.State,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
	case profile.Partner != nil:
		p := profile.Partner
		p.AccountID = accountID
		return tx.QueryRow(ctx, `
        INSERT INTO partner_profiles (account_id, company_name, partnership_type, service_areas, website_url, business_license_number)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`,
			accountID, p.CompanyName, p.PartnershipType, p.ServiceAreas, p.WebsiteURL, p.BusinessLicenseNumber,
		).Scan(&p.CreatedAt, &p.UpdatedAt)
	}
	return fmt.Errorf("no profile supplied for account %s", accountID)
}

func (r *accountRepository) ListRealtors(ctx context.Context, page Page) ([]domain.RealtorSummary, error) {
	const query = `
        SELECT a.id AS account_id, a.first_name, a.last_name, a.email, a.phone_number,
               p.license_number, p.company_brokerage, p.years_of_experience
        FROM accounts a
        JOIN realtor_profiles p ON p.account_id = a.id
        WHERE a.role = 'REALTOR' AND a.is_active
        ORDER BY a.last_name, a.first_name, a.id
        LIMIT $1 OFFSET $2`

	var realtors []domain.RealtorSummary
	if err := pgxscan.Select(ctx, r.pool, &realtors, query, page.Limit, page.Offset); err != nil {
		return nil, err
	}
	return realtors, nil
}
