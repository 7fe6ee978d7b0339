package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/persistence"
)

// These tests run against a disposable database named by POSTGRES_TEST_DSN.
// Every table is truncated before each test.

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := persistence.RunMigrations(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `
        TRUNCATE entitlement_events, connection_requests, partner_profiles, seller_profiles,
                 realtor_profiles, buyer_profiles, pending_registrations, accounts`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func stagePending(t *testing.T, pending PendingRegistrationRepository, reg domain.Registration) *domain.PendingRegistration {
	t.Helper()
	row := &domain.PendingRegistration{
		Email:        reg.Email,
		Code:         "482913",
		CodeIssuedAt: time.Now(),
		Payload:      reg,
	}
	if err := pending.Upsert(context.Background(), row); err != nil {
		t.Fatalf("upsert pending %s: %v", reg.Email, err)
	}
	return row
}

func activate(t *testing.T, pool *pgxpool.Pool, reg domain.Registration) *domain.Account {
	t.Helper()
	row := stagePending(t, NewPendingRegistrationRepository(pool), reg)
	account := reg.Account(nil)
	account.PasswordHash = "x"
	if err := NewAccountRepository(pool).Materialize(context.Background(), row, account, reg.Profile()); err != nil {
		t.Fatalf("materialize %s: %v", reg.Email, err)
	}
	return account
}

func pgBuyer(email string) domain.Registration {
	return domain.Registration{
		Email:             email,
		FirstName:         "Jane",
		LastName:          "Doe",
		Role:              domain.RoleBuyer,
		PreferredLocation: "Austin, TX",
		BudgetRange:       "300-400k",
	}
}

func pgRealtor(email, last string) domain.Registration {
	return domain.Registration{
		Email:             email,
		FirstName:         "Riley",
		LastName:          last,
		Role:              domain.RoleRealtor,
		LicenseNumber:     "TX-" + last,
		CompanyBrokerage:  "Lone Star Realty",
		YearsOfExperience: "7",
	}
}

func TestPostgresConcurrentMaterializeHasOneWinner(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	reg := pgBuyer("race@example.com")
	row := stagePending(t, NewPendingRegistrationRepository(pool), reg)
	accounts := NewAccountRepository(pool)

	const callers = 6
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot := *row
			account := reg.Account(nil)
			account.PasswordHash = "x"
			errs[i] = accounts.Materialize(ctx, &snapshot, account, reg.Profile())
		}(i)
	}
	wg.Wait()

	var won int
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrPendingConsumed):
		default:
			t.Fatalf("caller %d: unexpected error %v", i, err)
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one materialized account, got %d", won)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE email=$1`, reg.Email).Scan(&count); err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one account row, got %d", count)
	}
	if _, err := NewPendingRegistrationRepository(pool).GetByEmail(ctx, reg.Email); err == nil {
		t.Fatalf("expected pending row to be gone")
	}
}

func TestPostgresMaterializeRejectsReplacedCode(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	pending := NewPendingRegistrationRepository(pool)
	reg := pgBuyer("resend@example.com")
	stale := stagePending(t, pending, reg)
	staleCopy := *stale

	fresh := staleCopy
	fresh.Code = "771100"
	if err := pending.Upsert(ctx, &fresh); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	account := reg.Account(nil)
	account.PasswordHash = "x"
	err := NewAccountRepository(pool).Materialize(ctx, &staleCopy, account, reg.Profile())
	if !errors.Is(err, ErrPendingConsumed) {
		t.Fatalf("expected ErrPendingConsumed for a replaced code, got %v", err)
	}
}

func TestPostgresBindCorrelationIDBindsOnce(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	pending := NewPendingRegistrationRepository(pool)
	row := stagePending(t, pending, pgBuyer("bind@example.com"))

	const callers = 5
	bound := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bound[i], errs[i] = pending.BindCorrelationID(ctx, row.ID, row.Code, fmt.Sprintf("su_%d", i))
		}(i)
	}
	wg.Wait()

	for i := range bound {
		if errs[i] != nil {
			t.Fatalf("bind %d: %v", i, errs[i])
		}
		if bound[i] != bound[0] {
			t.Fatalf("bind %d returned %q, expected %q", i, bound[i], bound[0])
		}
	}

	found, err := pending.GetByCorrelationID(ctx, bound[0])
	if err != nil || found.ID != row.ID {
		t.Fatalf("lookup by bound id: %v", err)
	}

	if _, err := pending.BindCorrelationID(ctx, row.ID, "000000", "su_other"); !errors.Is(err, ErrPendingConsumed) {
		t.Fatalf("expected ErrPendingConsumed for a stale code, got %v", err)
	}
}

func TestPostgresConcurrentAcceptsMatchOneRealtor(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	buyer := activate(t, pool, pgBuyer("buyer@example.com"))
	connections := NewConnectionRepository(pool)

	const realtors = 4
	requests := make([]*domain.ConnectionRequest, realtors)
	for i := 0; i < realtors; i++ {
		realtor := activate(t, pool, pgRealtor(fmt.Sprintf("realtor%d@example.com", i), fmt.Sprintf("Agent%d", i)))
		req := &domain.ConnectionRequest{BuyerID: buyer.ID, RealtorID: realtor.ID}
		if err := connections.Create(ctx, req); err != nil {
			t.Fatalf("create request %d: %v", i, err)
		}
		requests[i] = req
	}

	resolutions := make([]*domain.ConnectionResolution, realtors)
	errs := make([]error, realtors)
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req *domain.ConnectionRequest) {
			defer wg.Done()
			resolutions[i], errs[i] = connections.Resolve(ctx, req.ID, req.RealtorID, domain.ConnectionAccepted)
		}(i, req)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			if winner != -1 {
				t.Fatalf("requests %d and %d were both accepted", winner, i)
			}
			winner = i
		case errors.Is(err, domain.ErrRequestNotPending), errors.Is(err, domain.ErrBuyerAlreadyMatched):
		default:
			t.Fatalf("accept %d: unexpected error %v", i, err)
		}
	}
	if winner == -1 {
		t.Fatalf("expected one accepted request")
	}
	if got := len(resolutions[winner].AutoRejected); got != realtors-1 {
		t.Fatalf("expected %d auto-rejected requests, got %d", realtors-1, got)
	}

	profile, err := NewBuyerRepository(pool).GetProfile(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("buyer profile: %v", err)
	}
	if profile.AssignedAgentID == nil || *profile.AssignedAgentID != requests[winner].RealtorID {
		t.Fatalf("assigned agent %v, expected %s", profile.AssignedAgentID, requests[winner].RealtorID)
	}

	var accepted, pending int
	if err := pool.QueryRow(ctx, `
        SELECT COUNT(*) FILTER (WHERE status='ACCEPTED'), COUNT(*) FILTER (WHERE status='PENDING')
        FROM connection_requests WHERE buyer_id=$1`, buyer.ID).Scan(&accepted, &pending); err != nil {
		t.Fatalf("count statuses: %v", err)
	}
	if accepted != 1 || pending != 0 {
		t.Fatalf("expected 1 accepted and 0 pending, got %d and %d", accepted, pending)
	}
}

func TestPostgresCreateRejectsSecondOpenRequest(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	buyer := activate(t, pool, pgBuyer("dup@example.com"))
	realtor := activate(t, pool, pgRealtor("agent@example.com", "Lane"))
	connections := NewConnectionRepository(pool)

	if err := connections.Create(ctx, &domain.ConnectionRequest{BuyerID: buyer.ID, RealtorID: realtor.ID}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	err := connections.Create(ctx, &domain.ConnectionRequest{BuyerID: buyer.ID, RealtorID: realtor.ID})
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestPostgresReplayedEntitlementEventAppliesOnce(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	buyer := activate(t, pool, pgBuyer("pass@example.com"))
	buyers := NewBuyerRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	grant := func(access *domain.Entitlement) error {
		access.GrantOrExtend(now, 30)
		return nil
	}

	const deliveries = 5
	errs := make([]error, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = buyers.UpdateEntitlement(ctx, buyer.ID, "cs_test_replay", "access_purchase", grant)
		}(i)
	}
	wg.Wait()

	var applied int
	for i, err := range errs {
		switch {
		case err == nil:
			applied++
		case errors.Is(err, ErrDuplicateEvent):
		default:
			t.Fatalf("delivery %d: unexpected error %v", i, err)
		}
	}
	if applied != 1 {
		t.Fatalf("expected the event to apply once, applied %d times", applied)
	}

	if _, err := buyers.UpdateEntitlement(ctx, buyer.ID, "cs_test_replay", "access_purchase", grant); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent on a later replay, got %v", err)
	}

	profile, err := buyers.GetProfile(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("buyer profile: %v", err)
	}
	want := now.Add(30 * 24 * time.Hour)
	if profile.Access.ExpiresAt == nil || !profile.Access.ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v, expected %v", profile.Access.ExpiresAt, want)
	}
}
