// Package memory provides a mutex-guarded in-memory implementation of the
// repository interfaces. It backs development runs without POSTGRES_DSN and
// the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/repository"
)

// Store holds every table behind a single lock, which gives the same
// all-or-nothing behaviour as the Postgres transactions.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	accounts    map[string]*domain.Account
	emails      map[string]string
	pending     map[string]*domain.PendingRegistration
	buyers      map[string]*domain.BuyerProfile
	realtors    map[string]*domain.RealtorProfile
	sellers     map[string]*domain.SellerProfile
	partners    map[string]*domain.PartnerProfile
	connections map[string]*domain.ConnectionRequest
	events      map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		now:         time.Now,
		accounts:    map[string]*domain.Account{},
		emails:      map[string]string{},
		pending:     map[string]*domain.PendingRegistration{},
		buyers:      map[string]*domain.BuyerProfile{},
		realtors:    map[string]*domain.RealtorProfile{},
		sellers:     map[string]*domain.SellerProfile{},
		partners:    map[string]*domain.PartnerProfile{},
		connections: map[string]*domain.ConnectionRequest{},
		events:      map[string]string{},
	}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Accounts returns the account repository view.
func (s *Store) Accounts() repository.AccountRepository { return accountRepo{s} }

// Pending returns the pending registration repository view.
func (s *Store) Pending() repository.PendingRegistrationRepository { return pendingRepo{s} }

// Buyers returns the buyer repository view.
func (s *Store) Buyers() repository.BuyerRepository { return buyerRepo{s} }

// Connections returns the connection repository view.
func (s *Store) Connections() repository.ConnectionRepository { return connectionRepo{s} }

// SeedAccount inserts an active account with its profile, bypassing signup.
func (s *Store) SeedAccount(account *domain.Account, profile domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertAccount(account, profile)
}

func (s *Store) insertAccount(account *domain.Account, profile domain.Profile) {
	now := s.now()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.Email = domain.NormalizeEmail(account.Email)
	account.CreatedAt, account.UpdatedAt = now, now
	stored := *account
	s.accounts[account.ID] = &stored
	s.emails[account.Email] = account.ID

	switch {
	case profile.Buyer != nil:
		profile.Buyer.AccountID = account.ID
		profile.Buyer.CreatedAt, profile.Buyer.UpdatedAt = now, now
		p := *profile.Buyer
		s.buyers[account.ID] = &p
	case profile.Realtor != nil:
		profile.Realtor.AccountID = account.ID
		profile.Realtor.CreatedAt, profile.Realtor.UpdatedAt = now, now
		p := *profile.Realtor
		s.realtors[account.ID] = &p
	case profile.Seller != nil:
		profile.Seller.AccountID = account.ID
		profile.Seller.CreatedAt, profile.Seller.UpdatedAt = now, now
		p := *profile.Seller
		s.sellers[account.ID] = &p
	case profile.Partner != nil:
		profile.Partner.AccountID = account.ID
		profile.Partner.CreatedAt, profile.Partner.UpdatedAt = now, now
		p := *profile.Partner
		s.partners[account.ID] = &p
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func paginate[T any](items []T, page repository.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

type accountRepo struct{ s *Store }

func (r accountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	account, ok := r.s.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *account
	return &out, nil
}

func (r accountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.emails[domain.NormalizeEmail(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *r.s.accounts[id]
	return &out, nil
}

func (r accountRepo) Materialize(_ context.Context, pending *domain.PendingRegistration, account *domain.Account, profile domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.pending[domain.NormalizeEmail(pending.Email)]
	if !ok || stored.ID != pending.ID || stored.Code != pending.Code {
		return repository.ErrPendingConsumed
	}
	if _, exists := r.s.emails[domain.NormalizeEmail(account.Email)]; exists {
		return repository.ErrDuplicateEmail
	}
	delete(r.s.pending, stored.Email)
	r.s.insertAccount(account, profile)
	return nil
}

func (r accountRepo) ListRealtors(_ context.Context, page repository.Page) ([]domain.RealtorSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]domain.RealtorSummary, 0, len(r.s.realtors))
	for id, profile := range r.s.realtors {
		account := r.s.accounts[id]
		if account == nil || !account.IsActive || account.Role != domain.RoleRealtor {
			continue
		}
		out = append(out, domain.RealtorSummary{
			AccountID:         id,
			FirstName:         account.FirstName,
			LastName:          account.LastName,
			Email:             account.Email,
			PhoneNumber:       account.PhoneNumber,
			LicenseNumber:     profile.LicenseNumber,
			CompanyBrokerage:  profile.CompanyBrokerage,
			YearsOfExperience: profile.YearsOfExperience,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.AccountID < b.AccountID
	})
	return paginate(out, page), nil
}

type pendingRepo struct{ s *Store }

func (r pendingRepo) Upsert(_ context.Context, pending *domain.PendingRegistration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	pending.Email = domain.NormalizeEmail(pending.Email)
	pending.CorrelationID = nil
	if existing, ok := r.s.pending[pending.Email]; ok {
		pending.ID = existing.ID
		pending.CreatedAt = existing.CreatedAt
	} else {
		pending.ID = uuid.NewString()
		pending.CreatedAt = now
	}
	pending.UpdatedAt = now
	stored := *pending
	r.s.pending[pending.Email] = &stored
	return nil
}

func (r pendingRepo) GetByEmail(_ context.Context, email string) (*domain.PendingRegistration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pending, ok := r.s.pending[domain.NormalizeEmail(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *pending
	return &out, nil
}

func (r pendingRepo) GetByCorrelationID(_ context.Context, correlationID string) (*domain.PendingRegistration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, pending := range r.s.pending {
		if pending.CorrelationID != nil && *pending.CorrelationID == correlationID {
			out := *pending
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r pendingRepo) BindCorrelationID(_ context.Context, id, code, correlationID string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, pending := range r.s.pending {
		if pending.ID != id || pending.Code != code {
			continue
		}
		if pending.CorrelationID == nil {
			cid := correlationID
			pending.CorrelationID = &cid
		}
		pending.UpdatedAt = r.s.now()
		return *pending.CorrelationID, nil
	}
	return "", repository.ErrPendingConsumed
}

func (r pendingRepo) DeleteUpdatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for email, pending := range r.s.pending {
		if pending.UpdatedAt.Before(cutoff) {
			delete(r.s.pending, email)
			n++
		}
	}
	return n, nil
}

type buyerRepo struct{ s *Store }

func (r buyerRepo) GetProfile(_ context.Context, accountID string) (*domain.BuyerProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.buyers[accountID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *profile
	return &out, nil
}

func (r buyerRepo) UpdateEntitlement(_ context.Context, buyerID, eventID, kind string, fn repository.EntitlementMutation) (*domain.Entitlement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	profile, ok := r.s.buyers[buyerID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if _, seen := r.s.events[eventID]; seen {
		return nil, repository.ErrDuplicateEvent
	}

	access := profile.Access
	if access.ExpiresAt != nil {
		expires := *access.ExpiresAt
		access.ExpiresAt = &expires
	}
	if err := fn(&access); err != nil {
		return nil, err
	}

	r.s.events[eventID] = kind
	profile.Access = access
	profile.UpdatedAt = r.s.now()
	out := access
	return &out, nil
}

type connectionRepo struct{ s *Store }

func (r connectionRepo) Create(_ context.Context, req *domain.ConnectionRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if req.Status == "" {
		req.Status = domain.ConnectionPending
	}
	for _, existing := range r.s.connections {
		if existing.BuyerID == req.BuyerID && existing.RealtorID == req.RealtorID && existing.Status == domain.ConnectionPending {
			return repository.ErrDuplicateRequest
		}
	}
	now := r.s.now()
	req.ID = uuid.NewString()
	req.CreatedAt, req.UpdatedAt = now, now
	stored := *req
	r.s.connections[req.ID] = &stored
	return nil
}

func (r connectionRepo) GetByID(_ context.Context, id string) (*domain.ConnectionRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.connections[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *req
	return &out, nil
}

func (r connectionRepo) HasOpen(_ context.Context, buyerID, realtorID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, req := range r.s.connections {
		if req.BuyerID == buyerID && req.RealtorID == realtorID && req.Status == domain.ConnectionPending {
			return true, nil
		}
	}
	return false, nil
}

func (r connectionRepo) list(match func(*domain.ConnectionRequest) bool, page repository.Page) []domain.ConnectionRequest {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []domain.ConnectionRequest{}
	for _, req := range r.s.connections {
		if match(req) {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return strings.Compare(out[i].ID, out[j].ID) > 0
	})
	return paginate(out, page)
}

func (r connectionRepo) ListForBuyer(_ context.Context, buyerID string, page repository.Page) ([]domain.ConnectionRequest, error) {
	return r.list(func(req *domain.ConnectionRequest) bool { return req.BuyerID == buyerID }, page), nil
}

func (r connectionRepo) ListPendingForRealtor(_ context.Context, realtorID string, page repository.Page) ([]domain.ConnectionRequest, error) {
	return r.list(func(req *domain.ConnectionRequest) bool {
		return req.RealtorID == realtorID && req.Status == domain.ConnectionPending
	}, page), nil
}

func (r connectionRepo) Resolve(_ context.Context, id, realtorID string, status domain.ConnectionStatus) (*domain.ConnectionResolution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.connections[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	buyer, ok := r.s.buyers[stored.BuyerID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if stored.RealtorID != realtorID {
		return nil, domain.ErrNotRequestOwner
	}
	req := *stored
	if err := req.Transition(status); err != nil {
		return nil, err
	}
	if status == domain.ConnectionAccepted && buyer.AssignedAgentID != nil {
		return nil, domain.ErrBuyerAlreadyMatched
	}

	now := r.s.now()
	req.UpdatedAt = now
	*stored = req
	resolution := &domain.ConnectionResolution{Request: &req}
	if status != domain.ConnectionAccepted {
		return resolution, nil
	}

	agent := realtorID
	buyer.AssignedAgentID = &agent
	buyer.UpdatedAt = now
	for _, other := range r.s.connections {
		if other.BuyerID == req.BuyerID && other.ID != req.ID && other.Status == domain.ConnectionPending {
			other.Status = domain.ConnectionRejected
			other.UpdatedAt = now
			resolution.AutoRejected = append(resolution.AutoRejected, other.ID)
		}
	}
	sort.Strings(resolution.AutoRejected)
	return resolution, nil
}
