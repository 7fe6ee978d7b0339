package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/realty-service/internal/auth"
	"github.com/spec-kit/realty-service/internal/config"
	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/events"
	"github.com/spec-kit/realty-service/internal/mailer"
	"github.com/spec-kit/realty-service/internal/observability"
	"github.com/spec-kit/realty-service/internal/payment"
	"github.com/spec-kit/realty-service/internal/repository/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) To(addr string) []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mailer.Message
	for _, msg := range m.sent {
		if msg.To == addr {
			out = append(out, msg)
		}
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, event events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) OfType(t events.EventType) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	cfg          config.Config
	clock        *fakeClock
	store        *memory.Store
	payments     *payment.SandboxProvider
	mail         *recordingMailer
	events       *eventLog
	dispatcher   events.Dispatcher
	metrics      *observability.Metrics
	tokens       *auth.TokenManager
	activation   *ActivationService
	entitlements *EntitlementService
	connections  *ConnectionService
	auth         *AuthService
}

func testConfig(mode string) config.Config {
	return config.Config{
		Auth:       config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: bcrypt.MinCost},
		Activation: config.ActivationConfig{Mode: mode},
		Payment: config.PaymentConfig{
			Provider:        "sandbox",
			PublicBaseURL:   "https://realty.test",
			LoginURL:        "/login?success=account_created",
			SignupCancelURL: "/signup",
			DashboardURL:    "/buyer/dashboard",
		},
		Access: config.AccessConfig{BaseDays: 30, ExtensionDays: 15, MaxExtensions: 2},
	}
}

func newHarness(t *testing.T, mode string) *harness {
	t.Helper()
	h := &harness{
		cfg:      testConfig(mode),
		clock:    newFakeClock(),
		payments: payment.NewSandboxProvider(false),
		mail:     &recordingMailer{},
		events:   &eventLog{},
		metrics:  observability.NewMetrics(),
	}
	h.store = memory.NewStore().WithClock(h.clock.Now)
	h.dispatcher = events.NewInMemoryDispatcher(nil)
	for _, et := range []events.EventType{
		events.EventAccountActivated,
		events.EventConnectionRequested,
		events.EventConnectionAccepted,
		events.EventConnectionRejected,
		events.EventEntitlementGranted,
	} {
		h.dispatcher.Subscribe(et, h.events.record)
	}
	h.tokens = auth.NewTokenManager(h.cfg.Auth.JWTSecret, h.cfg.Auth.AccessTokenTTLMinutes)

	materializer := NewMaterializer(MaterializerDependencies{
		AccountRepo: h.store.Accounts(),
		Dispatcher:  h.dispatcher,
		Metrics:     h.metrics,
		Clock:       h.clock.Now,
	})
	finalizer, err := NewActivationFinalizer(mode, FinalizerDependencies{
		Materializer: materializer,
		Tokens:       h.tokens,
		PendingRepo:  h.store.Pending(),
		Payments:     h.payments,
		Pricing:      config.DefaultPricing(),
		URLs:         h.cfg.Payment,
	})
	if err != nil {
		t.Fatalf("finalizer: %v", err)
	}
	h.activation = NewActivationService(h.cfg, ActivationDependencies{
		PendingRepo:  h.store.Pending(),
		AccountRepo:  h.store.Accounts(),
		Mailer:       h.mail,
		Finalizer:    finalizer,
		Materializer: materializer,
		Payments:     h.payments,
		Tokens:       h.tokens,
		Clock:        h.clock.Now,
	})
	h.entitlements = NewEntitlementService(h.cfg, EntitlementDependencies{
		BuyerRepo:  h.store.Buyers(),
		Payments:   h.payments,
		Pricing:    config.DefaultPricing(),
		Dispatcher: h.dispatcher,
		Metrics:    h.metrics,
		Clock:      h.clock.Now,
	})
	h.connections = NewConnectionService(ConnectionDependencies{
		ConnectionRepo: h.store.Connections(),
		AccountRepo:    h.store.Accounts(),
		BuyerRepo:      h.store.Buyers(),
		Dispatcher:     h.dispatcher,
		Metrics:        h.metrics,
		Clock:          h.clock.Now,
	})
	h.auth = NewAuthService(AuthDependencies{AccountRepo: h.store.Accounts(), Tokens: h.tokens})
	return h
}

func buyerRegistration(email string) domain.Registration {
	return domain.Registration{
		Email:             email,
		FirstName:         "Jane",
		LastName:          "Doe",
		PhoneNumber:       "555-0100",
		Role:              domain.RoleBuyer,
		PreferredLocation: "Austin, TX",
		BudgetRange:       "300-400k",
	}
}

func realtorRegistration(email, last string) domain.Registration {
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

// pendingCode reads the code issued for email.
func (h *harness) pendingCode(t *testing.T, email string) string {
	t.Helper()
	pending, err := h.store.Pending().GetByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("pending for %s: %v", email, err)
	}
	return pending.Code
}

// seed creates an active account directly.
func (h *harness) seed(t *testing.T, reg domain.Registration) *domain.Account {
	t.Helper()
	account := reg.Account(nil)
	account.PasswordHash = "x"
	h.store.SeedAccount(account, reg.Profile())
	return account
}
