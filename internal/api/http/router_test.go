package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/realty-service/internal/api/http/handlers"
	"github.com/spec-kit/realty-service/internal/auth"
	"github.com/spec-kit/realty-service/internal/config"
	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/events"
	"github.com/spec-kit/realty-service/internal/observability"
	"github.com/spec-kit/realty-service/internal/payment"
	"github.com/spec-kit/realty-service/internal/repository/memory"
	"github.com/spec-kit/realty-service/internal/service"
)

type testServer struct {
	app      *fiber.App
	store    *memory.Store
	payments *payment.SandboxProvider
	tokens   *auth.TokenManager
}

func newTestServer(t *testing.T, mode string, rate config.RateLimitConfig) *testServer {
	t.Helper()
	cfg := config.Config{
		App:        config.AppConfig{Name: "realty-service", Version: "test", RequestTimeoutSeconds: 5, AllowedOrigins: []string{"*"}},
		Auth:       config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: bcrypt.MinCost},
		Activation: config.ActivationConfig{Mode: mode},
		Payment: config.PaymentConfig{
			PublicBaseURL:   "https://realty.test",
			LoginURL:        "/login?success=account_created",
			SignupCancelURL: "/signup",
			DashboardURL:    "/buyer/dashboard",
		},
		Access:    config.AccessConfig{BaseDays: 30, ExtensionDays: 15, MaxExtensions: 2},
		RateLimit: rate,
	}

	store := memory.NewStore()
	payments := payment.NewSandboxProvider(false)
	dispatcher := events.NewInMemoryDispatcher(nil)
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	pricing := config.DefaultPricing()

	materializer := service.NewMaterializer(service.MaterializerDependencies{AccountRepo: store.Accounts(), Dispatcher: dispatcher, Metrics: metrics})
	finalizer, err := service.NewActivationFinalizer(mode, service.FinalizerDependencies{
		Materializer: materializer,
		Tokens:       tokens,
		PendingRepo:  store.Pending(),
		Payments:     payments,
		Pricing:      pricing,
		URLs:         cfg.Payment,
	})
	if err != nil {
		t.Fatalf("finalizer: %v", err)
	}
	activation := service.NewActivationService(cfg, service.ActivationDependencies{
		PendingRepo:  store.Pending(),
		AccountRepo:  store.Accounts(),
		Finalizer:    finalizer,
		Materializer: materializer,
		Payments:     payments,
		Tokens:       tokens,
	})
	entitlements := service.NewEntitlementService(cfg, service.EntitlementDependencies{
		BuyerRepo:  store.Buyers(),
		Payments:   payments,
		Pricing:    pricing,
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})
	connections := service.NewConnectionService(service.ConnectionDependencies{
		ConnectionRepo: store.Connections(),
		AccountRepo:    store.Accounts(),
		BuyerRepo:      store.Buyers(),
		Dispatcher:     dispatcher,
		Metrics:        metrics,
	})
	authService := service.NewAuthService(service.AuthDependencies{AccountRepo: store.Accounts(), Tokens: tokens})

	app := fiber.New()
	RegisterMiddlewares(app, cfg.App, zap.NewNop(), metrics)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{"database": store}),
		Signup:         handlers.NewSignupHandler(activation, authService, cfg.Payment.SignupCancelURL),
		Entitlements:   handlers.NewEntitlementHandler(entitlements, cfg.Payment.DashboardURL),
		Connections:    handlers.NewConnectionHandler(connections),
		Billing:        handlers.NewBillingHandler(service.NewBillingService(service.BillingDependencies{Payments: payments, URLs: cfg.Payment})),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Accounts()),
		Metrics:        metrics,
		RateLimiter:    NewRateLimiter(rate, nil),
	})
	return &testServer{app: app, store: store, payments: payments, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*nethttp.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, out
}

func (s *testServer) seed(t *testing.T, account *domain.Account, profile domain.Profile) string {
	t.Helper()
	account.IsActive = true
	s.store.SeedAccount(account, profile)
	session, err := s.tokens.Issue(account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return session.Token
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func signupBody(email string) map[string]any {
	return map[string]any{
		"email":              email,
		"password":           "password123",
		"first_name":         "Jane",
		"last_name":          "Doe",
		"role":               "BUYER",
		"preferred_location": "Austin, TX",
		"budget_range":       "400000-600000",
	}
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	s := newTestServer(t, config.ActivationModeImmediate, config.RateLimitConfig{})

	resp, body := s.do(t, nethttp.MethodPost, "/signup", "", signupBody("jane@example.com"))
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("signup status %d: %v", resp.StatusCode, body)
	}

	pending, err := s.store.Pending().GetByEmail(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	resp, body = s.do(t, nethttp.MethodPost, "/verify-otp", "", map[string]string{"email": "jane@example.com", "code": "00000000"})
	if resp.StatusCode != nethttp.StatusBadRequest || errorCode(body) != "INVALID_CODE" {
		t.Fatalf("wrong code: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, nethttp.MethodPost, "/verify-otp", "", map[string]string{"email": "jane@example.com", "code": pending.Code})
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("verify status %d: %v", resp.StatusCode, body)
	}
	data := body["data"].(map[string]any)
	if data["status"] != service.VerifyStatusActivated {
		t.Fatalf("unexpected verify body %v", body)
	}

	resp, body = s.do(t, nethttp.MethodPost, "/login", "", map[string]string{"email": "jane@example.com", "password": "password123"})
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("login status %d: %v", resp.StatusCode, body)
	}
	authBody := body["data"].(map[string]any)["auth"].(map[string]any)
	token := authBody["token"].(string)

	resp, body = s.do(t, nethttp.MethodPost, "/token/refresh", "", map[string]string{"refresh_token": authBody["refresh_token"].(string)})
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("refresh status %d: %v", resp.StatusCode, body)
	}
	resp, _ = s.do(t, nethttp.MethodPost, "/token/refresh", "", map[string]string{"refresh_token": token})
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Fatalf("access token accepted as refresh token: %d", resp.StatusCode)
	}

	resp, body = s.do(t, nethttp.MethodGet, "/entitlement", token, nil)
	if resp.StatusCode != nethttp.StatusOK || body["data"].(map[string]any)["active"] != false {
		t.Fatalf("entitlement status %d: %v", resp.StatusCode, body)
	}
}

func TestSignupValidationRendersErrorEnvelope(t *testing.T) {
	s := newTestServer(t, config.ActivationModeImmediate, config.RateLimitConfig{})
	payload := signupBody("jane@example.com")
	delete(payload, "budget_range")

	resp, body := s.do(t, nethttp.MethodPost, "/signup", "", payload)
	if resp.StatusCode != nethttp.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("status %d: %v", resp.StatusCode, body)
	}
	fields := body["error"].(map[string]any)["details"].(map[string]any)["fields"].(map[string]any)
	if fields["budget_range"] != "required" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestPaymentSuccessRedirects(t *testing.T) {
	s := newTestServer(t, config.ActivationModePayment, config.RateLimitConfig{})
	s.do(t, nethttp.MethodPost, "/signup", "", signupBody("jane@example.com"))
	pending, err := s.store.Pending().GetByEmail(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}

	_, body := s.do(t, nethttp.MethodPost, "/verify-otp", "", map[string]string{"email": "jane@example.com", "code": pending.Code})
	data := body["data"].(map[string]any)
	if data["status"] != service.VerifyStatusPaymentRequired {
		t.Fatalf("unexpected verify body %v", body)
	}
	redirect := data["redirect_url"].(string)
	sessionID := redirect[strings.Index(redirect, "=")+1:]

	resp, _ := s.do(t, nethttp.MethodGet, "/payment/success?session_id="+sessionID, "", nil)
	if resp.StatusCode != nethttp.StatusSeeOther || resp.Header.Get("Location") != "/signup" {
		t.Fatalf("unpaid session: %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	if err := s.payments.MarkPaid(sessionID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	resp, _ = s.do(t, nethttp.MethodGet, "/payment/success?session_id="+sessionID, "", nil)
	if resp.StatusCode != nethttp.StatusSeeOther || resp.Header.Get("Location") != "https://realty.test/login?success=account_created" {
		t.Fatalf("paid session: %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, body = s.do(t, nethttp.MethodPost, "/payment/callback", "", map[string]string{"session_id": sessionID})
	if resp.StatusCode != nethttp.StatusOK || body["data"].(map[string]any)["already_activated"] != true {
		t.Fatalf("replayed callback: %d %v", resp.StatusCode, body)
	}
}

func TestConnectionRoutesEnforceRoles(t *testing.T) {
	s := newTestServer(t, config.ActivationModeImmediate, config.RateLimitConfig{})
	buyer := &domain.Account{Email: "b@example.com", Role: domain.RoleBuyer, FirstName: "Jane"}
	buyerToken := s.seed(t, buyer, domain.Profile{Buyer: &domain.BuyerProfile{}})
	realtor := &domain.Account{Email: "r@example.com", Role: domain.RoleRealtor, LastName: "Stone"}
	realtorToken := s.seed(t, realtor, domain.Profile{Realtor: &domain.RealtorProfile{LicenseNumber: "TX-1"}})

	resp, body := s.do(t, nethttp.MethodGet, "/realtors", "", nil)
	if resp.StatusCode != nethttp.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("realtors: %d %v", resp.StatusCode, body)
	}

	resp, _ = s.do(t, nethttp.MethodPost, "/connections", realtorToken, map[string]string{"realtor_id": realtor.ID})
	if resp.StatusCode != nethttp.StatusForbidden {
		t.Fatalf("realtor creating request: %d", resp.StatusCode)
	}
	resp, _ = s.do(t, nethttp.MethodPost, "/connections", "", map[string]string{"realtor_id": realtor.ID})
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Fatalf("anonymous creating request: %d", resp.StatusCode)
	}

	resp, body = s.do(t, nethttp.MethodPost, "/connections", buyerToken, map[string]string{"realtor_id": realtor.ID})
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("create: %d %v", resp.StatusCode, body)
	}
	requestID := body["data"].(map[string]any)["id"].(string)

	resp, body = s.do(t, nethttp.MethodGet, "/connection-requests", realtorToken, nil)
	if resp.StatusCode != nethttp.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("pending list: %d %v", resp.StatusCode, body)
	}
	resp, _ = s.do(t, nethttp.MethodGet, "/connection-requests", buyerToken, nil)
	if resp.StatusCode != nethttp.StatusForbidden {
		t.Fatalf("buyer listing realtor queue: %d", resp.StatusCode)
	}

	resp, body = s.do(t, nethttp.MethodPost, "/connection-requests/"+requestID, realtorToken, map[string]string{"action": "accept"})
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("accept: %d %v", resp.StatusCode, body)
	}
	resp, body = s.do(t, nethttp.MethodPost, "/connection-requests/"+requestID, realtorToken, map[string]string{"action": "accept"})
	if resp.StatusCode != nethttp.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("second accept: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, nethttp.MethodGet, "/connections", buyerToken, nil)
	list := body["data"].([]any)
	if resp.StatusCode != nethttp.StatusOK || len(list) != 1 || list[0].(map[string]any)["status"] != "ACCEPTED" {
		t.Fatalf("buyer list: %d %v", resp.StatusCode, body)
	}
}

func TestEntitlementPurchaseRoutes(t *testing.T) {
	s := newTestServer(t, config.ActivationModeImmediate, config.RateLimitConfig{})
	buyer := &domain.Account{Email: "b@example.com", Role: domain.RoleBuyer}
	token := s.seed(t, buyer, domain.Profile{Buyer: &domain.BuyerProfile{}})

	resp, body := s.do(t, nethttp.MethodPost, "/entitlement/purchase", token, map[string]string{"kind": "extension"})
	if resp.StatusCode != nethttp.StatusBadRequest {
		t.Fatalf("extension without pass: %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, nethttp.MethodPost, "/entitlement/purchase", token, nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("purchase: %d %v", resp.StatusCode, body)
	}
	redirect := body["data"].(map[string]any)["redirect_url"].(string)
	sessionID := redirect[strings.Index(redirect, "=")+1:]
	if err := s.payments.MarkPaid(sessionID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	resp, _ = s.do(t, nethttp.MethodGet, "/entitlement/callback?session_id="+sessionID, "", nil)
	if resp.StatusCode != nethttp.StatusSeeOther || resp.Header.Get("Location") != "/buyer/dashboard" {
		t.Fatalf("callback: %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, body = s.do(t, nethttp.MethodGet, "/entitlement", token, nil)
	data := body["data"].(map[string]any)
	if resp.StatusCode != nethttp.StatusOK || data["active"] != true || data["extensions_left"].(float64) != 2 {
		t.Fatalf("status: %d %v", resp.StatusCode, body)
	}
}

func TestRateLimiter(t *testing.T) {
	s := newTestServer(t, config.ActivationModeImmediate, config.RateLimitConfig{Max: 2, Window: time.Minute})
	creds := map[string]string{"email": "nobody@example.com", "password": "password123"}

	for i := 0; i < 2; i++ {
		resp, _ := s.do(t, nethttp.MethodPost, "/login", "", creds)
		if resp.StatusCode != nethttp.StatusUnauthorized {
			t.Fatalf("attempt %d: %d", i+1, resp.StatusCode)
		}
	}
	resp, body := s.do(t, nethttp.MethodPost, "/login", "", creds)
	if resp.StatusCode != nethttp.StatusTooManyRequests || errorCode(body) != "RATE_LIMITED" {
		t.Fatalf("limited attempt: %d %v", resp.StatusCode, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, config.ActivationModeImmediate, config.RateLimitConfig{})

	resp, body := s.do(t, nethttp.MethodGet, "/health/ready", "", nil)
	if resp.StatusCode != nethttp.StatusOK || body["status"] != "ready" {
		t.Fatalf("ready: %d %v", resp.StatusCode, body)
	}

	resp, _ = s.do(t, nethttp.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
}

func TestBillingPortal(t *testing.T) {
	s := newTestServer(t, config.ActivationModePayment, config.RateLimitConfig{})
	ref := "cus_42"
	seller := &domain.Account{Email: "s@example.com", Role: domain.RoleSeller, PaymentCustomerRef: &ref}
	sellerToken := s.seed(t, seller, domain.Profile{Seller: &domain.SellerProfile{}})
	buyer := &domain.Account{Email: "b@example.com", Role: domain.RoleBuyer}
	buyerToken := s.seed(t, buyer, domain.Profile{Buyer: &domain.BuyerProfile{}})

	resp, _ := s.do(t, nethttp.MethodGet, "/billing/portal", "", nil)
	if resp.StatusCode != nethttp.StatusUnauthorized {
		t.Fatalf("anonymous portal: %d", resp.StatusCode)
	}

	resp, body := s.do(t, nethttp.MethodGet, "/billing/portal", buyerToken, nil)
	if resp.StatusCode != nethttp.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("portal without customer: %d %v", resp.StatusCode, body)
	}

	resp, _ = s.do(t, nethttp.MethodGet, "/billing/portal", sellerToken, nil)
	location := resp.Header.Get("Location")
	if resp.StatusCode != nethttp.StatusSeeOther || !strings.HasPrefix(location, "https://billing.sandbox.test/p/cus_42") {
		t.Fatalf("portal redirect: %d %s", resp.StatusCode, location)
	}
	if !strings.Contains(location, "seller%2Fdashboard") {
		t.Fatalf("portal must return to the seller dashboard: %s", location)
	}
}
