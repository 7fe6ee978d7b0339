package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/realty-service/internal/auth"
	"github.com/spec-kit/realty-service/internal/config"
	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/mailer"
	"github.com/spec-kit/realty-service/internal/observability"
	"github.com/spec-kit/realty-service/internal/payment"
	"github.com/spec-kit/realty-service/internal/repository"
	apperrors "github.com/spec-kit/realty-service/pkg/util"
)

// ActivationService drives signup from intake to an active account.
type ActivationService struct {
	pending      repository.PendingRegistrationRepository
	accounts     repository.AccountRepository
	mailer       mailer.Mailer
	finalizer    ActivationFinalizer
	materializer *Materializer
	payments     payment.Provider
	tokens       *auth.TokenManager
	bcryptCost   int
	loginURL     string
	logger       *zap.Logger
	now          func() time.Time
}

// ActivationDependencies bundles collaborators for the activation service.
type ActivationDependencies struct {
	PendingRepo  repository.PendingRegistrationRepository
	AccountRepo  repository.AccountRepository
	Mailer       mailer.Mailer
	Finalizer    ActivationFinalizer
	Materializer *Materializer
	Payments     payment.Provider
	Tokens       *auth.TokenManager
	Logger       *zap.Logger
	Clock        func() time.Time
}

// NewActivationService builds the service.
func NewActivationService(cfg config.Config, deps ActivationDependencies) *ActivationService {
	return &ActivationService{
		pending:      deps.PendingRepo,
		accounts:     deps.AccountRepo,
		mailer:       deps.Mailer,
		finalizer:    deps.Finalizer,
		materializer: deps.Materializer,
		payments:     deps.Payments,
		tokens:       deps.Tokens,
		bcryptCost:   cfg.Auth.BcryptCost,
		loginURL:     absoluteURL(cfg.Payment.PublicBaseURL, cfg.Payment.LoginURL),
		logger:       loggerOrNop(deps.Logger),
		now:          clockOrDefault(deps.Clock),
	}
}

// Mode reports the configured activation mode.
func (s *ActivationService) Mode() string {
	return s.finalizer.Mode()
}

// SignupResult acknowledges a signup awaiting code verification.
type SignupResult struct {
	Email     string
	ExpiresAt time.Time
}

// InitiateSignup validates the registration, issues a fresh code and
// replaces any earlier attempt for the same e-mail. It never creates an account.
func (s *ActivationService) InitiateSignup(ctx context.Context, reg domain.Registration, password string) (*SignupResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "activation.initiate_signup")
	defer span.End()

	reg.Email = domain.NormalizeEmail(reg.Email)
	reg.Role = domain.Role(strings.ToUpper(strings.TrimSpace(string(reg.Role))))

	problems := reg.Problems()
	if len(password) < domain.MinPasswordLength {
		if problems == nil {
			problems = map[string]string{}
		}
		if password == "" {
			problems["password"] = "required"
		} else {
			problems["password"] = fmt.Sprintf("must be at least %d characters", domain.MinPasswordLength)
		}
	}
	if problems != nil {
		return nil, apperrors.NewValidationError("registration is invalid", map[string]any{"fields": problems})
	}

	if _, err := s.accounts.GetByEmail(ctx, reg.Email); err == nil {
		return nil, apperrors.NewValidationError("an account with this email already exists; please log in", map[string]any{
			"fields": map[string]string{"email": "already registered"},
		})
	} else if !isNotFound(err) {
		return nil, err
	}

	code, err := auth.GenerateNumericCode(domain.OTPLength)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	reg.PasswordHash = hash

	pending := &domain.PendingRegistration{
		Email:        reg.Email,
		Code:         code,
		CodeIssuedAt: s.now(),
		Payload:      reg,
	}
	if err := s.pending.Upsert(ctx, pending); err != nil {
		return nil, err
	}

	s.sendCode(ctx, pending)
	s.logger.Info("signup code issued", zap.String("email", pending.Email), zap.String("role", string(reg.Role)))
	return &SignupResult{Email: pending.Email, ExpiresAt: pending.ExpiresAt()}, nil
}

// sendCode is best effort: a lost code is recovered by signing up again.
func (s *ActivationService) sendCode(ctx context.Context, pending *domain.PendingRegistration) {
	if s.mailer == nil {
		return
	}
	msg := mailer.Message{
		To:      pending.Email,
		Subject: "Your verification code",
		Body: fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
			pending.Code, int(domain.OTPTTL/time.Minute)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("send verification code failed", zap.String("email", pending.Email), zap.Error(err))
	}
}

// VerifyCode checks the presented code and hands a match to the finalizer.
func (s *ActivationService) VerifyCode(ctx context.Context, email, code string) (*VerifyResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "activation.verify_code")
	defer span.End()

	email = domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, apperrors.NewValidationError("email and code are required", nil)
	}

	pending, err := s.pending.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return s.alreadyVerified(ctx, email)
		}
		return nil, err
	}

	if pending.Expired(s.now()) {
		return nil, apperrors.NewExpired("verification code expired; please sign up again")
	}
	if !auth.IsNumericCode(code, domain.OTPLength) || !auth.CodesEqual(pending.Code, code) {
		return nil, apperrors.NewInvalidCode("verification code does not match")
	}

	result, err := s.finalizer.Finalize(ctx, pending)
	if errors.Is(err, repository.ErrPendingConsumed) {
		return s.alreadyVerified(ctx, email)
	}
	return result, err
}

func (s *ActivationService) alreadyVerified(ctx context.Context, email string) (*VerifyResult, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err == nil && account.IsActive {
		return &VerifyResult{Status: VerifyStatusAlreadyVerified, Account: account}, nil
	}
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return nil, apperrors.NewNotFound("pending registration", map[string]any{"email": email})
}

// ConfirmResult is the outcome of a signup payment confirmation.
type ConfirmResult struct {
	Account          *domain.Account
	Session          *domain.Session
	AlreadyActivated bool
	RedirectURL      string
}

// ConfirmPayment materializes the account behind a paid signup checkout.
// Replayed or concurrent confirmations report AlreadyActivated.
func (s *ActivationService) ConfirmPayment(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "activation.confirm_payment")
	defer span.End()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperrors.NewValidationError("checkout session id is required", nil)
	}

	checkout, err := s.payments.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.NewPaymentProviderError(err)
	}
	if !checkout.Paid() {
		return nil, apperrors.NewValidationError("payment not completed", map[string]any{"payment_status": checkout.PaymentStatus})
	}
	if purpose := checkout.Metadata["purpose"]; purpose != "" && purpose != payment.PurposeSignup {
		return nil, apperrors.NewValidationError("checkout session is not a signup payment", nil)
	}
	if checkout.CorrelationID == "" {
		return nil, apperrors.NewValidationError("checkout session has no correlation id", nil)
	}

	pending, err := s.pending.GetByCorrelationID(ctx, checkout.CorrelationID)
	if err != nil {
		if isNotFound(err) {
			return s.alreadyActivated(ctx, checkout)
		}
		return nil, err
	}

	var customerRef *string
	if checkout.CustomerRef != "" {
		ref := checkout.CustomerRef
		customerRef = &ref
	}
	account, err := s.materializer.Materialize(ctx, pending, customerRef, activationPathPayment)
	if err != nil {
		if errors.Is(err, repository.ErrPendingConsumed) {
			return s.alreadyActivated(ctx, checkout)
		}
		return nil, err
	}

	session, err := s.tokens.Issue(account)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &ConfirmResult{Account: account, Session: session, RedirectURL: s.loginURL}, nil
}

func (s *ActivationService) alreadyActivated(ctx context.Context, checkout *payment.Session) (*ConfirmResult, error) {
	email := checkout.Metadata["email"]
	if email == "" {
		email = checkout.CustomerEmail
	}
	if email != "" {
		account, err := s.accounts.GetByEmail(ctx, email)
		if err == nil && account.IsActive {
			return &ConfirmResult{Account: account, AlreadyActivated: true, RedirectURL: s.loginURL}, nil
		}
		if err != nil && !isNotFound(err) {
			return nil, err
		}
	}
	return nil, apperrors.NewNotFound("pending registration", map[string]any{"correlation_id": checkout.CorrelationID})
}
