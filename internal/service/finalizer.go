package service

import (
	"context"
	"fmt"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/spec-kit/realty-service/internal/auth"
	"github.com/spec-kit/realty-service/internal/config"
	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/payment"
	"github.com/spec-kit/realty-service/internal/repository"
	apperrors "github.com/spec-kit/realty-service/pkg/util"
)

// Verification outcomes.
const (
	VerifyStatusActivated       = "activated"
	VerifyStatusPaymentRequired = "payment_required"
	VerifyStatusAlreadyVerified = "already_verified"
)

// VerifyResult is the outcome of a successful code verification.
type VerifyResult struct {
	Status      string
	Account     *domain.Account
	Session     *domain.Session
	RedirectURL string
}

// ActivationFinalizer completes activation once a code has been verified.
type ActivationFinalizer interface {
	Mode() string
	Finalize(ctx context.Context, pending *domain.PendingRegistration) (*VerifyResult, error)
}

// FinalizerDependencies bundles collaborators for both finalizers.
type FinalizerDependencies struct {
	Materializer *Materializer
	Tokens       *auth.TokenManager
	PendingRepo  repository.PendingRegistrationRepository
	Payments     payment.Provider
	Pricing      config.Pricing
	URLs         config.PaymentConfig
	Logger       *zap.Logger
}

// NewActivationFinalizer picks the finalizer for the deployment mode.
func NewActivationFinalizer(mode string, deps FinalizerDependencies) (ActivationFinalizer, error) {
	switch mode {
	case config.ActivationModeImmediate:
		return &ImmediateFinalizer{materializer: deps.Materializer, tokens: deps.Tokens}, nil
	case config.ActivationModePayment:
		return &PaymentGatedFinalizer{
			pending:  deps.PendingRepo,
			payments: deps.Payments,
			pricing:  deps.Pricing,
			urls:     deps.URLs,
			logger:   loggerOrNop(deps.Logger),
		}, nil
	}
	return nil, fmt.Errorf("unknown activation mode %q", mode)
}

// ImmediateFinalizer materializes the account as soon as the code matches.
type ImmediateFinalizer struct {
	materializer *Materializer
	tokens       *auth.TokenManager
}

func (f *ImmediateFinalizer) Mode() string { return config.ActivationModeImmediate }

func (f *ImmediateFinalizer) Finalize(ctx context.Context, pending *domain.PendingRegistration) (*VerifyResult, error) {
	account, err := f.materializer.Materialize(ctx, pending, nil, activationPathDirect)
	if err != nil {
		return nil, err
	}
	session, err := f.tokens.Issue(account)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &VerifyResult{Status: VerifyStatusActivated, Account: account, Session: session}, nil
}

// PaymentGatedFinalizer sends the verified signup to hosted checkout. The
// pending registration stays in place until the payment is confirmed.
type PaymentGatedFinalizer struct {
	pending  repository.PendingRegistrationRepository
	payments payment.Provider
	pricing  config.Pricing
	urls     config.PaymentConfig
	logger   *zap.Logger
}

func (f *PaymentGatedFinalizer) Mode() string { return config.ActivationModePayment }

func (f *PaymentGatedFinalizer) Finalize(ctx context.Context, pending *domain.PendingRegistration) (*VerifyResult, error) {
	correlationID, err := f.pending.BindCorrelationID(ctx, pending.ID, pending.Code, "su_"+ksuid.New().String())
	if err != nil {
		return nil, err
	}

	reg := pending.Payload
	price := f.pricing.Signup(string(reg.Role), reg.Plan())
	redirect, err := f.payments.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		CustomerEmail:  pending.Email,
		CreateCustomer: true,
		LineItems: []payment.LineItem{{
			Name:        price.Name,
			Description: price.Description,
			AmountCents: price.AmountCents,
			Currency:    f.pricing.Currency(),
			Quantity:    1,
		}},
		SuccessURL:    absoluteURL(f.urls.PublicBaseURL, "/payment/success?session_id="+payment.SessionIDPlaceholder),
		CancelURL:     absoluteURL(f.urls.PublicBaseURL, f.urls.SignupCancelURL),
		CorrelationID: correlationID,
		Metadata: map[string]string{
			"email":   pending.Email,
			"role":    string(reg.Role),
			"plan":    reg.Plan(),
			"purpose": payment.PurposeSignup,
		},
	})
	if err != nil {
		f.logger.Warn("create signup checkout failed", zap.String("email", pending.Email), zap.Error(err))
		return nil, apperrors.NewPaymentProviderError(err)
	}

	f.logger.Info("signup checkout created",
		zap.String("email", pending.Email),
		zap.String("correlation_id", correlationID),
		zap.Int64("amount_cents", price.AmountCents))
	return &VerifyResult{Status: VerifyStatusPaymentRequired, RedirectURL: redirect}, nil
}

