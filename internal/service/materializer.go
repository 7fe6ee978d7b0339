package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/events"
	"github.com/spec-kit/realty-service/internal/observability"
	"github.com/spec-kit/realty-service/internal/repository"
	apperrors "github.com/spec-kit/realty-service/pkg/util"
)

// Activation paths recorded in metrics and events.
const (
	activationPathDirect  = "direct"
	activationPathPayment = "payment"
)

// Materializer turns a verified pending registration into an active account.
type Materializer struct {
	accounts repository.AccountRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
	events   publisher
}

// MaterializerDependencies bundles collaborators for the materializer.
type MaterializerDependencies struct {
	AccountRepo repository.AccountRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewMaterializer constructs a Materializer.
func NewMaterializer(deps MaterializerDependencies) *Materializer {
	logger := loggerOrNop(deps.Logger)
	return &Materializer{
		accounts: deps.AccountRepo,
		metrics:  deps.Metrics,
		logger:   logger,
		events:   publisher{dispatcher: deps.Dispatcher, now: clockOrDefault(deps.Clock), logger: logger},
	}
}

// Materialize creates the account and its profile, consuming pending. It
// returns repository.ErrPendingConsumed when another caller got there first.
func (m *Materializer) Materialize(ctx context.Context, pending *domain.PendingRegistration, customerRef *string, path string) (*domain.Account, error) {
	ctx, span := observability.Tracer().Start(ctx, "activation.materialize")
	defer span.End()

	reg := pending.Payload
	reg.Email = pending.Email
	if problems := reg.Problems(); problems != nil {
		return nil, apperrors.NewValidationError("stored registration is invalid", map[string]any{"fields": problems})
	}
	if reg.PasswordHash == "" {
		return nil, apperrors.NewValidationError("stored registration has no credential", nil)
	}

	account := reg.Account(customerRef)
	profile := reg.Profile()
	span.SetAttributes(attribute.String("account.role", string(account.Role)), attribute.String("activation.path", path))

	if err := m.accounts.Materialize(ctx, pending, account, profile); err != nil {
		switch {
		case errors.Is(err, repository.ErrPendingConsumed):
			return nil, err
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, apperrors.NewValidationError("an account with this email already exists", map[string]any{
				"fields": map[string]string{"email": "already registered"},
			})
		}
		span.RecordError(err)
		return nil, err
	}

	m.metrics.RecordActivation(string(account.Role), path)
	m.logger.Info("account activated",
		zap.String("account_id", account.ID),
		zap.String("role", string(account.Role)),
		zap.String("path", path))

	payload := events.AccountActivatedPayload{
		Email:        account.Email,
		Role:         account.Role,
		FullName:     account.FullName(),
		PaymentGated: path == activationPathPayment,
	}
	if pending.CorrelationID != nil {
		payload.CorrelationID = *pending.CorrelationID
	}
	m.events.publish(ctx, events.Event{
		Type:      events.EventAccountActivated,
		SubjectID: account.ID,
		Actor:     events.Actor{AccountID: account.ID, Role: account.Role},
		Payload:   payload,
	})
	return account, nil
}
