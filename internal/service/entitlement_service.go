package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/realty-service/internal/config"
	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/events"
	"github.com/spec-kit/realty-service/internal/observability"
	"github.com/spec-kit/realty-service/internal/payment"
	"github.com/spec-kit/realty-service/internal/repository"
	apperrors "github.com/spec-kit/realty-service/pkg/util"
)

// Entitlement mutation kinds recorded in the event ledger.
const (
	EntitlementKindGrant  = "grant"
	EntitlementKindExtend = "extend"
)

// Purchase kinds accepted by StartPurchase.
const (
	PurchaseAccessPass = "pass"
	PurchaseExtension  = "extension"
)

// EntitlementService manages the buyer access pass.
type EntitlementService struct {
	buyers   repository.BuyerRepository
	payments payment.Provider
	pricing  config.Pricing
	policy   domain.AccessPolicy
	urls     config.PaymentConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
	events   publisher
	now      func() time.Time
}

// EntitlementDependencies bundles collaborators for the entitlement service.
type EntitlementDependencies struct {
	BuyerRepo  repository.BuyerRepository
	Payments   payment.Provider
	Pricing    config.Pricing
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewEntitlementService builds the service.
func NewEntitlementService(cfg config.Config, deps EntitlementDependencies) *EntitlementService {
	logger := loggerOrNop(deps.Logger)
	now := clockOrDefault(deps.Clock)
	return &EntitlementService{
		buyers:   deps.BuyerRepo,
		payments: deps.Payments,
		pricing:  deps.Pricing,
		policy: domain.AccessPolicy{
			BaseDays:      cfg.Access.BaseDays,
			ExtensionDays: cfg.Access.ExtensionDays,
			MaxExtensions: cfg.Access.MaxExtensions,
		},
		urls:    cfg.Payment,
		metrics: deps.Metrics,
		logger:  logger,
		events:  publisher{dispatcher: deps.Dispatcher, now: now, logger: logger},
		now:     now,
	}
}

// Policy returns the access pass policy in force.
func (s *EntitlementService) Policy() domain.AccessPolicy {
	return s.policy
}

// GrantOrExtend applies a paid grant of days to the buyer's pass. eventID
// identifies the payment; a replayed eventID leaves the pass unchanged.
func (s *EntitlementService) GrantOrExtend(ctx context.Context, buyerID string, days int, eventID string) (*domain.Entitlement, error) {
	if days <= 0 {
		return nil, apperrors.NewValidationError("grant duration must be positive", map[string]any{"days": days})
	}
	return s.mutate(ctx, buyerID, eventID, EntitlementKindGrant, func(access *domain.Entitlement) error {
		access.GrantOrExtend(s.now(), days)
		return nil
	})
}

// Extend consumes one bounded extension on an active pass.
func (s *EntitlementService) Extend(ctx context.Context, buyerID, eventID string) (*domain.Entitlement, error) {
	return s.mutate(ctx, buyerID, eventID, EntitlementKindExtend, func(access *domain.Entitlement) error {
		return access.Extend(s.now(), s.policy)
	})
}

func (s *EntitlementService) mutate(ctx context.Context, buyerID, eventID, kind string, fn repository.EntitlementMutation) (*domain.Entitlement, error) {
	ctx, span := observability.Tracer().Start(ctx, "entitlement."+kind)
	defer span.End()
	span.SetAttributes(attribute.String("buyer.id", buyerID), attribute.String("payment.event_id", eventID))

	if strings.TrimSpace(eventID) == "" {
		return nil, apperrors.NewValidationError("payment event id is required", nil)
	}

	access, err := s.buyers.UpdateEntitlement(ctx, buyerID, eventID, kind, fn)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrDuplicateEvent):
		s.metrics.RecordEntitlement(kind, "duplicate")
		s.logger.Info("payment event already applied", zap.String("buyer_id", buyerID), zap.String("event_id", eventID))
		profile, err := s.buyers.GetProfile(ctx, buyerID)
		if err != nil {
			return nil, err
		}
		return &profile.Access, nil
	case isNotFound(err):
		return nil, apperrors.NewNotFound("buyer", map[string]any{"buyer_id": buyerID})
	case errors.Is(err, domain.ErrNoActivePass):
		s.metrics.RecordEntitlement(kind, "rejected")
		return nil, apperrors.NewValidationError("an active access pass is required to extend", nil)
	case errors.Is(err, domain.ErrExtensionLimitExceeded):
		s.metrics.RecordEntitlement(kind, "rejected")
		return nil, apperrors.NewExtensionLimitExceeded(s.policy.MaxExtensions)
	default:
		span.RecordError(err)
		return nil, err
	}

	s.metrics.RecordEntitlement(kind, "applied")
	s.logger.Info("access pass updated",
		zap.String("buyer_id", buyerID),
		zap.String("kind", kind),
		zap.Timep("expires_at", access.ExpiresAt),
		zap.Int("extensions_used", access.ExtensionsUsed))

	payload := events.EntitlementGrantedPayload{Kind: kind, EventID: eventID, ExtensionsUsed: access.ExtensionsUsed}
	if access.ExpiresAt != nil {
		payload.ExpiresAt = *access.ExpiresAt
	}
	s.events.publish(ctx, events.Event{
		Type:      events.EventEntitlementGranted,
		SubjectID: buyerID,
		Actor:     events.Actor{AccountID: buyerID, Role: domain.RoleBuyer},
		Payload:   payload,
	})
	return access, nil
}

// IsActive reports whether the buyer holds an unexpired pass.
func (s *EntitlementService) IsActive(ctx context.Context, buyerID string) (bool, error) {
	profile, err := s.buyers.GetProfile(ctx, buyerID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return profile.Access.IsActive(s.now()), nil
}

// EntitlementStatus summarizes a buyer's pass.
type EntitlementStatus struct {
	ExpiresAt      *time.Time
	Active         bool
	ExtensionsUsed int
	ExtensionsLeft int
	MaxExtensions  int
}

// Status returns the buyer's pass summary.
func (s *EntitlementService) Status(ctx context.Context, buyerID string) (*EntitlementStatus, error) {
	profile, err := s.buyers.GetProfile(ctx, buyerID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("buyer", map[string]any{"buyer_id": buyerID})
		}
		return nil, err
	}
	access := profile.Access
	return &EntitlementStatus{
		ExpiresAt:      access.ExpiresAt,
		Active:         access.IsActive(s.now()),
		ExtensionsUsed: access.ExtensionsUsed,
		ExtensionsLeft: access.ExtensionsLeft(s.policy),
		MaxExtensions:  s.policy.MaxExtensions,
	}, nil
}

// CanViewProtectedDetails decides whether viewer sees the protected details
// of a listing owned by ownerID.
func (s *EntitlementService) CanViewProtectedDetails(ctx context.Context, viewer *domain.Account, ownerID string) (bool, error) {
	if viewer == nil || !viewer.IsActive {
		return false, nil
	}
	if viewer.IsStaff || viewer.ID == ownerID {
		return true, nil
	}
	if viewer.Role != domain.RoleBuyer {
		return false, nil
	}
	return s.IsActive(ctx, viewer.ID)
}

// StartPurchase opens a checkout for an access pass or an extension and
// returns the redirect URL. Extensions are refused up front when the pass
// is inactive or out of extensions.
func (s *EntitlementService) StartPurchase(ctx context.Context, buyer *domain.Account, kind string) (string, error) {
	if buyer == nil || buyer.Role != domain.RoleBuyer {
		return "", apperrors.NewForbidden("only buyers can purchase an access pass")
	}
	if kind == "" {
		kind = PurchaseAccessPass
	}

	var (
		item    config.PriceItem
		purpose string
	)
	switch kind {
	case PurchaseAccessPass:
		item, purpose = s.pricing.AccessPass(), payment.PurposeAccessPass
	case PurchaseExtension:
		status, err := s.Status(ctx, buyer.ID)
		if err != nil {
			return "", err
		}
		if !status.Active {
			return "", apperrors.NewValidationError("an active access pass is required to extend", nil)
		}
		if status.ExtensionsLeft == 0 {
			return "", apperrors.NewExtensionLimitExceeded(s.policy.MaxExtensions)
		}
		item, purpose = s.pricing.AccessExtension(), payment.PurposeAccessExtension
	default:
		return "", apperrors.NewValidationError("unknown purchase kind", map[string]any{
			"fields": map[string]string{"kind": "must be pass or extension"},
		})
	}

	req := payment.CheckoutRequest{
		CustomerEmail: buyer.Email,
		LineItems: []payment.LineItem{{
			Name:        item.Name,
			Description: item.Description,
			AmountCents: item.AmountCents,
			Currency:    s.pricing.Currency(),
			Quantity:    1,
		}},
		SuccessURL:    absoluteURL(s.urls.PublicBaseURL, "/entitlement/callback?session_id="+payment.SessionIDPlaceholder),
		CancelURL:     absoluteURL(s.urls.PublicBaseURL, s.urls.DashboardURL),
		CorrelationID: "ap_" + ksuid.New().String(),
		Metadata: map[string]string{
			"buyer_id": buyer.ID,
			"email":    buyer.Email,
			"purpose":  purpose,
		},
	}
	if buyer.PaymentCustomerRef != nil {
		req.CustomerRef = *buyer.PaymentCustomerRef
	}

	redirect, err := s.payments.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.logger.Warn("create access pass checkout failed", zap.String("buyer_id", buyer.ID), zap.Error(err))
		return "", apperrors.NewPaymentProviderError(err)
	}
	return redirect, nil
}

// CompletePurchase applies a paid access pass checkout. The checkout session
// id is the deduplication key.
func (s *EntitlementService) CompletePurchase(ctx context.Context, sessionID string) (*domain.Entitlement, error) {
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

	buyerID := checkout.Metadata["buyer_id"]
	if buyerID == "" {
		return nil, apperrors.NewValidationError("checkout session has no buyer", nil)
	}

	switch checkout.Metadata["purpose"] {
	case payment.PurposeAccessPass:
		return s.GrantOrExtend(ctx, buyerID, s.policy.BaseDays, checkout.ID)
	case payment.PurposeAccessExtension:
		ent, err := s.Extend(ctx, buyerID, checkout.ID)
		if apperrors.IsCode(err, apperrors.CodeExtensionLimitExceeded) || apperrors.IsCode(err, apperrors.CodeValidation) {
			// Paid but not applied; the session id is what a refund needs.
			s.logger.Warn("paid extension refused",
				zap.String("session_id", checkout.ID),
				zap.String("buyer_id", buyerID),
				zap.String("customer_ref", checkout.CustomerRef),
				zap.Error(err))
		}
		return ent, err
	}
	return nil, apperrors.NewValidationError("checkout session is not an access pass purchase", nil)
}
