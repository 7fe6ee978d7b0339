package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/realty-service/internal/config"
	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/payment"
	apperrors "github.com/spec-kit/realty-service/pkg/util"
)

// BillingService opens the payment provider's self-service portal for
// accounts that were created through a paid checkout.
type BillingService struct {
	payments payment.Provider
	urls     config.PaymentConfig
	logger   *zap.Logger
}

// BillingDependencies bundles collaborators for the billing service.
type BillingDependencies struct {
	Payments payment.Provider
	URLs     config.PaymentConfig
	Logger   *zap.Logger
}

// NewBillingService builds the service.
func NewBillingService(deps BillingDependencies) *BillingService {
	return &BillingService{payments: deps.Payments, urls: deps.URLs, logger: loggerOrNop(deps.Logger)}
}

// PortalURL returns the portal URL for account. Accounts without a stored
// customer reference have no billing account.
func (s *BillingService) PortalURL(ctx context.Context, account *domain.Account) (string, error) {
	if account.PaymentCustomerRef == nil || strings.TrimSpace(*account.PaymentCustomerRef) == "" {
		return "", apperrors.NewNotFound("billing account", map[string]any{"account_id": account.ID})
	}

	url, err := s.payments.CreatePortalSession(ctx, payment.PortalRequest{
		CustomerRef: *account.PaymentCustomerRef,
		ReturnURL:   absoluteURL(s.urls.PublicBaseURL, s.dashboardPath(account.Role)),
	})
	if err != nil {
		s.logger.Warn("create billing portal failed", zap.String("account_id", account.ID), zap.Error(err))
		return "", apperrors.NewPaymentProviderError(err)
	}
	return url, nil
}

func (s *BillingService) dashboardPath(role domain.Role) string {
	switch role {
	case domain.RoleBuyer:
		if s.urls.DashboardURL != "" {
			return s.urls.DashboardURL
		}
		return "/buyer/dashboard"
	case domain.RoleSeller, domain.RoleRealtor, domain.RolePartner:
		return "/" + strings.ToLower(string(role)) + "/dashboard"
	}
	return "/"
}
