package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spec-kit/realty-service/internal/config"
	"github.com/spec-kit/realty-service/internal/domain"
	apperrors "github.com/spec-kit/realty-service/pkg/util"
)

func TestPortalURLReturnsToRoleDashboard(t *testing.T) {
	h := newHarness(t, config.ActivationModePayment)
	billing := NewBillingService(BillingDependencies{Payments: h.payments, URLs: h.cfg.Payment})
	ref := "cus_123"

	cases := []struct {
		role      domain.Role
		returnURL string
	}{
		{domain.RoleBuyer, "https://realty.test/buyer/dashboard"},
		{domain.RoleSeller, "https://realty.test/seller/dashboard"},
		{domain.RoleRealtor, "https://realty.test/realtor/dashboard"},
		{domain.RolePartner, "https://realty.test/partner/dashboard"},
	}
	for i, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			account := &domain.Account{ID: "acc-" + string(tc.role), Role: tc.role, PaymentCustomerRef: &ref}
			url, err := billing.PortalURL(context.Background(), account)
			if err != nil {
				t.Fatalf("portal: %v", err)
			}
			if !strings.HasPrefix(url, "https://billing.sandbox.test/p/cus_123") {
				t.Fatalf("unexpected portal url %q", url)
			}
			portals := h.payments.Portals()
			if len(portals) != i+1 || portals[i].CustomerRef != ref || portals[i].ReturnURL != tc.returnURL {
				t.Fatalf("unexpected portal request %+v", portals)
			}
		})
	}
}

func TestPortalURLWithoutBillingAccount(t *testing.T) {
	h := newHarness(t, config.ActivationModePayment)
	billing := NewBillingService(BillingDependencies{Payments: h.payments, URLs: h.cfg.Payment})
	blank := " "

	for _, ref := range []*string{nil, &blank} {
		_, err := billing.PortalURL(context.Background(), &domain.Account{ID: "acc-1", Role: domain.RoleBuyer, PaymentCustomerRef: ref})
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if len(h.payments.Portals()) != 0 {
		t.Fatalf("no portal session may be opened without a customer")
	}
}

func TestPortalURLProviderFailure(t *testing.T) {
	h := newHarness(t, config.ActivationModePayment)
	h.payments.WithError(errors.New("stripe unavailable"))
	billing := NewBillingService(BillingDependencies{Payments: h.payments, URLs: h.cfg.Payment})
	ref := "cus_123"

	_, err := billing.PortalURL(context.Background(), &domain.Account{ID: "acc-1", Role: domain.RoleBuyer, PaymentCustomerRef: &ref})
	if !apperrors.IsCode(err, apperrors.CodePaymentProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
