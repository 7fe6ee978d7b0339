package service

import (
	"context"
	"strings"
	"testing"

	"github.com/spec-kit/realty-service/internal/config"
)

func TestNotificationsFollowEvents(t *testing.T) {
	h := newHarness(t, config.ActivationModeImmediate)
	ctx := context.Background()
	NewNotificationService(h.dispatcher, h.store.Accounts(), h.mail, nil).RegisterHandlers()

	buyer := h.seed(t, buyerRegistration("jane@example.com"))
	r1 := h.seed(t, realtorRegistration("r1@example.com", "Adams"))
	r2 := h.seed(t, realtorRegistration("r2@example.com", "Baker"))

	req1, err := h.connections.CreateRequest(ctx, buyer.ID, r1.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.connections.CreateRequest(ctx, buyer.ID, r2.ID); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := h.mail.To("r1@example.com"); len(got) != 1 || !strings.Contains(got[0].Body, "Jane Doe") {
		t.Fatalf("realtor not notified: %+v", got)
	}

	if _, err := h.connections.RespondToRequest(ctx, req1.ID, r1.ID, ActionAccept); err != nil {
		t.Fatalf("accept: %v", err)
	}
	buyerMail := h.mail.To("jane@example.com")
	if len(buyerMail) != 1 || !strings.Contains(buyerMail[0].Body, "Riley Adams") {
		t.Fatalf("buyer must get exactly the match mail, got %+v", buyerMail)
	}

	if _, err := h.entitlements.GrantOrExtend(ctx, buyer.ID, 30, "evt_1"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if got := h.mail.To("jane@example.com"); len(got) != 2 || got[1].Subject != "Your access pass is active" {
		t.Fatalf("grant mail missing: %+v", got)
	}
}

func TestWelcomeMailOnActivation(t *testing.T) {
	h := newHarness(t, config.ActivationModeImmediate)
	ctx := context.Background()
	NewNotificationService(h.dispatcher, h.store.Accounts(), h.mail, nil).RegisterHandlers()

	if _, err := h.activation.InitiateSignup(ctx, buyerRegistration("jane@example.com"), "password123"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := h.activation.VerifyCode(ctx, "jane@example.com", h.pendingCode(t, "jane@example.com")); err != nil {
		t.Fatalf("verify: %v", err)
	}
	mails := h.mail.To("jane@example.com")
	if len(mails) != 2 || mails[1].Subject != "Welcome aboard" {
		t.Fatalf("expected code and welcome mails, got %+v", mails)
	}
}
