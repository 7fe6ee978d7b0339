package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/realty-service/internal/service"
)

// BillingHandler exposes the hosted billing portal.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler constructs handler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// Portal handles GET /billing/portal.
func (h *BillingHandler) Portal(c *fiber.Ctx) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}
	url, err := h.billing.PortalURL(c.UserContext(), account)
	if err != nil {
		return err
	}
	return c.Redirect(url, http.StatusSeeOther)
}
