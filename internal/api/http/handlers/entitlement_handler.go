package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/realty-service/internal/api/dto"
	"github.com/spec-kit/realty-service/internal/service"
)

// EntitlementHandler exposes access pass endpoints for buyers.
type EntitlementHandler struct {
	entitlements *service.EntitlementService
	dashboardURL string
}

// NewEntitlementHandler constructs handler.
func NewEntitlementHandler(entitlements *service.EntitlementService, dashboardURL string) *EntitlementHandler {
	return &EntitlementHandler{entitlements: entitlements, dashboardURL: dashboardURL}
}

// Purchase handles POST /entitlement/purchase.
func (h *EntitlementHandler) Purchase(c *fiber.Ctx) error {
	buyer, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.PurchaseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}

	redirect, err := h.entitlements.StartPurchase(c.UserContext(), buyer, req.Kind)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"redirect_url": redirect}})
}

// Callback handles GET /entitlement/callback, the browser return from checkout.
func (h *EntitlementHandler) Callback(c *fiber.Ctx) error {
	if _, err := h.entitlements.CompletePurchase(c.UserContext(), sessionID(c)); err != nil {
		return err
	}
	return c.Redirect(h.dashboardURL, http.StatusSeeOther)
}

// Status handles GET /entitlement.
func (h *EntitlementHandler) Status(c *fiber.Ctx) error {
	buyer, err := currentAccount(c)
	if err != nil {
		return err
	}
	status, err := h.entitlements.Status(c.UserContext(), buyer.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EntitlementResponse{
		ExpiresAt:      status.ExpiresAt,
		Active:         status.Active,
		ExtensionsUsed: status.ExtensionsUsed,
		ExtensionsLeft: status.ExtensionsLeft,
		MaxExtensions:  status.MaxExtensions,
	}})
}
