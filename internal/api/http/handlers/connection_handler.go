package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/realty-service/internal/api/dto"
	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/service"
)

// ConnectionHandler exposes the realtor directory and connection requests.
type ConnectionHandler struct {
	connections *service.ConnectionService
}

// NewConnectionHandler constructs handler.
func NewConnectionHandler(connections *service.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

// ListRealtors handles GET /realtors.
func (h *ConnectionHandler) ListRealtors(c *fiber.Ctx) error {
	page, pageSize := pageParams(c)
	realtors, err := h.connections.ListRealtors(c.UserContext(), page, pageSize)
	if err != nil {
		return err
	}
	out := make([]dto.RealtorSummary, 0, len(realtors))
	for _, r := range realtors {
		out = append(out, dto.NewRealtorSummary(r))
	}
	return c.JSON(fiber.Map{"data": out, "page": page, "page_size": pageSize})
}

// Create handles POST /connections.
func (h *ConnectionHandler) Create(c *fiber.Ctx) error {
	buyer, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.CreateConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	created, err := h.connections.CreateRequest(c.UserContext(), buyer.ID, req.RealtorID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewConnectionSummary(*created)})
}

// ListForBuyer handles GET /connections.
func (h *ConnectionHandler) ListForBuyer(c *fiber.Ctx) error {
	buyer, err := currentAccount(c)
	if err != nil {
		return err
	}
	page, pageSize := pageParams(c)
	requests, err := h.connections.ListForBuyer(c.UserContext(), buyer.ID, page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summaries(requests), "page": page, "page_size": pageSize})
}

// ListPendingForRealtor handles GET /connection-requests.
func (h *ConnectionHandler) ListPendingForRealtor(c *fiber.Ctx) error {
	realtor, err := currentAccount(c)
	if err != nil {
		return err
	}
	page, pageSize := pageParams(c)
	requests, err := h.connections.ListPendingForRealtor(c.UserContext(), realtor.ID, page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summaries(requests), "page": page, "page_size": pageSize})
}

// Respond handles POST /connection-requests/:id.
func (h *ConnectionHandler) Respond(c *fiber.Ctx) error {
	realtor, err := currentAccount(c)
	if err != nil {
		return err
	}
	var req dto.RespondConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	resolution, err := h.connections.RespondToRequest(c.UserContext(), c.Params("id"), realtor.ID, req.Action)
	if err != nil {
		return err
	}
	autoRejected := resolution.AutoRejected
	if autoRejected == nil {
		autoRejected = []string{}
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"request":       dto.NewConnectionSummary(*resolution.Request),
		"auto_rejected": autoRejected,
	}})
}

func summaries(requests []domain.ConnectionRequest) []dto.ConnectionSummary {
	out := make([]dto.ConnectionSummary, 0, len(requests))
	for _, req := range requests {
		out = append(out, dto.NewConnectionSummary(req))
	}
	return out
}
