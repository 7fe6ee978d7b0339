package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/realty-service/internal/auth"
	"github.com/spec-kit/realty-service/internal/domain"
	apperrors "github.com/spec-kit/realty-service/pkg/util"
)

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func pageParams(c *fiber.Ctx) (int, int) {
	return parseInt(c.Query("page"), 1), parseInt(c.Query("page_size"), 20)
}

func currentAccount(c *fiber.Ctx) (*domain.Account, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Account, nil
}

// sessionID reads the checkout session id from the query or the body.
func sessionID(c *fiber.Ctx) string {
	if id := c.Query("session_id"); id != "" {
		return id
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&body)
	}
	return body.SessionID
}
