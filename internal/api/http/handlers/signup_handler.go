package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/realty-service/internal/api/dto"
	"github.com/spec-kit/realty-service/internal/service"
	apperrors "github.com/spec-kit/realty-service/pkg/util"
)

// SignupHandler exposes signup, verification, payment confirmation and login.
type SignupHandler struct {
	activation *service.ActivationService
	auth       *service.AuthService
	cancelURL  string
}

// NewSignupHandler constructs handler. cancelURL receives browsers whose
// signup payment could not be confirmed.
func NewSignupHandler(activation *service.ActivationService, authService *service.AuthService, cancelURL string) *SignupHandler {
	return &SignupHandler{activation: activation, auth: authService, cancelURL: cancelURL}
}

// Signup handles POST /signup.
func (h *SignupHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	result, err := h.activation.InitiateSignup(c.UserContext(), req.Registration(), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SignupResponse{
		Status:    "verification_pending",
		Email:     result.Email,
		ExpiresAt: result.ExpiresAt,
	}})
}

// VerifyOTP handles POST /verify-otp.
func (h *SignupHandler) VerifyOTP(c *fiber.Ctx) error {
	var req dto.VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	result, err := h.activation.VerifyCode(c.UserContext(), req.Email, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.VerifyOTPResponse{
		Status:      result.Status,
		Account:     dto.NewAccountSummary(result.Account),
		Auth:        dto.NewAuthResponse(result.Session),
		RedirectURL: result.RedirectURL,
	}})
}

// PaymentCallback handles POST /payment/callback.
func (h *SignupHandler) PaymentCallback(c *fiber.Ctx) error {
	result, err := h.activation.ConfirmPayment(c.UserContext(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": confirmResponse(result)})
}

// PaymentSuccess handles GET /payment/success, the browser return from
// checkout. Unpaid sessions go back to the signup entry point.
func (h *SignupHandler) PaymentSuccess(c *fiber.Ctx) error {
	result, err := h.activation.ConfirmPayment(c.UserContext(), sessionID(c))
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeValidation) && h.cancelURL != "" {
			return c.Redirect(h.cancelURL, http.StatusSeeOther)
		}
		return err
	}
	return c.Redirect(result.RedirectURL, http.StatusSeeOther)
}

func confirmResponse(result *service.ConfirmResult) dto.PaymentCallbackResponse {
	return dto.PaymentCallbackResponse{
		Status:           service.VerifyStatusActivated,
		AlreadyActivated: result.AlreadyActivated,
		Account:          dto.NewAccountSummary(result.Account),
		Auth:             dto.NewAuthResponse(result.Session),
		RedirectURL:      result.RedirectURL,
	}
}

// Login handles POST /login.
func (h *SignupHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	account, session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"account": dto.NewAccountSummary(account),
			"auth":    dto.NewAuthResponse(session),
		},
	})
}

// Refresh handles POST /token/refresh.
func (h *SignupHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.RefreshToken == "" {
		return fiber.NewError(http.StatusBadRequest, "refresh_token required")
	}

	account, session, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"account": dto.NewAccountSummary(account),
			"auth":    dto.NewAuthResponse(session),
		},
	})
}
