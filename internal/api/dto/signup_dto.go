package dto

import (
	"time"

	"github.com/spec-kit/realty-service/internal/domain"
)

// SignupRequest payload. Role-specific fields are required per role.
type SignupRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PhoneNumber  string `json:"phone_number"`
	Role         string `json:"role"`
	SelectedPlan string `json:"selected_plan"`

	PreferredLocation string `json:"preferred_location"`
	BudgetRange       string `json:"budget_range"`

	LicenseNumber     string `json:"license_number"`
	CompanyBrokerage  string `json:"company_brokerage"`
	YearsOfExperience string `json:"years_of_experience"`

	PropertyType     string   `json:"property_type"`
	EstimatedValue   *float64 `json:"estimated_value"`
	PropertyLocation string   `json:"property_location"`

	CompanyName           string `json:"company_name"`
	PartnershipType       string `json:"partnership_type"`
	ServiceAreas          string `json:"service_areas"`
	WebsiteURL            string `json:"website_url"`
	BusinessLicenseNumber string `json:"business_license_number"`
}

// Registration maps the request onto the domain registration.
func (r SignupRequest) Registration() domain.Registration {
	return domain.Registration{
		Email:                 r.Email,
		FirstName:             r.FirstName,
		LastName:              r.LastName,
		PhoneNumber:           r.PhoneNumber,
		Role:                  domain.Role(r.Role),
		SelectedPlan:          r.SelectedPlan,
		PreferredLocation:     r.PreferredLocation,
		BudgetRange:           r.BudgetRange,
		LicenseNumber:         r.LicenseNumber,
		CompanyBrokerage:      r.CompanyBrokerage,
		YearsOfExperience:     r.YearsOfExperience,
		PropertyType:          r.PropertyType,
		EstimatedValue:        r.EstimatedValue,
		PropertyLocation:      r.PropertyLocation,
		CompanyName:           r.CompanyName,
		PartnershipType:       r.PartnershipType,
		ServiceAreas:          r.ServiceAreas,
		WebsiteURL:            r.WebsiteURL,
		BusinessLicenseNumber: r.BusinessLicenseNumber,
	}
}

// SignupResponse acknowledges a pending verification.
type SignupResponse struct {
	Status    string    `json:"status"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"code_expires_at"`
}

// VerifyOTPRequest payload.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyOTPResponse reports the verification outcome. Either Auth or
// RedirectURL is set depending on the activation mode.
type VerifyOTPResponse struct {
	Status      string          `json:"status"`
	Account     *AccountSummary `json:"account,omitempty"`
	Auth        *AuthResponse   `json:"auth,omitempty"`
	RedirectURL string          `json:"redirect_url,omitempty"`
}

// PaymentCallbackRequest payload.
type PaymentCallbackRequest struct {
	SessionID string `json:"session_id"`
}

// PaymentCallbackResponse reports the activation after payment.
type PaymentCallbackResponse struct {
	Status           string          `json:"status"`
	AlreadyActivated bool            `json:"already_activated"`
	Account          *AccountSummary `json:"account,omitempty"`
	Auth             *AuthResponse   `json:"auth,omitempty"`
	RedirectURL      string          `json:"redirect_url"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest payload for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AccountSummary is the public view of an account.
type AccountSummary struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	IsActive  bool        `json:"is_active"`
}

// NewAccountSummary projects an account; nil in, nil out.
func NewAccountSummary(a *domain.Account) *AccountSummary {
	if a == nil {
		return nil
	}
	return &AccountSummary{
		ID:        a.ID,
		Email:     a.Email,
		Role:      a.Role,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		IsActive:  a.IsActive,
	}
}

// NewAuthResponse projects a session; nil in, nil out.
func NewAuthResponse(s *domain.Session) *AuthResponse {
	if s == nil {
		return nil
	}
	return &AuthResponse{
		Token:            s.Token,
		ExpiresAt:        s.ExpiresAt,
		RefreshToken:     s.RefreshToken,
		RefreshExpiresAt: s.RefreshExpiresAt,
	}
}
