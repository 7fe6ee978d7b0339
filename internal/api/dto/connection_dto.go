package dto

import (
	"time"

	"github.com/spec-kit/realty-service/internal/domain"
)

// CreateConnectionRequest payload.
type CreateConnectionRequest struct {
	RealtorID string `json:"realtor_id"`
}

// RespondConnectionRequest payload.
type RespondConnectionRequest struct {
	Action string `json:"action"`
}

// ConnectionSummary response.
type ConnectionSummary struct {
	ID        string                  `json:"id"`
	BuyerID   string                  `json:"buyer_id"`
	RealtorID string                  `json:"realtor_id"`
	Status    domain.ConnectionStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// NewConnectionSummary projects a request.
func NewConnectionSummary(req domain.ConnectionRequest) ConnectionSummary {
	return ConnectionSummary{
		ID:        req.ID,
		BuyerID:   req.BuyerID,
		RealtorID: req.RealtorID,
		Status:    req.Status,
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
	}
}

// RealtorSummary is the directory entry for a realtor.
type RealtorSummary struct {
	ID                string `json:"id"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Email             string `json:"email"`
	PhoneNumber       string `json:"phone_number"`
	LicenseNumber     string `json:"license_number"`
	CompanyBrokerage  string `json:"company_brokerage"`
	YearsOfExperience string `json:"years_of_experience"`
}

// NewRealtorSummary projects a realtor listing row.
func NewRealtorSummary(r domain.RealtorSummary) RealtorSummary {
	return RealtorSummary{
		ID:                r.AccountID,
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		Email:             r.Email,
		PhoneNumber:       r.PhoneNumber,
		LicenseNumber:     r.LicenseNumber,
		CompanyBrokerage:  r.CompanyBrokerage,
		YearsOfExperience: r.YearsOfExperience,
	}
}
