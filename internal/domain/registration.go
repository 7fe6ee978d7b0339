package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Default plan applied to buyers that do not pick one.
const BuyerPlanPro = "pro"

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// Registration is the payload captured at signup and replayed at
// materialization. The password is only ever carried as a hash.
type Registration struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	PhoneNumber  string `json:"phone_number"`
	Role         Role   `json:"role"`
	SelectedPlan string `json:"selected_plan,omitempty"`

	// buyer
	PreferredLocation string `json:"preferred_location,omitempty"`
	BudgetRange       string `json:"budget_range,omitempty"`

	// realtor
	LicenseNumber     string `json:"license_number,omitempty"`
	CompanyBrokerage  string `json:"company_brokerage,omitempty"`
	YearsOfExperience string `json:"years_of_experience,omitempty"`

	// seller
	PropertyType     string   `json:"property_type,omitempty"`
	EstimatedValue   *float64 `json:"estimated_value,omitempty"`
	PropertyLocation string   `json:"property_location,omitempty"`

	// partner
	CompanyName           string `json:"company_name,omitempty"`
	PartnershipType       string `json:"partnership_type,omitempty"`
	ServiceAreas          string `json:"service_areas,omitempty"`
	WebsiteURL            string `json:"website_url,omitempty"`
	BusinessLicenseNumber string `json:"business_license_number,omitempty"`
}

// NormalizeEmail lower-cases and trims an e-mail address so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MissingFields returns the names of required fields that are absent for
// the registration's role. Common identity fields are checked first.
func (r *Registration) MissingFields() []string {
	var missing []string
	need := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	need("email", r.Email)
	need("role", string(r.Role))

	switch r.Role {
	case RoleBuyer:
		need("preferred_location", r.PreferredLocation)
		need("budget_range", r.BudgetRange)
	case RoleRealtor:
		need("license_number", r.LicenseNumber)
		need("company_brokerage", r.CompanyBrokerage)
		need("years_of_experience", r.YearsOfExperience)
	case RoleSeller:
		need("property_type", r.PropertyType)
		if r.EstimatedValue == nil {
			missing = append(missing, "estimated_value")
		}
		need("property_location", r.PropertyLocation)
	case RolePartner:
		need("company_name", r.CompanyName)
		need("partnership_type", r.PartnershipType)
		need("service_areas", r.ServiceAreas)
		need("website_url", r.WebsiteURL)
		need("business_license_number", r.BusinessLicenseNumber)
	}
	return missing
}

// Problems returns field -> message for every validation failure, or nil.
// The credential hash is not checked here because it is produced after intake.
func (r *Registration) Problems() map[string]string {
	problems := map[string]string{}
	for _, field := range r.MissingFields() {
		problems[field] = "required"
	}
	if r.Role != "" && !r.Role.Valid() {
		problems["role"] = "must be one of BUYER, SELLER, REALTOR, PARTNER"
	}
	if r.Email != "" {
		// Display-name forms parse too; only a bare address is accepted.
		addr, err := mail.ParseAddress(r.Email)
		if err != nil || addr.Address != strings.TrimSpace(r.Email) {
			problems["email"] = "invalid address"
		}
	}
	if r.EstimatedValue != nil && *r.EstimatedValue < 0 {
		problems["estimated_value"] = "must not be negative"
	}
	if len(problems) == 0 {
		return nil
	}
	return problems
}

// Plan returns the selected plan, defaulting buyers to the pro plan.
func (r *Registration) Plan() string {
	plan := strings.ToLower(strings.TrimSpace(r.SelectedPlan))
	if plan == "" && r.Role == RoleBuyer {
		return BuyerPlanPro
	}
	return plan
}

// Account builds the account row for this registration.
func (r *Registration) Account(customerRef *string) *Account {
	return &Account{
		Email:              NormalizeEmail(r.Email),
		PasswordHash:       r.PasswordHash,
		Role:               r.Role,
		FirstName:          strings.TrimSpace(r.FirstName),
		LastName:           strings.TrimSpace(r.LastName),
		PhoneNumber:        strings.TrimSpace(r.PhoneNumber),
		IsActive:           true,
		PaymentCustomerRef: customerRef,
	}
}

// Profile derives the single role-specific profile for this registration.
func (r *Registration) Profile() Profile {
	switch r.Role {
	case RoleBuyer:
		city, state := SplitCityState(r.PreferredLocation)
		return Profile{Buyer: &BuyerProfile{
			PreferredLocation: strings.TrimSpace(r.PreferredLocation),
			City:              city,
			State:             state,
			BudgetRange:       strings.TrimSpace(r.BudgetRange),
			SelectedPlan:      r.Plan(),
		}}
	case RoleRealtor:
		return Profile{Realtor: &RealtorProfile{
			LicenseNumber:     strings.TrimSpace(r.LicenseNumber),
			CompanyBrokerage:  strings.TrimSpace(r.CompanyBrokerage),
			YearsOfExperience: strings.TrimSpace(r.YearsOfExperience),
		}}
	case RoleSeller:
		city, state := SplitCityState(r.PropertyLocation)
		var value float64
		if r.EstimatedValue != nil {
			value = *r.EstimatedValue
		}
		return Profile{Seller: &SellerProfile{
			PropertyType:     strings.TrimSpace(r.PropertyType),
			EstimatedValue:   value,
			PropertyLocation: strings.TrimSpace(r.PropertyLocation),
			City:             city,
			State:            state,
		}}
	case RolePartner:
		return Profile{Partner: &PartnerProfile{
			CompanyName:           strings.TrimSpace(r.CompanyName),
			PartnershipType:       strings.TrimSpace(r.PartnershipType),
			ServiceAreas:          strings.TrimSpace(r.ServiceAreas),
			WebsiteURL:            strings.TrimSpace(r.WebsiteURL),
			BusinessLicenseNumber: strings.TrimSpace(r.BusinessLicenseNumber),
		}}
	}
	return Profile{}
}

// SplitCityState splits "City, ST" on the last comma. Input without a comma
// is treated as a city only.
func SplitCityState(location string) (city, state string) {
	location = strings.TrimSpace(location)
	idx := strings.LastIndex(location, ",")
	if idx < 0 {
		return location, ""
	}
	return strings.TrimSpace(location[:idx]), strings.TrimSpace(location[idx+1:])
}

// OTP parameters.
const (
	OTPLength = 8
	OTPTTL    = 10 * time.Minute
)

// PendingRegistration is an unconfirmed signup awaiting its one-time code,
// and in payment-gated mode, the checkout completion.
type PendingRegistration struct {
	ID            string
	Email         string
	Code          string
	CodeIssuedAt  time.Time
	Payload       Registration
	CorrelationID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ExpiresAt is the last instant at which the code is still accepted.
func (p *PendingRegistration) ExpiresAt() time.Time {
	return p.CodeIssuedAt.Add(OTPTTL)
}

// Expired reports whether now is past the code window.
func (p *PendingRegistration) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt())
}
