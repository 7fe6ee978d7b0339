package domain

import "time"

// Role identifies the marketplace persona bound to an account.
type Role string

const (
	RoleBuyer   Role = "BUYER"
	RoleSeller  Role = "SELLER"
	RoleRealtor Role = "REALTOR"
	RolePartner Role = "PARTNER"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleRealtor, RolePartner:
		return true
	}
	return false
}

// Account is the durable identity created once activation completes.
type Account struct {
	ID                 string
	Email              string
	PasswordHash       string
	Role               Role
	FirstName          string
	LastName           string
	PhoneNumber        string
	IsActive           bool
	IsStaff            bool
	PaymentCustomerRef *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// BuyerProfile carries buyer preferences, the matched agent and the access pass.
type BuyerProfile struct {
	AccountID         string
	PreferredLocation string
	City              string
	State             string
	BudgetRange       string
	SelectedPlan      string
	AssignedAgentID   *string
	Access            Entitlement
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RealtorProfile holds licensing details for realtors.
type RealtorProfile struct {
	AccountID         string
	LicenseNumber     string
	CompanyBrokerage  string
	YearsOfExperience string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SellerProfile describes the property a seller brings to the platform.
type SellerProfile struct {
	AccountID        string
	PropertyType     string
	EstimatedValue   float64
	PropertyLocation string
	City             string
	State            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PartnerProfile describes a service partner business.
type PartnerProfile struct {
	AccountID             string
	CompanyName           string
	PartnershipType       string
	ServiceAreas          string
	WebsiteURL            string
	BusinessLicenseNumber string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Profile is the role-specific record created with an account. Exactly one
// field is set, matching the account role.
type Profile struct {
	Buyer   *BuyerProfile
	Realtor *RealtorProfile
	Seller  *SellerProfile
	Partner *PartnerProfile
}

// Role returns the role implied by the populated profile.
func (p Profile) Role() Role {
	switch {
	case p.Buyer != nil:
		return RoleBuyer
	case p.Realtor != nil:
		return RoleRealtor
	case p.Seller != nil:
		return RoleSeller
	case p.Partner != nil:
		return RolePartner
	}
	return ""
}

// RealtorSummary is the public projection used by realtor listings.
type RealtorSummary struct {
	AccountID         string `db:"account_id"`
	FirstName         string `db:"first_name"`
	LastName          string `db:"last_name"`
	Email             string `db:"email"`
	PhoneNumber       string `db:"phone_number"`
	LicenseNumber     string `db:"license_number"`
	CompanyBrokerage  string `db:"company_brokerage"`
	YearsOfExperience string `db:"years_of_experience"`
}
