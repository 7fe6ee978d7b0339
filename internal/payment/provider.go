// Package payment abstracts the hosted checkout used to collect signup
// fees and access pass purchases.
package payment

import "context"

// PaymentStatusPaid is the only status that confirms a checkout.
const PaymentStatusPaid = "paid"

// Checkout purposes stored in session metadata.
const (
	PurposeSignup          = "signup"
	PurposeAccessPass      = "access_pass"
	PurposeAccessExtension = "access_extension"
)

// LineItem is one priced checkout line in minor currency units.
type LineItem struct {
	Name        string
	Description string
	AmountCents int64
	Currency    string
	Quantity    int64
}

// CheckoutRequest describes a hosted checkout session.
type CheckoutRequest struct {
	CustomerRef   string
	CustomerEmail string
	// CreateCustomer asks the provider to create a customer record.
	CreateCustomer bool
	LineItems      []LineItem
	SuccessURL     string
	CancelURL      string
	CorrelationID  string
	Metadata       map[string]string
}

// Session is the provider's view of a checkout.
type Session struct {
	ID            string
	PaymentStatus string
	CustomerRef   string
	CustomerEmail string
	CorrelationID string
	Metadata      map[string]string
}

// Paid reports whether the checkout was paid.
func (s *Session) Paid() bool {
	return s != nil && s.PaymentStatus == PaymentStatusPaid
}

// PortalRequest opens the hosted billing portal for an existing customer.
type PortalRequest struct {
	CustomerRef string
	ReturnURL   string
}

// Provider creates and inspects hosted checkout sessions.
type Provider interface {
	// CreateCheckoutSession returns the URL the customer is redirected to.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
	// CreatePortalSession returns the billing portal URL for a customer.
	CreatePortalSession(ctx context.Context, req PortalRequest) (string, error)
}
