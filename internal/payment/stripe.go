package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	portalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

// StripeProvider uses Stripe Checkout and the Stripe customer portal.
type StripeProvider struct {
	sessions *session.Client
	portal   *portalsession.Client
}

// NewStripeProvider builds a provider for the given secret key.
func NewStripeProvider(secretKey string) *StripeProvider {
	backend := stripe.GetBackend(stripe.APIBackend)
	return &StripeProvider{
		sessions: &session.Client{B: backend, Key: secretKey},
		portal:   &portalsession.Client{B: backend, Key: secretKey},
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.CorrelationID),
	}
	params.Context = ctx

	if req.CustomerRef != "" {
		params.Customer = stripe.String(req.CustomerRef)
	} else if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.CreateCustomer && req.CustomerRef == "" {
		params.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
	}

	for _, item := range req.LineItems {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(item.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(item.Name),
					Description: stripe.String(item.Description),
				},
				UnitAmount: stripe.Int64(item.AmountCents),
			},
			Quantity: stripe.Int64(quantity),
		})
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return s.URL, nil
}

func (p *StripeProvider) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.sessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session: %w", err)
	}

	out := &Session{
		ID:            s.ID,
		PaymentStatus: string(s.PaymentStatus),
		CorrelationID: s.ClientReferenceID,
		Metadata:      s.Metadata,
		CustomerEmail: s.CustomerEmail,
	}
	if s.Customer != nil {
		out.CustomerRef = s.Customer.ID
	}
	if out.CustomerEmail == "" && s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	return out, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, req PortalRequest) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(req.CustomerRef),
		ReturnURL: stripe.String(req.ReturnURL),
	}
	params.Context = ctx

	s, err := p.portal.New(params)
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return s.URL, nil
}
