package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SessionIDPlaceholder is substituted with the session id in success URLs.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// SandboxProvider keeps sessions in memory. Sessions start unpaid and are
// settled with MarkPaid, which lets development and tests drive the full
// checkout flow without a processor.
type SandboxProvider struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	checkouts []CheckoutRequest
	portals   []PortalRequest
	autoPay   bool
	err       error
}

// NewSandboxProvider creates an empty sandbox. With autoPay every new
// session is created already paid.
func NewSandboxProvider(autoPay bool) *SandboxProvider {
	return &SandboxProvider{sessions: map[string]*Session{}, autoPay: autoPay}
}

// WithError makes subsequent calls fail with err.
func (p *SandboxProvider) WithError(err error) *SandboxProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	return p
}

func (p *SandboxProvider) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}

	id := "cs_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	metadata := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	status := "unpaid"
	if p.autoPay {
		status = PaymentStatusPaid
	}
	customerRef := req.CustomerRef
	if customerRef == "" && req.CreateCustomer {
		customerRef = "cus_test_" + id[len("cs_test_"):len("cs_test_")+12]
	}
	p.sessions[id] = &Session{
		ID:            id,
		PaymentStatus: status,
		CustomerRef:   customerRef,
		CustomerEmail: req.CustomerEmail,
		CorrelationID: req.CorrelationID,
		Metadata:      metadata,
	}
	p.checkouts = append(p.checkouts, req)
	return strings.ReplaceAll(req.SuccessURL, SessionIDPlaceholder, id), nil
}

func (p *SandboxProvider) RetrieveSession(_ context.Context, id string) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	s, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("checkout session %s not found", id)
	}
	out := *s
	return &out, nil
}

// MarkPaid settles a session.
func (p *SandboxProvider) MarkPaid(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		return fmt.Errorf("checkout session %s not found", id)
	}
	s.PaymentStatus = PaymentStatusPaid
	return nil
}

// Checkouts returns the requests received so far.
func (p *SandboxProvider) Checkouts() []CheckoutRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CheckoutRequest(nil), p.checkouts...)
}

// SessionFor returns the session created for a correlation id.
func (p *SandboxProvider) SessionFor(correlationID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, s := range p.sessions {
		if s.CorrelationID == correlationID {
			return id, true
		}
	}
	return "", false
}

// CreatePortalSession returns a sandbox portal URL that echoes the return URL.
func (p *SandboxProvider) CreatePortalSession(_ context.Context, req PortalRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.portals = append(p.portals, req)
	return "https://billing.sandbox.test/p/" + url.PathEscape(req.CustomerRef) + "?return_url=" + url.QueryEscape(req.ReturnURL), nil
}

// Portals returns the portal requests received so far.
func (p *SandboxProvider) Portals() []PortalRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PortalRequest(nil), p.portals...)
}
