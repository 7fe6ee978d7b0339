package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/realty-service/internal/events"
	"github.com/spec-kit/realty-service/internal/mailer"
	"github.com/spec-kit/realty-service/internal/repository"
)

// NotificationService e-mails the counterpart of domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	accounts   repository.AccountRepository
	mailer     mailer.Mailer
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, accounts repository.AccountRepository, m mailer.Mailer, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		accounts:   accounts,
		mailer:     m,
		logger:     loggerOrNop(logger),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountActivated, n.handleAccountActivated)
	n.dispatcher.Subscribe(events.EventConnectionRequested, n.handleConnectionRequested)
	n.dispatcher.Subscribe(events.EventConnectionAccepted, n.handleConnectionResolved)
	n.dispatcher.Subscribe(events.EventConnectionRejected, n.handleConnectionResolved)
	n.dispatcher.Subscribe(events.EventEntitlementGranted, n.handleEntitlementGranted)
}

func (n *NotificationService) handleAccountActivated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AccountActivatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.logger.Info("AccountActivated", zap.String("account_id", event.SubjectID), zap.String("role", string(payload.Role)))
	return n.send(ctx, mailer.Message{
		To:      payload.Email,
		Subject: "Welcome aboard",
		Body:    fmt.Sprintf("Hi %s, your %s account is active. You can now log in.", payload.FullName, payload.Role),
	})
}

func (n *NotificationService) handleConnectionRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ConnectionPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.logger.Info("ConnectionRequested", zap.String("request_id", payload.RequestID))

	realtor, err := n.accounts.GetByID(ctx, payload.RealtorID)
	if err != nil {
		return err
	}
	buyer, err := n.accounts.GetByID(ctx, payload.BuyerID)
	if err != nil {
		return err
	}
	return n.send(ctx, mailer.Message{
		To:      realtor.Email,
		Subject: "New connection request",
		Body:    fmt.Sprintf("%s would like to work with you. Review the request from your dashboard.", buyer.FullName()),
	})
}

func (n *NotificationService) handleConnectionResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ConnectionPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.logger.Info("ConnectionResolved",
		zap.String("request_id", payload.RequestID),
		zap.String("status", string(payload.Status)),
		zap.Bool("auto_rejected", payload.AutoRejected))

	buyer, err := n.accounts.GetByID(ctx, payload.BuyerID)
	if err != nil {
		return err
	}

	msg := mailer.Message{To: buyer.Email, Subject: "Your connection request was declined"}
	switch {
	case event.Type == events.EventConnectionAccepted:
		realtor, err := n.accounts.GetByID(ctx, payload.RealtorID)
		if err != nil {
			return err
		}
		msg.Subject = "You have been matched with an agent"
		msg.Body = fmt.Sprintf("%s accepted your request and is now your agent.", realtor.FullName())
	case payload.AutoRejected:
		// The buyer already hears about the accepted match.
		return nil
	default:
		msg.Body = "The realtor declined your request. You can contact another realtor from the directory."
	}
	return n.send(ctx, msg)
}

func (n *NotificationService) handleEntitlementGranted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EntitlementGrantedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.logger.Info("EntitlementGranted", zap.String("buyer_id", event.SubjectID), zap.String("kind", payload.Kind))

	buyer, err := n.accounts.GetByID(ctx, event.SubjectID)
	if err != nil {
		return err
	}
	return n.send(ctx, mailer.Message{
		To:      buyer.Email,
		Subject: "Your access pass is active",
		Body:    fmt.Sprintf("Your access pass is valid until %s.", payload.ExpiresAt.UTC().Format(time.RFC1123)),
	})
}

func (n *NotificationService) send(ctx context.Context, msg mailer.Message) error {
	if n.mailer == nil || msg.To == "" {
		return nil
	}
	return n.mailer.Send(ctx, msg)
}
