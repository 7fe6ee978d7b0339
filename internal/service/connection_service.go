package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/events"
	"github.com/spec-kit/realty-service/internal/observability"
	"github.com/spec-kit/realty-service/internal/repository"
	apperrors "github.com/spec-kit/realty-service/pkg/util"
)

// Realtor responses to a connection request.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// ConnectionService coordinates buyer to realtor matching.
type ConnectionService struct {
	connections repository.ConnectionRepository
	accounts    repository.AccountRepository
	buyers      repository.BuyerRepository
	metrics     *observability.Metrics
	logger      *zap.Logger
	events      publisher
}

// ConnectionDependencies bundles repositories for the connection service.
type ConnectionDependencies struct {
	ConnectionRepo repository.ConnectionRepository
	AccountRepo    repository.AccountRepository
	BuyerRepo      repository.BuyerRepository
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Clock          func() time.Time
}

// NewConnectionService constructs the service.
func NewConnectionService(deps ConnectionDependencies) *ConnectionService {
	logger := loggerOrNop(deps.Logger)
	return &ConnectionService{
		connections: deps.ConnectionRepo,
		accounts:    deps.AccountRepo,
		buyers:      deps.BuyerRepo,
		metrics:     deps.Metrics,
		logger:      logger,
		events:      publisher{dispatcher: deps.Dispatcher, now: clockOrDefault(deps.Clock), logger: logger},
	}
}

// CreateRequest opens a pending request from a buyer to an active realtor.
func (s *ConnectionService) CreateRequest(ctx context.Context, buyerID, realtorID string) (*domain.ConnectionRequest, error) {
	realtorID = strings.TrimSpace(realtorID)
	if realtorID == "" {
		return nil, apperrors.NewValidationError("realtor_id is required", map[string]any{
			"fields": map[string]string{"realtor_id": "required"},
		})
	}

	realtor, err := s.accounts.GetByID(ctx, realtorID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("realtor", map[string]any{"realtor_id": realtorID})
		}
		return nil, err
	}
	if !realtor.IsActive || realtor.Role != domain.RoleRealtor {
		return nil, apperrors.NewNotFound("realtor", map[string]any{"realtor_id": realtorID})
	}

	buyer, err := s.buyers.GetProfile(ctx, buyerID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("buyer", map[string]any{"buyer_id": buyerID})
		}
		return nil, err
	}
	if buyer.AssignedAgentID != nil {
		return nil, apperrors.NewValidationError("buyer already has an assigned agent", map[string]any{
			"assigned_agent_id": *buyer.AssignedAgentID,
		})
	}

	open, err := s.connections.HasOpen(ctx, buyerID, realtorID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, s.duplicateRequest(realtorID)
	}

	req := &domain.ConnectionRequest{BuyerID: buyerID, RealtorID: realtorID, Status: domain.ConnectionPending}
	if err := s.connections.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrDuplicateRequest) {
			return nil, s.duplicateRequest(realtorID)
		}
		return nil, err
	}

	s.metrics.RecordConnection(string(domain.ConnectionPending), 1)
	s.events.publish(ctx, events.Event{
		Type:      events.EventConnectionRequested,
		SubjectID: req.ID,
		Actor:     events.Actor{AccountID: buyerID, Role: domain.RoleBuyer},
		Payload:   connectionPayload(req),
	})
	return req, nil
}

func (s *ConnectionService) duplicateRequest(realtorID string) error {
	return apperrors.NewValidationError("a pending request to this realtor already exists", map[string]any{"realtor_id": realtorID})
}

// RespondToRequest accepts or rejects a pending request owned by realtorID.
func (s *ConnectionService) RespondToRequest(ctx context.Context, requestID, realtorID, action string) (*domain.ConnectionResolution, error) {
	ctx, span := observability.Tracer().Start(ctx, "connection.respond")
	defer span.End()

	var status domain.ConnectionStatus
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionAccept:
		status = domain.ConnectionAccepted
	case ActionReject:
		status = domain.ConnectionRejected
	default:
		return nil, apperrors.NewValidationError("action must be accept or reject", map[string]any{
			"fields": map[string]string{"action": "must be accept or reject"},
		})
	}

	resolution, err := s.connections.Resolve(ctx, requestID, realtorID, status)
	if err != nil {
		switch {
		case isNotFound(err):
			return nil, apperrors.NewNotFound("connection request", map[string]any{"request_id": requestID})
		case errors.Is(err, domain.ErrNotRequestOwner):
			return nil, apperrors.NewForbidden("connection request belongs to another realtor")
		case errors.Is(err, domain.ErrRequestNotPending):
			return nil, apperrors.NewValidationError("connection request is no longer pending", map[string]any{"request_id": requestID})
		case errors.Is(err, domain.ErrBuyerAlreadyMatched):
			return nil, apperrors.NewConflict("buyer already has an assigned agent", map[string]any{"request_id": requestID})
		}
		span.RecordError(err)
		return nil, err
	}

	req := resolution.Request
	s.metrics.RecordConnection(string(req.Status), 1)
	s.metrics.RecordConnection(string(domain.ConnectionRejected), len(resolution.AutoRejected))
	s.logger.Info("connection request resolved",
		zap.String("request_id", req.ID),
		zap.String("buyer_id", req.BuyerID),
		zap.String("realtor_id", req.RealtorID),
		zap.String("status", string(req.Status)),
		zap.Int("auto_rejected", len(resolution.AutoRejected)))

	actor := events.Actor{AccountID: realtorID, Role: domain.RoleRealtor}
	eventType := events.EventConnectionRejected
	if req.Status == domain.ConnectionAccepted {
		eventType = events.EventConnectionAccepted
	}
	s.events.publish(ctx, events.Event{Type: eventType, SubjectID: req.ID, Actor: actor, Payload: connectionPayload(req)})
	for _, id := range resolution.AutoRejected {
		s.events.publish(ctx, events.Event{
			Type:      events.EventConnectionRejected,
			SubjectID: id,
			Payload: events.ConnectionPayload{
				RequestID:    id,
				BuyerID:      req.BuyerID,
				Status:       domain.ConnectionRejected,
				AutoRejected: true,
			},
		})
	}
	return resolution, nil
}

func connectionPayload(req *domain.ConnectionRequest) events.ConnectionPayload {
	return events.ConnectionPayload{
		RequestID: req.ID,
		BuyerID:   req.BuyerID,
		RealtorID: req.RealtorID,
		Status:    req.Status,
	}
}

// ListPendingForRealtor returns the realtor's pending requests, newest first.
func (s *ConnectionService) ListPendingForRealtor(ctx context.Context, realtorID string, page, pageSize int) ([]domain.ConnectionRequest, error) {
	return s.connections.ListPendingForRealtor(ctx, realtorID, pageOf(page, pageSize))
}

// ListForBuyer returns every request the buyer made, newest first.
func (s *ConnectionService) ListForBuyer(ctx context.Context, buyerID string, page, pageSize int) ([]domain.ConnectionRequest, error) {
	return s.connections.ListForBuyer(ctx, buyerID, pageOf(page, pageSize))
}

// ListRealtors returns active realtors a buyer can contact.
func (s *ConnectionService) ListRealtors(ctx context.Context, page, pageSize int) ([]domain.RealtorSummary, error) {
	return s.accounts.ListRealtors(ctx, pageOf(page, pageSize))
}
