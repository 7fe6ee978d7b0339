package domain

import (
	"errors"
	"time"
)

// ConnectionStatus is the lifecycle state of a buyer to realtor request.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "PENDING"
	ConnectionAccepted ConnectionStatus = "ACCEPTED"
	ConnectionRejected ConnectionStatus = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s ConnectionStatus) Terminal() bool {
	return s == ConnectionAccepted || s == ConnectionRejected
}

var (
	// ErrRequestNotPending is returned when resolving an already resolved request.
	ErrRequestNotPending = errors.New("connection request is no longer pending")
	// ErrBuyerAlreadyMatched is returned when a buyer already has an accepted agent.
	ErrBuyerAlreadyMatched = errors.New("buyer already has an assigned agent")
	// ErrNotRequestOwner is returned when a realtor acts on another realtor's request.
	ErrNotRequestOwner = errors.New("connection request belongs to another realtor")
)

// ConnectionRequest proposes a buyer to realtor relationship.
type ConnectionRequest struct {
	ID        string           `db:"id"`
	BuyerID   string           `db:"buyer_id"`
	RealtorID string           `db:"realtor_id"`
	Status    ConnectionStatus `db:"status"`
	CreatedAt time.Time        `db:"created_at"`
	UpdatedAt time.Time        `db:"updated_at"`
}

// Transition moves a pending request to a terminal status.
func (c *ConnectionRequest) Transition(to ConnectionStatus) error {
	if c.Status != ConnectionPending {
		return ErrRequestNotPending
	}
	if !to.Terminal() {
		return errors.New("invalid target status")
	}
	c.Status = to
	return nil
}

// ConnectionResolution is the outcome of a realtor response.
type ConnectionResolution struct {
	Request      *ConnectionRequest
	AutoRejected []string
}
