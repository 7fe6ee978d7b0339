package domain

import (
	"errors"
	"time"
)

var (
	// ErrExtensionLimitExceeded is returned when a pass has used all of its extensions.
	ErrExtensionLimitExceeded = errors.New("access pass extension limit reached")
	// ErrNoActivePass is returned when extending a pass that is missing or expired.
	ErrNoActivePass = errors.New("no active access pass")
)

// AccessPolicy bounds access pass grants and extensions.
type AccessPolicy struct {
	BaseDays      int
	ExtensionDays int
	MaxExtensions int
}

// DefaultAccessPolicy is 30 days, extendable twice by 15 days.
func DefaultAccessPolicy() AccessPolicy {
	return AccessPolicy{BaseDays: 30, ExtensionDays: 15, MaxExtensions: 2}
}

// Entitlement is the time-boxed access pass stored on a buyer profile.
type Entitlement struct {
	ExpiresAt      *time.Time
	ExtensionsUsed int
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// IsActive reports whether the pass is present and strictly in the future.
func (e Entitlement) IsActive(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.After(now)
}

// ExtensionsLeft returns how many extensions the policy still allows.
func (e Entitlement) ExtensionsLeft(policy AccessPolicy) int {
	left := policy.MaxExtensions - e.ExtensionsUsed
	if left < 0 {
		return 0
	}
	return left
}

// GrantOrExtend applies a paid grant of n days. An active pass is extended
// from its current expiry; a missing or lapsed pass restarts from now with
// a fresh extension counter.
func (e *Entitlement) GrantOrExtend(now time.Time, n int) {
	if e.IsActive(now) {
		next := e.ExpiresAt.Add(days(n))
		e.ExpiresAt = &next
		return
	}
	next := now.Add(days(n))
	e.ExpiresAt = &next
	e.ExtensionsUsed = 0
}

// Extend consumes one bounded extension on an active pass.
func (e *Entitlement) Extend(now time.Time, policy AccessPolicy) error {
	if !e.IsActive(now) {
		return ErrNoActivePass
	}
	if e.ExtensionsUsed >= policy.MaxExtensions {
		return ErrExtensionLimitExceeded
	}
	next := e.ExpiresAt.Add(days(policy.ExtensionDays))
	e.ExpiresAt = &next
	e.ExtensionsUsed++
	return nil
}
