package domain

import "time"

// Session is an issued bearer credential pair.
type Session struct {
	Token            string
	ExpiresAt        time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
