package dto

import "time"

// PurchaseRequest selects what to buy: "pass" (default) or "extension".
type PurchaseRequest struct {
	Kind string `json:"kind"`
}

// EntitlementResponse describes a buyer's access pass.
type EntitlementResponse struct {
	ExpiresAt      *time.Time `json:"expires_at"`
	Active         bool       `json:"active"`
	ExtensionsUsed int        `json:"extensions_used"`
	ExtensionsLeft int        `json:"extensions_left"`
	MaxExtensions  int        `json:"max_extensions"`
}
