package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PriceItem is a single checkout line priced in minor currency units.
type PriceItem struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	AmountCents int64  `yaml:"amount_cents"`
}

// SignupPrice prices activation for a role and optional plan.
type SignupPrice struct {
	Role      string `yaml:"role"`
	Plan      string `yaml:"plan"`
	PriceItem `yaml:",inline"`
}

// Pricing is loaded once at startup and passed by value; it is never mutated afterwards.
type Pricing struct {
	currency      string
	signup        []SignupPrice
	fallback      PriceItem
	accessPass    PriceItem
	passExtension PriceItem
}

type pricingFile struct {
	Currency        string        `yaml:"currency"`
	Signup          []SignupPrice `yaml:"signup"`
	Fallback        *PriceItem    `yaml:"fallback"`
	AccessPass      *PriceItem    `yaml:"access_pass"`
	AccessExtension *PriceItem    `yaml:"access_extension"`
}

// DefaultPricing mirrors the fee table the marketplace launched with.
func DefaultPricing() Pricing {
	return Pricing{
		currency: "usd",
		signup: []SignupPrice{
			{Role: "BUYER", Plan: "basic", PriceItem: PriceItem{Name: "Buyer Basic Plan", Description: "Includes $99 setup fee + $25 basic plan", AmountCents: 12400}},
			{Role: "BUYER", Plan: "pro", PriceItem: PriceItem{Name: "Buyer Pro Plan", Description: "Includes $99 setup fee + $50 pro plan", AmountCents: 14900}},
			{Role: "SELLER", PriceItem: PriceItem{Name: "Seller Account Setup", Description: "Includes $99 setup fee + $199 listing fee", AmountCents: 29800}},
			{Role: "REALTOR", PriceItem: PriceItem{Name: "Realtor Subscription", Description: "Includes $99 setup fee + $99 access fee", AmountCents: 19800}},
			{Role: "PARTNER", PriceItem: PriceItem{Name: "Partner Subscription", Description: "Includes $199 setup fee + $299 access fee", AmountCents: 49800}},
		},
		fallback:      PriceItem{Name: "Account Verification Fee", Description: "Standard verification fee", AmountCents: 1000},
		accessPass:    PriceItem{Name: "Buyer Access Pass", Description: "Unlocks protected listing details", AmountCents: 65000},
		passExtension: PriceItem{Name: "Access Pass Extension", Description: "Extends an active access pass", AmountCents: 15000},
	}
}

// LoadPricing reads a YAML pricing file. An empty path yields the defaults;
// sections absent from the file keep their default values.
func LoadPricing(path string) (Pricing, error) {
	pricing := DefaultPricing()
	if path == "" {
		return pricing, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pricing{}, fmt.Errorf("read pricing: %w", err)
	}
	return parsePricing(raw, pricing)
}

func parsePricing(raw []byte, base Pricing) (Pricing, error) {
	var file pricingFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Pricing{}, fmt.Errorf("parse pricing: %w", err)
	}
	if file.Currency != "" {
		base.currency = strings.ToLower(file.Currency)
	}
	if len(file.Signup) > 0 {
		signup := make([]SignupPrice, 0, len(file.Signup))
		for _, entry := range file.Signup {
			if entry.Role == "" || entry.AmountCents <= 0 {
				return Pricing{}, fmt.Errorf("pricing entry %q/%q needs a role and a positive amount", entry.Role, entry.Plan)
			}
			entry.Role = strings.ToUpper(entry.Role)
			entry.Plan = strings.ToLower(entry.Plan)
			signup = append(signup, entry)
		}
		base.signup = signup
	}
	if file.Fallback != nil {
		base.fallback = *file.Fallback
	}
	if file.AccessPass != nil {
		base.accessPass = *file.AccessPass
	}
	if file.AccessExtension != nil {
		base.passExtension = *file.AccessExtension
	}
	return base, nil
}

// Currency returns the ISO currency code for all prices.
func (p Pricing) Currency() string {
	return p.currency
}

// Signup returns the activation price for a role and plan. An exact plan
// match wins, then a role entry without a plan, then the last entry for the
// role, then the fallback fee.
func (p Pricing) Signup(role, plan string) PriceItem {
	role = strings.ToUpper(role)
	plan = strings.ToLower(plan)
	var roleDefault, roleAny *PriceItem
	for i := range p.signup {
		entry := p.signup[i]
		if entry.Role != role {
			continue
		}
		if entry.Plan == plan && plan != "" {
			return entry.PriceItem
		}
		if entry.Plan == "" {
			roleDefault = &entry.PriceItem
		}
		roleAny = &entry.PriceItem
	}
	switch {
	case roleDefault != nil:
		return *roleDefault
	case roleAny != nil:
		return *roleAny
	}
	return p.fallback
}

// AccessPass returns the access pass price.
func (p Pricing) AccessPass() PriceItem {
	return p.accessPass
}

// AccessExtension returns the price of one bounded extension.
func (p Pricing) AccessExtension() PriceItem {
	return p.passExtension
}
