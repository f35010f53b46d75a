// Package commission resolves percentage-split rules and turns a gross
// transaction value into a conserved payout distribution.
package commission

import (
	"errors"
	"fmt"
)

// UplineLevels is how many sponsor generations share in a sale.
const UplineLevels = 4

// BasisPointsTotal is the fixed-point denominator: all cuts of a rule must
// sum to exactly this. Amounts are minor units; no floats.
const BasisPointsTotal = 10_000

// DefaultIndustry marks the global fallback rule.
const DefaultIndustry = "DEFAULT"

// Rule is one percentage-split policy, scoped to an industry and
// optionally narrowed to a single project.
type Rule struct {
	ID         string              `json:"id"`
	Industry   string              `json:"industry"`
	Project    string              `json:"project,omitempty"`
	SellerBP   int64               `json:"seller_bp"`
	PlatformBP int64               `json:"platform_bp"`
	UplineBP   [UplineLevels]int64 `json:"upline_bp"`
}

var (
	ErrNotFound      = errors.New("commission rule not found")
	ErrNoDefaultRule = errors.New("no default commission rule configured")
)

// Validate checks the conservation precondition: every cut in range and the
// parts summing to exactly BasisPointsTotal.
func (r Rule) Validate() error {
	if r.ID == "" {
		return errors.New("rule id is required")
	}
	if r.Industry == "" {
		return errors.New("rule industry is required")
	}
	sum := r.SellerBP + r.PlatformBP
	cuts := append([]int64{r.SellerBP, r.PlatformBP}, r.UplineBP[:]...)
	for _, c := range cuts {
		if c < 0 || c > BasisPointsTotal {
			return fmt.Errorf("cut %d out of range [0,%d]", c, BasisPointsTotal)
		}
	}
	for _, c := range r.UplineBP {
		sum += c
	}
	if sum != BasisPointsTotal {
		return fmt.Errorf("cuts sum to %d basis points, want %d", sum, BasisPointsTotal)
	}
	return nil
}

// SeedRules are the policies every fresh deployment starts with.
func SeedRules() []Rule {
	return []Rule{
		{
			ID:         "RULE-DEFAULT",
			Industry:   DefaultIndustry,
			SellerBP:   7000,
			PlatformBP: 1000,
			UplineBP:   [UplineLevels]int64{1000, 500, 300, 200},
		},
		{
			ID:         "RULE-REAL-ESTATE",
			Industry:   "REAL_ESTATE",
			SellerBP:   6000,
			PlatformBP: 2000,
			UplineBP:   [UplineLevels]int64{1000, 500, 250, 250},
		},
	}
}
