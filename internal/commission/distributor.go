package commission

import (
	"errors"
	"fmt"
)

// Share is one recipient's slice of a distribution, in minor units.
type Share struct {
	AccountID string `json:"account_id,omitempty"`
	Amount    int64  `json:"amount"`
}

// Distribution is the immutable result of applying a rule to one
// transaction. Uplines is sparse: levels without a recipient are absent and
// their share has already accrued to the platform.
type Distribution struct {
	Seller   Share         `json:"seller"`
	Platform Share         `json:"platform"`
	Uplines  map[int]Share `json:"uplines,omitempty"`
}

// Total sums every component. Always equals the gross value by construction.
func (d Distribution) Total() int64 {
	total := d.Seller.Amount + d.Platform.Amount
	for _, s := range d.Uplines {
		total += s.Amount
	}
	return total
}

// ErrInvalidGross rejects non-positive transaction values.
var ErrInvalidGross = errors.New("gross value must be > 0")

// Distribute splits gross among seller, platform and up to four upline
// levels in chain (bottom-up ancestors of the seller). Shares of missing
// levels and the integer-truncation remainder both accrue to the platform,
// so the components always sum to gross exactly.
func Distribute(sellerID string, gross int64, rule Rule, chain []string) (Distribution, error) {
	if gross <= 0 {
		return Distribution{}, ErrInvalidGross
	}
	if err := rule.Validate(); err != nil {
		return Distribution{}, fmt.Errorf("unusable rule %s: %w", rule.ID, err)
	}

	cut := func(bp int64) int64 { return gross * bp / BasisPointsTotal }

	dist := Distribution{
		Seller:   Share{AccountID: sellerID, Amount: cut(rule.SellerBP)},
		Platform: Share{Amount: cut(rule.PlatformBP)},
	}

	distributed := dist.Seller.Amount + dist.Platform.Amount
	for level := 1; level <= UplineLevels; level++ {
		amount := cut(rule.UplineBP[level-1])
		distributed += amount
		if level <= len(chain) {
			if dist.Uplines == nil {
				dist.Uplines = make(map[int]Share, UplineLevels)
			}
			dist.Uplines[level] = Share{AccountID: chain[level-1], Amount: amount}
		} else {
			dist.Platform.Amount += amount
		}
	}

	// Truncation leftovers go to the platform; conservation is exact.
	dist.Platform.Amount += gross - distributed
	return dist, nil
}
