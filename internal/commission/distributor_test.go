package commission

import (
	"errors"
	"testing"
)

func chainOf(n int) []string {
	ids := []string{"PN-UP1", "PN-UP2", "PN-UP3", "PN-UP4"}
	return ids[:n]
}

func TestDistributeWorkedExample(t *testing.T) {
	// Default rule, seller directly under the root: 1000 splits into
	// 700 seller, 100 level-1, and the three vacant levels plus the
	// platform's own cut make 200.
	rule := SeedRules()[0]
	dist, err := Distribute("PN-SELLER", 1000, rule, []string{"PN-ROOT"})
	if err != nil {
		t.Fatal(err)
	}
	if dist.Seller.Amount != 700 {
		t.Fatalf("seller = %d", dist.Seller.Amount)
	}
	if l1 := dist.Uplines[1]; l1.AccountID != "PN-ROOT" || l1.Amount != 100 {
		t.Fatalf("level 1 = %+v", l1)
	}
	if dist.Platform.Amount != 200 {
		t.Fatalf("platform = %d", dist.Platform.Amount)
	}
	if dist.Total() != 1000 {
		t.Fatalf("total = %d", dist.Total())
	}
}

func TestDistributeConservationAcrossChainDepths(t *testing.T) {
	rule := SeedRules()[0]
	for depth := 0; depth <= UplineLevels; depth++ {
		for _, gross := range []int64{1, 7, 999, 1000, 123_456_789} {
			dist, err := Distribute("PN-SELLER", gross, rule, chainOf(depth))
			if err != nil {
				t.Fatalf("depth %d gross %d: %v", depth, gross, err)
			}
			if dist.Total() != gross {
				t.Fatalf("depth %d gross %d: total %d", depth, gross, dist.Total())
			}
			if len(dist.Uplines) != depth {
				t.Fatalf("depth %d: %d upline shares", depth, len(dist.Uplines))
			}
		}
	}
}

func TestDistributeOrphanSharesAccrueToPlatform(t *testing.T) {
	rule := SeedRules()[0]
	full, err := Distribute("PN-SELLER", 10_000, rule, chainOf(UplineLevels))
	if err != nil {
		t.Fatal(err)
	}
	short, err := Distribute("PN-SELLER", 10_000, rule, chainOf(2))
	if err != nil {
		t.Fatal(err)
	}

	var vacant int64
	for level := 3; level <= UplineLevels; level++ {
		vacant += full.Uplines[level].Amount
	}
	if short.Platform.Amount != full.Platform.Amount+vacant {
		t.Fatalf("platform %d, want %d", short.Platform.Amount, full.Platform.Amount+vacant)
	}
	// Seller and surviving levels are untouched by the vacancy.
	if short.Seller.Amount != full.Seller.Amount {
		t.Fatalf("seller changed: %d vs %d", short.Seller.Amount, full.Seller.Amount)
	}
	if short.Uplines[1] != full.Uplines[1] || short.Uplines[2] != full.Uplines[2] {
		t.Fatal("surviving upline shares changed")
	}
}

func TestDistributeTruncationRemainder(t *testing.T) {
	rule := SeedRules()[0]
	// 33 * 7000 / 10000 truncates; the lost units must land on the platform.
	dist, err := Distribute("PN-SELLER", 33, rule, chainOf(UplineLevels))
	if err != nil {
		t.Fatal(err)
	}
	if dist.Total() != 33 {
		t.Fatalf("total = %d", dist.Total())
	}
	if dist.Seller.Amount != 23 { // floor(33*0.70)
		t.Fatalf("seller = %d", dist.Seller.Amount)
	}
}

func TestDistributeRejectsNonPositiveGross(t *testing.T) {
	rule := SeedRules()[0]
	for _, gross := range []int64{0, -5} {
		if _, err := Distribute("PN-SELLER", gross, rule, nil); !errors.Is(err, ErrInvalidGross) {
			t.Fatalf("gross %d: %v", gross, err)
		}
	}
}

func TestDistributeRejectsBrokenRule(t *testing.T) {
	rule := SeedRules()[0]
	rule.PlatformBP += 1
	if _, err := Distribute("PN-SELLER", 1000, rule, nil); err == nil {
		t.Fatal("expected validation error")
	}
}
