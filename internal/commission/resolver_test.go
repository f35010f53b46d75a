package commission

import (
	"context"
	"errors"
	"testing"
)

func validRule(id, industry, project string) Rule {
	return Rule{
		ID:         id,
		Industry:   industry,
		Project:    project,
		SellerBP:   7000,
		PlatformBP: 1000,
		UplineBP:   [UplineLevels]int64{1000, 500, 300, 200},
	}
}

func TestResolverRequiresDefault(t *testing.T) {
	_, err := NewResolver([]Rule{validRule("R1", "REAL_ESTATE", "")})
	if !errors.Is(err, ErrNoDefaultRule) {
		t.Fatalf("expected ErrNoDefaultRule, got %v", err)
	}
}

func TestResolverRejectsInvalidRule(t *testing.T) {
	bad := validRule("R-BAD", DefaultIndustry, "")
	bad.SellerBP = 9000 // sum now exceeds the whole
	if _, err := NewResolver([]Rule{bad}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestResolvePrecedence(t *testing.T) {
	rules := []Rule{
		validRule("R-DEFAULT", DefaultIndustry, ""),
		validRule("R-INDUSTRY", "REAL_ESTATE", ""),
		validRule("R-PROJECT", "REAL_ESTATE", "towers-phase-2"),
	}
	r, err := NewResolver(rules)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if got := r.Resolve(ctx, "REAL_ESTATE", "towers-phase-2"); got.ID != "R-PROJECT" {
		t.Fatalf("project scope resolved %q", got.ID)
	}
	if got := r.Resolve(ctx, "REAL_ESTATE", "unknown-project"); got.ID != "R-INDUSTRY" {
		t.Fatalf("industry fallback resolved %q", got.ID)
	}
	if got := r.Resolve(ctx, "REAL_ESTATE", ""); got.ID != "R-INDUSTRY" {
		t.Fatalf("industry scope resolved %q", got.ID)
	}
	if got := r.Resolve(ctx, "HOSPITALITY", "any"); got.ID != "R-DEFAULT" {
		t.Fatalf("default fallback resolved %q", got.ID)
	}
}

func TestUpsertReplacesScope(t *testing.T) {
	r, err := NewResolver(SeedRules())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	replacement := validRule("R-NEW-DEFAULT", DefaultIndustry, "")
	if err := r.Upsert(ctx, replacement); err != nil {
		t.Fatal(err)
	}
	if got := r.Resolve(ctx, "ANYTHING", ""); got.ID != "R-NEW-DEFAULT" {
		t.Fatalf("default after upsert = %q", got.ID)
	}

	bad := validRule("R-BROKEN", DefaultIndustry, "")
	bad.PlatformBP = 99999
	if err := r.Upsert(ctx, bad); err == nil {
		t.Fatal("expected validation error")
	}
	// The failed upsert did not clobber the installed rule.
	if got := r.Resolve(ctx, "ANYTHING", ""); got.ID != "R-NEW-DEFAULT" {
		t.Fatalf("default after failed upsert = %q", got.ID)
	}
}

func TestSeedRulesAreValid(t *testing.T) {
	for _, rule := range SeedRules() {
		if err := rule.Validate(); err != nil {
			t.Fatalf("seed rule %s: %v", rule.ID, err)
		}
	}
	if _, err := NewResolver(SeedRules()); err != nil {
		t.Fatal(err)
	}
}
