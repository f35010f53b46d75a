// Command smoke-network exercises the admission and payout pipeline end to
// end against in-memory stores and fails loudly if value is not conserved.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"paradise.network/internal/account"
	"paradise.network/internal/commission"
	"paradise.network/internal/ledger"
	"paradise.network/internal/network"
	"paradise.network/internal/registration"
)

type captureSender struct {
	codes map[registration.Role]string
}

func (c *captureSender) SendCode(ctx context.Context, mobile string, role registration.Role, code string) error {
	c.codes[role] = code
	return nil
}

func main() {
	log.SetFlags(0)

	accounts := account.NewInMemory()
	graph := network.New(accounts)
	sender := &captureSender{codes: make(map[registration.Role]string)}
	workflow := registration.NewWorkflow(accounts, graph, registration.WithSender(sender))

	resolver, err := commission.NewResolver(commission.SeedRules())
	if err != nil {
		log.Fatalf("seed rules: %v", err)
	}
	entries := ledger.NewInMemory()
	svc := ledger.NewService(accounts, graph, resolver, entries)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mobile := "7015550100"
	if err := workflow.StartVerification(ctx, mobile); err != nil {
		log.Fatalf("start verification: %v", err)
	}
	if err := workflow.VerifyCandidateOTP(ctx, mobile, sender.codes[registration.RoleCandidate]); err != nil {
		log.Fatalf("candidate otp: %v", err)
	}
	if err := workflow.SubmitSponsor(ctx, mobile, account.RootReferralCode); err != nil {
		log.Fatalf("submit sponsor: %v", err)
	}
	if err := workflow.VerifySponsorOTP(ctx, mobile, sender.codes[registration.RoleSponsor]); err != nil {
		log.Fatalf("sponsor otp: %v", err)
	}
	member, err := workflow.Commit(ctx, mobile, registration.Profile{Name: "Smoke Member", Password: "smoke-pass-1"})
	if err != nil {
		log.Fatalf("commit: %v", err)
	}

	gross := int64(1000)
	entry, err := svc.Record(ctx, member.ID, gross, commission.DefaultIndustry, "", fmt.Sprintf("smoke-%d", time.Now().UnixNano()))
	if err != nil {
		log.Fatalf("record transaction: %v", err)
	}

	if total := entry.Payout.Total(); total != gross {
		log.Fatalf("conservation failed: payout total %d, gross %d", total, gross)
	}
	if entry.Payout.Seller.Amount != 700 {
		log.Fatalf("unexpected seller cut: %d", entry.Payout.Seller.Amount)
	}
	if l1 := entry.Payout.Uplines[1]; l1.AccountID != account.RootID || l1.Amount != 100 {
		log.Fatalf("unexpected level-1 cut: %+v", l1)
	}
	if entry.Payout.Platform.Amount != 200 {
		log.Fatalf("unexpected platform cut: %d", entry.Payout.Platform.Amount)
	}

	fmt.Printf("OK: member %s admitted under %s, %d split %d/%d/%d\n",
		member.ID, account.RootID, gross,
		entry.Payout.Seller.Amount, entry.Payout.Uplines[1].Amount, entry.Payout.Platform.Amount)
}
