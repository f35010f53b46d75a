package auth

import (
	"context"
	"errors"
	"testing"

	"paradise.network/internal/account"
)

func seedMember(t *testing.T, store account.Store, mobile, password string) account.Account {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	m := &account.Account{
		ID:           "PN-AUTH01",
		MobileNumber: mobile,
		Name:         "Member",
		ReferralCode: "PN-AUTH0001",
		Status:       account.StatusActive,
		PasswordHash: hash,
	}
	if err := store.Admit(context.Background(), m, account.RootID); err != nil {
		t.Fatal(err)
	}
	m.SponsorID = account.RootID
	return *m
}

func TestAuthenticate(t *testing.T) {
	setTestSecret(t)
	store := account.NewInMemory()
	svc := NewService(store)
	member := seedMember(t, store, "7015550300", "hunter2hunter2")
	ctx := context.Background()

	acc, token, err := svc.Authenticate(ctx, member.MobileNumber, "hunter2hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if acc.ID != member.ID {
		t.Fatalf("account = %q", acc.ID)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.Subject != member.ID {
		t.Fatalf("subject = %q", claims.Subject)
	}
	for _, role := range claims.Roles {
		if role == RoleAdmin {
			t.Fatal("ordinary member granted admin")
		}
	}
}

func TestAuthenticateBadCredentials(t *testing.T) {
	setTestSecret(t)
	store := account.NewInMemory()
	svc := NewService(store)
	member := seedMember(t, store, "7015550301", "hunter2hunter2")
	ctx := context.Background()

	// Unknown mobile and wrong password yield the same error.
	if _, _, err := svc.Authenticate(ctx, "7000000000", "whatever"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("unknown mobile: %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, member.MobileNumber, "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
}

func TestAuthenticateBlockedAccount(t *testing.T) {
	setTestSecret(t)
	store := account.NewInMemory()
	svc := NewService(store)
	member := seedMember(t, store, "7015550302", "hunter2hunter2")
	ctx := context.Background()

	if err := store.SetStatus(ctx, member.ID, account.StatusBlocked); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Authenticate(ctx, member.MobileNumber, "hunter2hunter2"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}
