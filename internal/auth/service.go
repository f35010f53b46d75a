package auth

import (
	"context"
	"errors"
	"time"

	"paradise.network/internal/account"
)

// Roles carried in token claims. The network knows exactly two.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

var (
	// ErrBadCredentials covers unknown mobile numbers and wrong passwords
	// alike, so callers cannot probe which mobiles are registered.
	ErrBadCredentials = errors.New("invalid mobile number or password")
	// ErrAccountInactive rejects blocked and still-pending accounts.
	ErrAccountInactive = errors.New("account is not active")
)

const defaultTokenTTL = 15 * time.Minute

// Service authenticates members against the account store and issues
// bearer tokens.
type Service struct {
	accounts account.Store
	tokenTTL time.Duration
}

// NewService wires authentication against the account store.
func NewService(accounts account.Store) *Service {
	return &Service{accounts: accounts, tokenTTL: defaultTokenTTL}
}

// Authenticate verifies mobile+password and returns the account with a
// signed token. The root account authenticates as admin.
func (s *Service) Authenticate(ctx context.Context, mobile, password string) (account.Account, string, error) {
	acc, err := s.accounts.GetByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return account.Account{}, "", ErrBadCredentials
		}
		return account.Account{}, "", err
	}
	if err := VerifyPassword(acc.PasswordHash, password); err != nil {
		return account.Account{}, "", ErrBadCredentials
	}
	if acc.Status != account.StatusActive {
		return account.Account{}, "", ErrAccountInactive
	}

	roles := []string{RoleMember}
	if acc.IsRoot() {
		roles = append(roles, RoleAdmin)
	}
	token, err := GenerateToken(acc.ID, roles, s.tokenTTL)
	if err != nil {
		return account.Account{}, "", err
	}
	return acc, token, nil
}

// TokenTTL exposes the configured token lifetime.
func (s *Service) TokenTTL() time.Duration { return s.tokenTTL }
