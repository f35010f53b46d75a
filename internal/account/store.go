package account

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MaxDirect caps how many direct members one sponsor may carry.
const MaxDirect = 15

// Root account seeded into every store so the sponsor forest always has
// its designated root.
const (
	RootID           = "PN-ROOT"
	RootMobile       = "1000000000"
	RootReferralCode = "PN-ROOT0001"
)

var (
	ErrCapacityExceeded    = errors.New("sponsor has reached direct member capacity")
	ErrSponsorInactive     = errors.New("sponsor is not active")
	ErrSelfReference       = errors.New("account cannot sponsor itself")
	ErrAlreadyUnderSponsor = errors.New("account is already under this sponsor")
	ErrCycle               = errors.New("re-parent would introduce a cycle")
)

// Store is the durable record set of accounts. Tree-edge mutations enforce
// the capacity and no-cycle invariants at the store boundary, so every
// caller races safely.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, id string) (Account, error)
	GetByMobile(ctx context.Context, mobile string) (Account, error)
	GetByReferralCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context) ([]Account, error)

	// Admit creates the account and attaches it under sponsorID as one
	// atomic step, so a lost capacity race leaves no orphan record.
	Admit(ctx context.Context, a *Account, sponsorID string) error
	AttachChild(ctx context.Context, sponsorID, childID string) error
	Reparent(ctx context.Context, id, newSponsorID string) error

	SetStatus(ctx context.Context, id string, st Status) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	SetCRMNote(ctx context.Context, sponsorID, memberID, note string) error
}

// InMemory implements Store with in-process concurrency safety. One RWMutex
// covers the whole account set; fan-out is bounded, volumes are small.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	byMobile map[string]string // mobile -> id
	byCode   map[string]string // referral code -> id
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates a store pre-seeded with the root account.
func NewInMemory() *InMemory {
	s := &InMemory{
		accounts: make(map[string]*Account),
		byMobile: make(map[string]string),
		byCode:   make(map[string]string),
	}
	root := &Account{
		ID:           RootID,
		MobileNumber: RootMobile,
		Name:         "Network Root",
		ReferralCode: RootReferralCode,
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	s.accounts[root.ID] = root
	s.byMobile[root.MobileNumber] = root.ID
	s.byCode[root.ReferralCode] = root.ID
	return s
}

func (s *InMemory) Create(ctx context.Context, a *Account) error {
	if a.ID == "" || a.MobileNumber == "" || a.ReferralCode == "" {
		return errors.New("account id, mobile number and referral code are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.byMobile[a.MobileNumber]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.byCode[a.ReferralCode]; ok {
		return ErrAlreadyExists
	}
	cp := *a
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.accounts[cp.ID] = &cp
	s.byMobile[cp.MobileNumber] = cp.ID
	s.byCode[cp.ReferralCode] = cp.ID
	return nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *InMemory) GetByMobile(ctx context.Context, mobile string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byMobile[mobile]
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.getLocked(id)
}

func (s *InMemory) GetByReferralCode(ctx context.Context, code string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.getLocked(id)
}

func (s *InMemory) List(ctx context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accounts))
	for id := range s.accounts {
		acc, _ := s.getLocked(id)
		out = append(out, acc)
	}
	return out, nil
}

// Admit creates the account and links it under sponsorID atomically.
func (s *InMemory) Admit(ctx context.Context, a *Account, sponsorID string) error {
	if a.ID == "" || a.MobileNumber == "" || a.ReferralCode == "" {
		return errors.New("account id, mobile number and referral code are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sponsor, ok := s.accounts[sponsorID]
	if !ok {
		return ErrNotFound
	}
	if sponsor.Status != StatusActive {
		return ErrSponsorInactive
	}
	if len(sponsor.Children) >= MaxDirect {
		return ErrCapacityExceeded
	}
	if _, ok := s.accounts[a.ID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.byMobile[a.MobileNumber]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.byCode[a.ReferralCode]; ok {
		return ErrAlreadyExists
	}
	cp := *a
	cp.SponsorID = sponsorID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.accounts[cp.ID] = &cp
	s.byMobile[cp.MobileNumber] = cp.ID
	s.byCode[cp.ReferralCode] = cp.ID
	sponsor.Children = append(sponsor.Children, cp.ID)
	return nil
}

// AttachChild links child under sponsor. The status and capacity checks run
// under the write lock, which makes this the authoritative admission point.
func (s *InMemory) AttachChild(ctx context.Context, sponsorID, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sponsor, ok := s.accounts[sponsorID]
	if !ok {
		return ErrNotFound
	}
	child, ok := s.accounts[childID]
	if !ok {
		return ErrNotFound
	}
	if child.SponsorID == sponsorID {
		return ErrAlreadyUnderSponsor
	}
	if sponsor.Status != StatusActive {
		return ErrSponsorInactive
	}
	if len(sponsor.Children) >= MaxDirect {
		return ErrCapacityExceeded
	}
	// An account lives in exactly one children list; moving it detaches it
	// from the previous sponsor under the same lock.
	if old, ok := s.accounts[child.SponsorID]; ok {
		old.Children = removeString(old.Children, childID)
	}
	child.SponsorID = sponsorID
	sponsor.Children = append(sponsor.Children, childID)
	return nil
}

// Reparent moves an account under a new sponsor as one atomic step.
func (s *InMemory) Reparent(ctx context.Context, id, newSponsorID string) error {
	if id == newSponsorID {
		return ErrSelfReference
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	sponsor, ok := s.accounts[newSponsorID]
	if !ok {
		return ErrNotFound
	}
	if acc.SponsorID == newSponsorID {
		return ErrAlreadyUnderSponsor
	}
	if sponsor.Status != StatusActive {
		return ErrSponsorInactive
	}
	// Walking up from the new sponsor must never reach the account being
	// moved, otherwise the edge closes a cycle.
	for cur := sponsor; cur != nil && cur.SponsorID != ""; {
		if cur.SponsorID == id {
			return ErrCycle
		}
		cur = s.accounts[cur.SponsorID]
	}
	if len(sponsor.Children) >= MaxDirect {
		return ErrCapacityExceeded
	}

	if old, ok := s.accounts[acc.SponsorID]; ok {
		old.Children = removeString(old.Children, id)
	}
	acc.SponsorID = newSponsorID
	sponsor.Children = append(sponsor.Children, id)
	return nil
}

func (s *InMemory) SetStatus(ctx context.Context, id string, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acc.Status = st
	return nil
}

func (s *InMemory) SetPassword(ctx context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	acc.PasswordHash = passwordHash
	return nil
}

func (s *InMemory) SetCRMNote(ctx context.Context, sponsorID, memberID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sponsor, ok := s.accounts[sponsorID]
	if !ok {
		return ErrNotFound
	}
	if sponsor.CRMNotes == nil {
		sponsor.CRMNotes = make(map[string]string)
	}
	sponsor.CRMNotes[memberID] = note
	return nil
}

// getLocked returns a deep copy so callers never alias internal state.
func (s *InMemory) getLocked(id string) (Account, error) {
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	out := *acc
	out.Children = append([]string(nil), acc.Children...)
	if acc.CRMNotes != nil {
		out.CRMNotes = make(map[string]string, len(acc.CRMNotes))
		for k, v := range acc.CRMNotes {
			out.CRMNotes[k] = v
		}
	}
	return out, nil
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}
