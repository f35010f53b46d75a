package registration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"paradise.network/internal/account"
	"paradise.network/internal/auth"
	"paradise.network/internal/ids"
	"paradise.network/internal/network"
	"paradise.network/internal/obs"
)

const defaultOTPTTL = 5 * time.Minute

// Profile carries the final-details form of a committing candidate.
type Profile struct {
	Name     string
	Password string
}

// Workflow runs the admission state machine. Sessions are independent per
// candidate; the only cross-session coordination is the sponsor capacity
// check, which the account store enforces at commit.
type Workflow struct {
	mu       sync.Mutex
	sessions map[string]*Session

	accounts account.Store
	graph    *network.Graph
	sender   CodeSender
	otpTTL   time.Duration
	now      func() time.Time
}

// Option configures Workflow behavior.
type Option func(*Workflow)

// WithSender overrides one-time-code delivery.
func WithSender(s CodeSender) Option {
	return func(w *Workflow) {
		if s != nil {
			w.sender = s
		}
	}
}

// WithOTPTTL overrides the code lifetime.
func WithOTPTTL(ttl time.Duration) Option {
	return func(w *Workflow) {
		if ttl > 0 {
			w.otpTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(w *Workflow) {
		if fn != nil {
			w.now = fn
		}
	}
}

// NewWorkflow constructs the admission workflow.
func NewWorkflow(accounts account.Store, graph *network.Graph, opts ...Option) *Workflow {
	w := &Workflow{
		sessions: make(map[string]*Session),
		accounts: accounts,
		graph:    graph,
		sender:   LogSender{},
		otpTTL:   defaultOTPTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// StartVerification opens (or restarts) a session for the candidate mobile
// and sends the candidate one-time code. A session for a mobile is always
// replaced wholesale, never reused for a different candidate.
func (w *Workflow) StartVerification(ctx context.Context, mobile string) error {
	if _, err := w.accounts.GetByMobile(ctx, mobile); err == nil {
		return ErrAlreadyRegistered
	} else if !errors.Is(err, account.ErrNotFound) {
		return err
	}

	code, err := newOTP()
	if err != nil {
		return err
	}
	now := w.now().UTC()

	w.mu.Lock()
	w.sessions[mobile] = &Session{
		CandidateMobile:    mobile,
		Stage:              StageMobileOTP,
		CandidateOTP:       code,
		CandidateOTPExpiry: now.Add(w.otpTTL),
		CreatedAt:          now,
	}
	w.mu.Unlock()

	return w.sender.SendCode(ctx, mobile, RoleCandidate, code)
}

// VerifyCandidateOTP advances MobileOTP -> SponsorEntry. Codes are single
// use: a match consumes the code whether or not it has expired.
func (w *Workflow) VerifyCandidateOTP(ctx context.Context, mobile, code string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	sess, ok := w.sessions[mobile]
	if !ok {
		return ErrNoSession
	}
	if sess.Stage != StageMobileOTP {
		return ErrWrongStage
	}
	if sess.CandidateOTP == "" || code != sess.CandidateOTP {
		return ErrInvalidOTP
	}
	sess.CandidateOTP = ""
	if w.now().After(sess.CandidateOTPExpiry) {
		return ErrInvalidOTP
	}
	sess.Stage = StageSponsorEntry
	return nil
}

// SubmitSponsor names a sponsor by referral code, checks eligibility early
// for user feedback, and sends the sponsor one-time code. On failure the
// session stays in SponsorEntry.
func (w *Workflow) SubmitSponsor(ctx context.Context, mobile, referralCode string) error {
	w.mu.Lock()
	sess, ok := w.sessions[mobile]
	if !ok {
		w.mu.Unlock()
		return ErrNoSession
	}
	if sess.Stage != StageSponsorEntry {
		w.mu.Unlock()
		return ErrWrongStage
	}
	w.mu.Unlock()

	sponsor, err := w.accounts.GetByReferralCode(ctx, referralCode)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return ErrInvalidSponsor
		}
		return err
	}
	if sponsor.Status != account.StatusActive {
		return ErrInvalidSponsor
	}
	ok, err = w.graph.CanAdmitChild(ctx, sponsor.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSponsorFull
	}

	code, err := newOTP()
	if err != nil {
		return err
	}

	w.mu.Lock()
	// Re-read: the session may have been restarted while we were away.
	sess, ok = w.sessions[mobile]
	if !ok || sess.Stage != StageSponsorEntry {
		w.mu.Unlock()
		return ErrNoSession
	}
	sess.SponsorID = sponsor.ID
	sess.SponsorOTP = code
	sess.SponsorOTPExpiry = w.now().UTC().Add(w.otpTTL)
	sess.Stage = StageSponsorOTP
	w.mu.Unlock()

	return w.sender.SendCode(ctx, sponsor.MobileNumber, RoleSponsor, code)
}

// VerifySponsorOTP advances SponsorOTP -> FinalDetails.
func (w *Workflow) VerifySponsorOTP(ctx context.Context, mobile, code string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	sess, ok := w.sessions[mobile]
	if !ok {
		return ErrNoSession
	}
	if sess.Stage != StageSponsorOTP {
		return ErrWrongStage
	}
	if sess.SponsorOTP == "" || code != sess.SponsorOTP {
		return ErrInvalidOTP
	}
	sess.SponsorOTP = ""
	if w.now().After(sess.SponsorOTPExpiry) {
		return ErrInvalidOTP
	}
	sess.Stage = StageFinalDetails
	return nil
}

// Commit re-checks sponsor eligibility (two candidates may have passed
// SubmitSponsor against the same nearly-full sponsor, or an admin may have
// blocked the sponsor since) and creates the account. On ErrSponsorFull or
// ErrInvalidSponsor the session reverts to SponsorEntry and the sponsor
// must be re-entered.
func (w *Workflow) Commit(ctx context.Context, mobile string, profile Profile) (account.Account, error) {
	w.mu.Lock()
	sess, ok := w.sessions[mobile]
	if !ok {
		w.mu.Unlock()
		return account.Account{}, ErrNoSession
	}
	if sess.Stage != StageFinalDetails || sess.SponsorID == "" {
		w.mu.Unlock()
		return account.Account{}, ErrWrongStage
	}
	sponsorID := sess.SponsorID
	w.mu.Unlock()

	if profile.Name == "" || profile.Password == "" {
		return account.Account{}, errors.New("name and password are required")
	}
	hash, err := auth.HashPassword(profile.Password)
	if err != nil {
		return account.Account{}, err
	}

	acc := account.Account{
		ID:           ids.New(),
		MobileNumber: mobile,
		Name:         profile.Name,
		Status:       account.StatusActive,
		PasswordHash: hash,
		CreatedAt:    w.now().UTC(),
	}

	// Referral codes are random; retry the whole admit on a collision.
	const maxAttempts = 5
	for attempt := 0; ; attempt++ {
		acc.ReferralCode = ids.ReferralCode()
		err = w.accounts.Admit(ctx, &acc, sponsorID)
		if err == nil {
			break
		}
		if errors.Is(err, account.ErrCapacityExceeded) {
			w.revertToSponsorEntry(mobile)
			return account.Account{}, ErrSponsorFull
		}
		if errors.Is(err, account.ErrSponsorInactive) {
			w.revertToSponsorEntry(mobile)
			return account.Account{}, ErrInvalidSponsor
		}
		if errors.Is(err, account.ErrAlreadyExists) {
			// The collision may be on the mobile, not the random referral
			// code: another path registered this candidate mid-flow.
			if _, lookupErr := w.accounts.GetByMobile(ctx, mobile); lookupErr == nil {
				w.mu.Lock()
				delete(w.sessions, mobile)
				w.mu.Unlock()
				return account.Account{}, ErrAlreadyRegistered
			}
			if attempt < maxAttempts {
				continue
			}
		}
		return account.Account{}, fmt.Errorf("admit account: %w", err)
	}
	acc.SponsorID = sponsorID

	// Best effort: the sponsor's CRM card starts with a "New" note.
	_ = w.accounts.SetCRMNote(ctx, sponsorID, acc.ID, "New")

	w.mu.Lock()
	delete(w.sessions, mobile)
	w.mu.Unlock()

	obs.RegistrationCompleted()
	return acc, nil
}

// Session returns a copy of the candidate's session, for status screens.
func (w *Workflow) Session(mobile string) (Session, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	sess, ok := w.sessions[mobile]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// PurgeExpired drops sessions whose codes expired before the cutoff.
// Callers run it periodically; sessions need no synchronous collection.
func (w *Workflow) PurgeExpired(cutoff time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	var n int
	for mobile, sess := range w.sessions {
		expiry := sess.CandidateOTPExpiry
		if sess.SponsorOTPExpiry.After(expiry) {
			expiry = sess.SponsorOTPExpiry
		}
		if expiry.Before(cutoff) {
			delete(w.sessions, mobile)
			n++
		}
	}
	return n
}

func (w *Workflow) revertToSponsorEntry(mobile string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if sess, ok := w.sessions[mobile]; ok {
		sess.Stage = StageSponsorEntry
		sess.SponsorID = ""
		sess.SponsorOTP = ""
		sess.SponsorOTPExpiry = time.Time{}
	}
}
