// Package registration gates admission of new accounts into the network
// through a four-stage, OTP-guarded state machine.
package registration

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Stage is the candidate's position in the admission flow. Strictly
// forward-moving, except that a capacity failure at commit returns the
// session to sponsor entry.
type Stage string

const (
	StageMobileOTP    Stage = "mobile_otp"
	StageSponsorEntry Stage = "sponsor_entry"
	StageSponsorOTP   Stage = "sponsor_otp"
	StageFinalDetails Stage = "final_details"
)

// Session is the ephemeral state of one candidate's journey, keyed by the
// candidate's mobile number.
type Session struct {
	CandidateMobile    string    `json:"candidate_mobile"`
	Stage              Stage     `json:"stage"`
	CandidateOTP       string    `json:"-"`
	CandidateOTPExpiry time.Time `json:"candidate_otp_expiry"`
	SponsorID          string    `json:"sponsor_id,omitempty"`
	SponsorOTP         string    `json:"-"`
	SponsorOTPExpiry   time.Time `json:"sponsor_otp_expiry,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

var (
	ErrAlreadyRegistered = errors.New("mobile number already registered")
	ErrInvalidOTP        = errors.New("invalid or expired one-time code")
	ErrInvalidSponsor    = errors.New("invalid or inactive sponsor")
	ErrSponsorFull       = errors.New("sponsor has no free direct member slots")
	ErrNoSession         = errors.New("no registration session for this mobile")
	ErrWrongStage        = errors.New("operation not allowed at current stage")
)

const otpDigits = 6

// newOTP returns a six digit one-time code.
func newOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}
