package registration

import (
	"context"
	"time"

	"paradise.network/internal/obs"
)

// Role distinguishes the two one-time-code challenges within a session.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleSponsor   Role = "sponsor"
)

// CodeSender delivers a one-time code to a mobile number. Real SMS gateways
// live behind this interface; the core never sees delivery details.
type CodeSender interface {
	SendCode(ctx context.Context, mobile string, role Role, code string) error
}

// LogSender emits the code as a structured log line. Default for
// development and tests; never deploy it against real traffic.
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, mobile string, role Role, code string) error {
	obs.LogRequest(map[string]any{
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		"type":   "otp",
		"role":   string(role),
		"mobile": mobile,
		"code":   code,
	})
	return nil
}
