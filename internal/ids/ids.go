package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
	codeRand  = mathrand.New(mathrand.NewSource(time.Now().UnixNano() ^ 0x5eed))
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Referral codes use an alphabet without ambiguous glyphs (no I, L, O, 0, 1)
// because members read them out over the phone.
const codeAlphabet = "ABCDEFGHJKMNPRSTUVWXYZ23456789"

const codeLength = 7

// ReferralCode returns a candidate referral code of the form PN-XXXXXXX.
// Uniqueness is the caller's responsibility; regenerate on collision.
func ReferralCode() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[codeRand.Intn(len(codeAlphabet))]
	}
	return "PN-" + string(buf)
}
