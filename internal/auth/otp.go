package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OTPGenerator produces short numeric one-time codes with an absolute
// expiry, used for email verification.
type OTPGenerator struct {
	Digits int
	TTL    time.Duration
}

func NewOTPGenerator() *OTPGenerator {
	return &OTPGenerator{Digits: 6, TTL: 10 * time.Minute}
}

// NewCode returns a zero-padded numeric code and its expiry relative to now.
func (g *OTPGenerator) NewCode(now time.Time) (string, time.Time, error) {
	digits := g.Digits
	if digits <= 0 {
		digits = 6
	}

	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", time.Time{}, err
	}

	code := fmt.Sprintf("%0*d", digits, n)
	return code, now.Add(g.TTL), nil
}
