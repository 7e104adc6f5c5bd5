package auth

import (
	"testing"
	"time"
)

func TestOTPGeneratorCodeShape(t *testing.T) {
	g := NewOTPGenerator()
	now := time.Now()

	for i := 0; i < 50; i++ {
		code, expiresAt, err := g.NewCode(now)
		if err != nil {
			t.Fatalf("NewCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q has length %d, want 6", code, len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
		if want := now.Add(10 * time.Minute); !expiresAt.Equal(want) {
			t.Fatalf("expiresAt = %v, want %v", expiresAt, want)
		}
	}
}

func TestOTPGeneratorCustomDigits(t *testing.T) {
	g := &OTPGenerator{Digits: 8, TTL: time.Minute}

	code, _, err := g.NewCode(time.Now())
	if err != nil {
		t.Fatalf("NewCode: %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("code %q has length %d, want 8", code, len(code))
	}
}
