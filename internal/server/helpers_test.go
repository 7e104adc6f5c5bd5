package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"password123", true},
		{"short1", false},
		{"onlyletters", false},
		{"12345678", false},
		{"", false},
	}
	for _, c := range cases {
		err := validatePassword(c.password)
		if c.ok && err != nil {
			t.Errorf("validatePassword(%q) = %v, want nil", c.password, err)
		}
		if !c.ok && err == nil {
			t.Errorf("validatePassword(%q) = nil, want error", c.password)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	for _, email := range []string{"user@example.com", "john.doe+tag@sub.example.com"} {
		if !validateEmail(email) {
			t.Errorf("validateEmail(%q) = false", email)
		}
	}
	for _, email := range []string{"", "not-an-email", "@example.com"} {
		if validateEmail(email) {
			t.Errorf("validateEmail(%q) = true", email)
		}
	}
}

func TestClientIPIgnoresForwardedFromUntrustedPeer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:4444"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")

	if got := clientIP(r, nil); got != "203.0.113.9" {
		t.Errorf("clientIP = %q, want remote host", got)
	}
}

func TestClientIPHonorsForwardedFromTrustedProxy(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.5:4444"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.5")

	proxies := parseProxyCIDRs([]string{"10.0.0.0/8"})
	if got := clientIP(r, proxies); got != "198.51.100.1" {
		t.Errorf("clientIP = %q, want first forwarded hop", got)
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if bearerToken(r) != "" {
		t.Error("token from missing header")
	}

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	if got := bearerToken(r); got != "abc.def.ghi" {
		t.Errorf("bearerToken = %q", got)
	}

	r.Header.Set("Authorization", "Basic dXNlcg==")
	if bearerToken(r) != "" {
		t.Error("token from non-bearer header")
	}
}
