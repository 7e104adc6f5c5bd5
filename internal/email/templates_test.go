package email

import (
	"strings"
	"testing"
)

func TestVerificationEmail(t *testing.T) {
	c := VerificationEmail("482913", 10)

	if c.Subject == "" {
		t.Fatal("empty subject")
	}
	if !strings.Contains(c.Text, "482913") || !strings.Contains(c.HTML, "482913") {
		t.Error("code missing from body")
	}
	if !strings.Contains(c.Text, "10 minutes") {
		t.Errorf("validity missing from text body: %q", c.Text)
	}
	if strings.Contains(c.HTML, "{code}") || strings.Contains(c.HTML, "{minutes}") {
		t.Error("unexpanded placeholder in HTML body")
	}
}

func TestMagicLinkEmail(t *testing.T) {
	link := "http://localhost:3000/magic-link?token=abc"
	c := MagicLinkEmail(link, 15)

	if !strings.Contains(c.Text, link) {
		t.Errorf("link missing from text body: %q", c.Text)
	}
	if !strings.Contains(c.HTML, `href="`+link+`"`) {
		t.Errorf("link missing from HTML body: %q", c.HTML)
	}
	if strings.Contains(c.Text, "{link}") || strings.Contains(c.HTML, "{minutes}") {
		t.Error("unexpanded placeholder")
	}
}
