package email

import (
	"strconv"
	"strings"
)

type Content struct {
	Subject string
	Text    string
	HTML    string
}

// VerificationEmail carries the numeric one-time code issued at signup.
func VerificationEmail(code string, minutes int) Content {
	return Content{
		Subject: "Verify your email",
		Text:    replace("Your verification code is {code}. It is valid for {minutes} minutes.", code, "", minutes),
		HTML: replace("<p>Verify your email</p>"+
			"<p>Use the code below to verify your email address.</p>"+
			"<p><strong>{code}</strong></p>"+
			"<p>The code expires in {minutes} minutes.</p>"+
			"<p>If you did not request this, you can ignore this email.</p>", code, "", minutes),
	}
}

// MagicLinkEmail carries the passwordless sign-in link.
func MagicLinkEmail(link string, minutes int) Content {
	return Content{
		Subject: "Your sign-in link",
		Text:    replace("Sign in using this link: {link}\nThe link expires in {minutes} minutes.\nIf you did not request this, ignore this email.", "", link, minutes),
		HTML: replace("<p>Sign in</p>"+
			"<p>Click the link below to sign in to your account.</p>"+
			"<p><a href=\"{link}\">Sign in</a></p>"+
			"<p>The link expires in {minutes} minutes.</p>"+
			"<p>If you did not request this, ignore this email.</p>", "", link, minutes),
	}
}

func replace(tpl, code, link string, minutes int) string {
	out := strings.ReplaceAll(tpl, "{code}", code)
	out = strings.ReplaceAll(out, "{link}", link)
	return strings.ReplaceAll(out, "{minutes}", strconv.Itoa(minutes))
}
