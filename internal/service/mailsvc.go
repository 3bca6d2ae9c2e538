package service

import (
	"fmt"
	"strings"
	"time"
)

// Email bodies are composed here so the transport (internal/email) stays a
// dumb pipe. Codes are interpolated into the body only; they never appear in
// subjects, which tend to end up in notification previews and logs.

func verificationEmail(code string, ttl time.Duration) (subject, html, text string) {
	subject = "Verify your email address"
	text = strings.Join([]string{
		"Welcome!",
		"",
		"Your email verification code is:",
		code,
		"",
		fmt.Sprintf("The code expires in %s.", formatTTL(ttl)),
		"",
		"If you did not create an account, you can ignore this email.",
	}, "\n")
	html = fmt.Sprintf(
		`<p>Welcome!</p><p>Your email verification code is:</p><p style="font-size:1.5em"><strong>%s</strong></p><p>The code expires in %s.</p><p>If you did not create an account, you can ignore this email.</p>`,
		code, formatTTL(ttl))
	return subject, html, text
}

func resetEmail(code string, ttl time.Duration) (subject, html, text string) {
	subject = "Reset your password"
	text = strings.Join([]string{
		"You requested a password reset.",
		"",
		"Your password reset code is:",
		code,
		"",
		fmt.Sprintf("The code expires in %s.", formatTTL(ttl)),
		"",
		"If you did not request this, you can ignore this email.",
	}, "\n")
	html = fmt.Sprintf(
		`<p>You requested a password reset.</p><p>Your password reset code is:</p><p style="font-size:1.5em"><strong>%s</strong></p><p>The code expires in %s.</p><p>If you did not request this, you can ignore this email.</p>`,
		code, formatTTL(ttl))
	return subject, html, text
}

func formatTTL(ttl time.Duration) string {
	if ttl <= 0 {
		return "a few minutes"
	}
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
