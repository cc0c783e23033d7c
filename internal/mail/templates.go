package mail

import (
	"fmt"
	"html"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	PasswordResetSubject = "Your password reset token (valid for 10 min)"
	WelcomeSubject       = "Welcome to the tourhub family!"
)

// FirstName returns the title-cased first word of a display name.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return cases.Title(language.English).String(fields[0])
}

func PasswordReset(to, name, resetURL string) Message {
	text := fmt.Sprintf("Hi %s,\n\nForgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s.\n"+
		"If you didn't forget your password, please ignore this email!", FirstName(name), resetURL)

	return Message{
		To:      to,
		ToName:  name,
		Subject: PasswordResetSubject,
		Text:    text,
		HTML: fmt.Sprintf("<p>Hi %s,</p><p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: "+
			"<a href=\"%s\">%s</a>.</p><p>If you didn't forget your password, please ignore this email!</p>",
			html.EscapeString(FirstName(name)), html.EscapeString(resetURL), html.EscapeString(resetURL)),
	}
}

func Welcome(to, name, profileURL string) Message {
	text := fmt.Sprintf("Hi %s,\n\nWelcome to tourhub, we're glad to have you!\nUpload a profile photo and start exploring: %s",
		FirstName(name), profileURL)

	return Message{
		To:      to,
		ToName:  name,
		Subject: WelcomeSubject,
		Text:    text,
		HTML: fmt.Sprintf("<p>Hi %s,</p><p>Welcome to tourhub, we're glad to have you!</p><p><a href=\"%s\">Upload a profile photo</a> and start exploring.</p>",
			html.EscapeString(FirstName(name)), html.EscapeString(profileURL)),
	}
}
