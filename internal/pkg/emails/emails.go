// Package emails renders the transactional HTML emails: account
// verification, account deletion confirmation and password reset.
package emails

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

var tmpl = template.Must(template.ParseFS(files, "templates/*.html"))

// Message is a rendered email ready for delivery.
type Message struct {
	Subject string
	HTML    string
}

type data struct {
	AppName     string
	DisplayName string
	URL         string
}

func Verification(appName, displayName, url string) (Message, error) {
	return render("verification.html", fmt.Sprintf("Verify your email, @%s!", displayName), data{appName, displayName, url})
}

func AccountDeletion(appName, displayName, url string) (Message, error) {
	return render("account_deletion.html", fmt.Sprintf("%s's account delete confirmation.", displayName), data{appName, displayName, url})
}

func PasswordReset(appName, displayName, url string) (Message, error) {
	return render("password_reset.html", fmt.Sprintf("Change your password, @%s!", displayName), data{appName, displayName, url})
}

func render(name, subject string, d data) (Message, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, d); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{Subject: subject, HTML: buf.String()}, nil
}
