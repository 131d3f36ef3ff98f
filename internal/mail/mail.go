// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package mail delivers verification and password-reset emails.
package mail

import (
	"bytes"
	"context"
	"net/url"
	"text/template"

	"github.com/samber/oops"
)

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Links are the pages a recipient opens with the token from an email.
type Links struct {
	VerifyURL string `koanf:"verify_url"`
	ResetURL  string `koanf:"reset_url"`
}

// DefaultLinks returns the public site's pages.
func DefaultLinks() Links {
	return Links{
		VerifyURL: "https://beachbev.com/verify",
		ResetURL:  "https://beachbev.com/reset",
	}
}

var (
	verificationBody = template.Must(template.New("verification").Parse(
		`Welcome to BeachBev!

Confirm this address by opening the link below within 24 hours:

{{.Link}}

If you did not create an account, ignore this email.
`))

	resetBody = template.Must(template.New("reset").Parse(
		`Someone asked to reset the password of your BeachBev account.

Choose a new password here within 24 hours:

{{.Link}}

If it was not you, ignore this email. Your password has not changed.
`))
)

func render(tmpl *template.Template, to, subject, base, token string) (Message, error) {
	link, err := url.Parse(base)
	if err != nil {
		return Message{}, oops.Code("MAIL_LINK_INVALID").With("base", base).Wrap(err)
	}
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Link string }{link.String()}); err != nil {
		return Message{}, oops.Code("MAIL_RENDER_FAILED").With("template", tmpl.Name()).Wrap(err)
	}
	return Message{To: to, Subject: subject, Text: buf.String()}, nil
}

// VerificationMessage renders the email that confirms an address.
func (l Links) VerificationMessage(to, token string) (Message, error) {
	return render(verificationBody, to, "Verify your BeachBev email", l.VerifyURL, token)
}

// ResetMessage renders the password-reset email.
func (l Links) ResetMessage(to, token string) (Message, error) {
	return render(resetBody, to, "Reset your BeachBev password", l.ResetURL, token)
}
