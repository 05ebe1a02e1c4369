// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Package mail renders and delivers transactional email.
package mail

import (
	"bytes"
	htmltemplate "html/template"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/samber/oops"
)

// Kind labels a message for logs and metrics.
type Kind string

// Message kinds.
const (
	KindPasswordReset Kind = "password_reset"
	KindActivation    Kind = "activation"
)

// Message is a rendered email ready for a Sender.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Text    string
	HTML    string
}

// LinkData is the template input for link-carrying messages.
type LinkData struct {
	Name      string
	Link      string
	ExpiresIn string
}

var (
	resetText = template.Must(template.New("reset.txt").Parse(`Hello {{.Name}},

We received a request to set the password of your account.
Open the link below to choose a new password. It expires in {{.ExpiresIn}}.

{{.Link}}

If you did not ask for this, contact your administrator.
`))

	resetHTML = htmltemplate.Must(htmltemplate.New("reset.html").Parse(`<p>Hello {{.Name}},</p>
<p>We received a request to set the password of your account.
Open the link below to choose a new password. It expires in {{.ExpiresIn}}.</p>
<p><a href="{{.Link}}">Set my password</a></p>
<p>If you did not ask for this, contact your administrator.</p>
`))

	activationText = template.Must(template.New("activation.txt").Parse(`Hello {{.Name}},

Thank you for registering. Confirm your account with the link below.
It expires in {{.ExpiresIn}}.

{{.Link}}
`))

	activationHTML = htmltemplate.Must(htmltemplate.New("activation.html").Parse(`<p>Hello {{.Name}},</p>
<p>Thank you for registering. Confirm your account with the link below.
It expires in {{.ExpiresIn}}.</p>
<p><a href="{{.Link}}">Activate my account</a></p>
`))
)

// PasswordReset renders the reset-link message.
func PasswordReset(to, name, link string, ttl time.Duration) (Message, error) {
	return render(KindPasswordReset, to, "Set your password", resetText, resetHTML, LinkData{
		Name:      greetingName(name, to),
		Link:      link,
		ExpiresIn: humanDuration(ttl),
	})
}

// Activation renders the registration activation message.
func Activation(to, name, link string, ttl time.Duration) (Message, error) {
	return render(KindActivation, to, "Activate your account", activationText, activationHTML, LinkData{
		Name:      greetingName(name, to),
		Link:      link,
		ExpiresIn: humanDuration(ttl),
	})
}

func render(kind Kind, to, subject string, text *template.Template, html *htmltemplate.Template, data LinkData) (Message, error) {
	if to == "" {
		return Message{}, oops.Code("MAIL_NO_RECIPIENT").With("kind", kind).Errorf("recipient is required")
	}

	var textBuf, htmlBuf bytes.Buffer
	if err := text.Execute(&textBuf, data); err != nil {
		return Message{}, oops.Code("MAIL_RENDER_FAILED").With("kind", kind).With("part", "text").Wrap(err)
	}
	if err := html.Execute(&htmlBuf, data); err != nil {
		return Message{}, oops.Code("MAIL_RENDER_FAILED").With("kind", kind).With("part", "html").Wrap(err)
	}

	return Message{
		Kind:    kind,
		To:      to,
		Subject: subject,
		Text:    textBuf.String(),
		HTML:    htmlBuf.String(),
	}, nil
}

func greetingName(name, to string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if at := strings.IndexByte(to, '@'); at > 0 {
		return to[:at]
	}
	return to
}

// humanDuration prints whole hours or minutes, e.g. "30 minutes", "24 hours".
func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
