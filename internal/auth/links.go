// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"net/url"
	"strings"

	"github.com/talentdesk/backoffice/internal/mail"
)

// Mailer queues a rendered message. Delivery is best effort and never
// reported back to the caller.
type Mailer interface {
	Dispatch(msg mail.Message)
}

// Links builds the portal URLs that end up in emails and redirects.
type Links struct {
	StaffBaseURL     string
	CandidateBaseURL string
}

func (l Links) base(p Portal) string {
	if p == PortalCandidate {
		return strings.TrimRight(l.CandidateBaseURL, "/")
	}
	return strings.TrimRight(l.StaffBaseURL, "/")
}

// ResetURL is the page where a reset link is redeemed.
func (l Links) ResetURL(p Portal, key, token string) string {
	return l.base(p) + "/password/reset/" + url.PathEscape(key) + "/" + url.PathEscape(token)
}

// ActivationURL is the candidate page that activates a registration.
func (l Links) ActivationURL(key, token string) string {
	return l.base(PortalCandidate) + "/activation/" + url.PathEscape(key) + "/" + url.PathEscape(token)
}

// LoginURL is the portal's sign-in page.
func (l Links) LoginURL(p Portal) string {
	return l.base(p) + "/login"
}
