package models

import "fmt"

// SenderIdentity is who an outreach email appears to come from
type SenderIdentity struct {
	FromName  string
	FromEmail string
	ReplyTo   string
	Signature string
}

// From formats the identity as an RFC 5322 address.
func (s SenderIdentity) From() string {
	if s.FromName == "" {
		return s.FromEmail
	}
	return fmt.Sprintf("%s <%s>", s.FromName, s.FromEmail)
}

// SenderIdentity resolves the profile's sender settings, filling unset
// fields from fallback.
func (p *Profile) SenderIdentity(fallback SenderIdentity) SenderIdentity {
	id := fallback
	if p != nil {
		if p.SenderName != "" {
			id.FromName = p.SenderName
		}
		if p.SenderEmail != "" {
			id.FromEmail = p.SenderEmail
		}
		if p.ReplyTo != "" {
			id.ReplyTo = p.ReplyTo
		}
		if p.EmailSignature != "" {
			id.Signature = p.EmailSignature
		}
	}
	if id.ReplyTo == "" {
		id.ReplyTo = id.FromEmail
	}
	return id
}
