package mailer

import "errors"

// Content types the gateway understands.
const (
	ContentTypePlain = "text/plain"
	ContentTypeHTML  = "text/html"
)

// Email is one message to submit: subject, body text, and recipient
// routing. The recipient order is preserved on the wire. ReplyTo is
// optional; an empty ContentType means text/plain.
type Email struct {
	Subject     string
	Text        string
	Recipients  []string
	ContentType string
	ReplyTo     string
}

// NewContactEmail builds a plain-text Email whose body is the fixed
// field-label rendering of a form submission. See Contact.BodyText for
// the body format.
func NewContactEmail(subject string, c Contact, objectID, message string, recipients ...string) Email {
	return Email{
		Subject:     subject,
		Text:        c.BodyText(objectID, message),
		Recipients:  recipients,
		ContentType: ContentTypePlain,
	}
}

// Check reports whether the email can be submitted at all. The gateway
// rejects empty messages anyway; failing here avoids a pointless network
// call. The subject may be empty, and recipient address syntax is left to
// the gateway to judge.
func (e Email) Check() error {
	if e.Text == "" {
		return errors.New("email has no message body")
	}
	return nil
}

// HTML reports whether the email body should be rendered as HTML.
func (e Email) HTML() bool {
	return e.ContentType == ContentTypeHTML
}
