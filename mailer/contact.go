package mailer

import "strings"

// Address is the postal address portion of a Contact.
type Address struct {
	Street  string // street name and house number
	ZipCode string
	City    string
}

// Contact holds the sender identity collected from a contact form. It's a
// plain value holder with no identity beyond field equality: build one
// per submission and discard it once the send call returns.
type Contact struct {
	Salutation string
	FirstName  string
	LastName   string
	Address    Address
	Email      string
	Phone      string
	Member     bool
}

// BodyText renders the field-label lines the gateway's recipients expect:
// one "Label: value" line per field, in a fixed order, joined by single
// newlines. Labels with empty values are kept rather than omitted, so the
// output always contains all ten lines. objectID names the real-estate
// object the form was submitted for; message is the free-text remark.
func (c Contact) BodyText(objectID, message string) string {
	member := "Nein"
	if c.Member {
		member = "Ja"
	}

	lines := []string{
		"Objekt: " + objectID,
		"Anrede: " + c.Salutation,
		"Vorname: " + c.FirstName,
		"Nachname: " + c.LastName,
		"Strasse: " + c.Address.Street,
		"PLZ: " + c.Address.ZipCode,
		"Ort: " + c.Address.City,
		"E-Mail: " + c.Email,
		"Mitglied: " + member,
		"Bemerkung: " + message,
	}
	return strings.Join(lines, "\n")
}
