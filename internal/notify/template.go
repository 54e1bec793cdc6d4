package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const registrationTemplate = `[New Registration]
Name: {{.Name}}
Email: {{.Email}}
{{- if .Affiliation }}
Affiliation: {{.Affiliation}}
{{- end }}
{{- if .Country }}
Country: {{.Country}}
{{- end }}
Summary: {{.Summary}}
Fee: {{.Fee}}
Transaction: {{.TransactionNo}}
Registered: {{.CreatedAt.Format "2006-01-02 15:04 MST"}}
{{- if .ReceiptURL }}
Receipt: {{.ReceiptURL}}
{{- end }}`

const resetTemplate = `You requested a password reset.

Click the link below to reset your password:

{{.Link}}

If you did not request this, ignore this email.`

const confirmationTemplate = `Dear {{.Name}},

Your conference registration has been received.

Registration: {{.RegistrationID}}
Summary: {{.Summary}}
Fee: {{.Fee}}
Transaction: {{.TransactionNo}}
{{- if .ReceiptURL }}

Download your receipt: {{.ReceiptURL}}
{{- end }}`

var (
	registrationTpl = template.Must(template.New("registration").Parse(registrationTemplate))
	resetTpl        = template.Must(template.New("reset").Parse(resetTemplate))
	confirmationTpl = template.Must(template.New("confirmation").Parse(confirmationTemplate))
)

// FormatRegistration renders the organizer-facing text for a notice.
func FormatRegistration(notice RegistrationNotice) (string, error) {
	var buf bytes.Buffer
	if err := registrationTpl.Execute(&buf, notice); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PasswordResetMessage builds the reset email for to with link.
func PasswordResetMessage(to, link string) (Message, error) {
	if link == "" {
		return Message{}, errors.New("notify: empty reset link")
	}
	var buf bytes.Buffer
	if err := resetTpl.Execute(&buf, struct{ Link string }{Link: link}); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Conference App Password Reset", Body: buf.String()}, nil
}

// ConfirmationMessage builds the registrant-facing confirmation email for notice.
func ConfirmationMessage(notice RegistrationNotice) (Message, error) {
	if notice.Email == "" {
		return Message{}, errors.New("notify: empty recipient")
	}
	var buf bytes.Buffer
	if err := confirmationTpl.Execute(&buf, notice); err != nil {
		return Message{}, err
	}
	return Message{To: notice.Email, Subject: "Conference Registration Confirmation", Body: buf.String()}, nil
}
