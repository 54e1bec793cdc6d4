package notify

import (
	"context"
	"errors"
)

// MailNotifier emails a confirmation to the registrant.
type MailNotifier struct {
	mailer Mailer
}

// NewMailNotifier constructs a MailNotifier.
func NewMailNotifier(mailer Mailer) (*MailNotifier, error) {
	if mailer == nil {
		return nil, errors.New("mail notifier: nil mailer")
	}
	return &MailNotifier{mailer: mailer}, nil
}

// NotifyRegistration sends the confirmation email.
func (n *MailNotifier) NotifyRegistration(ctx context.Context, notice RegistrationNotice) error {
	msg, err := ConfirmationMessage(notice)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, msg)
}
