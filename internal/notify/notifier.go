package notify

import (
	"context"
	"time"
)

// RegistrationNotice describes a newly created registration.
type RegistrationNotice struct {
	RegistrationID string    `json:"registration_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Affiliation    string    `json:"affiliation"`
	Country        string    `json:"country"`
	Summary        string    `json:"summary"`
	Fee            string    `json:"fee"`
	TransactionNo  string    `json:"transaction_no"`
	CreatedAt      time.Time `json:"created_at"`
	ReceiptURL     string    `json:"receipt_url,omitempty"`
}

// Notifier announces new registrations.
type Notifier interface {
	NotifyRegistration(ctx context.Context, notice RegistrationNotice) error
}

// MultiNotifier dispatches notices to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// NotifyRegistration forwards the notice to all notifiers and returns the first error.
func (m *MultiNotifier) NotifyRegistration(ctx context.Context, notice RegistrationNotice) error {
	if m == nil {
		return nil
	}
	var first error
	for _, notifier := range m.notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.NotifyRegistration(ctx, notice); err != nil && first == nil {
			first = err
		}
	}
	return first
}
