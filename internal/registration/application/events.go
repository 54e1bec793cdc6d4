package application

import (
	"context"

	"confreg/internal/eventing"
	"confreg/internal/notify"
)

// EventRegistrationSubmitted is published once per persisted registration.
const EventRegistrationSubmitted = "registration.submitted"

// EventPublisher stores events for asynchronous delivery.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// NoticeHandler adapts a notifier into an outbox consumer for EventRegistrationSubmitted.
func NoticeHandler(n notify.Notifier) eventing.Handler {
	return func(ctx context.Context, env eventing.Envelope) error {
		var notice notify.RegistrationNotice
		if err := env.Decode(&notice); err != nil {
			return err
		}
		return n.NotifyRegistration(ctx, notice)
	}
}
