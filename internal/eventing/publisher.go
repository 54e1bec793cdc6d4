package eventing

import (
	"context"
	"errors"
)

// Publisher writes events to the outbox and nudges the dispatcher.
type Publisher struct {
	outbox     OutboxWriter
	dispatcher *Dispatcher
}

// NewPublisher constructs a publisher. dispatcher may be nil.
func NewPublisher(outbox OutboxWriter, dispatcher *Dispatcher) (*Publisher, error) {
	if outbox == nil {
		return nil, errors.New("publisher: nil outbox")
	}
	return &Publisher{outbox: outbox, dispatcher: dispatcher}, nil
}

// Publish stores payload as an eventType envelope.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) error {
	env, err := BuildEnvelope(eventType, payload, MetaFromContext(ctx))
	if err != nil {
		return err
	}
	if _, err := p.outbox.Insert(ctx, env); err != nil {
		return err
	}
	p.dispatcher.Wake()
	return nil
}
