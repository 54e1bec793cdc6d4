package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confreg/internal/eventing"
	fees "confreg/internal/fees/domain"
	registration "confreg/internal/registration/domain"
	"confreg/internal/registration/infrastructure/memory"
	"confreg/internal/storage"
)

func TestSubmit_PublishesThroughOutbox(t *testing.T) {
	ctx := context.Background()
	engine, err := fees.NewEngine(fees.DefaultRateTable(), fees.WithClock(fixedClock{beforeDeadline}))
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	registry := eventing.NewRegistry()
	require.NoError(t, registry.Subscribe(EventRegistrationSubmitted, "mail", NoticeHandler(notifier)))

	outbox := eventing.NewMemoryOutbox()
	dispatcher, err := eventing.NewDispatcher(outbox, registry, eventing.NewMemoryProcessedStore())
	require.NoError(t, err)
	publisher, err := eventing.NewPublisher(outbox, dispatcher)
	require.NoError(t, err)

	svc, err := NewService(memory.NewRepository(), engine, storage.NewMemoryStore(),
		func(*registration.Registration, time.Time) ([]byte, error) { return []byte("%PDF-r"), nil },
		WithPublisher(publisher),
		WithClock(func() time.Time { return beforeDeadline }),
		WithBaseURL("https://conf.example.com"),
	)
	require.NoError(t, err)

	reg, err := svc.Submit(ctx, "user-1", authorRequest())
	require.NoError(t, err)
	assert.Empty(t, notifier.notices, "delivery waits for the dispatcher")

	sent, err := dispatcher.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, notifier.notices, 1)
	assert.Equal(t, reg.ID, notifier.notices[0].RegistrationID)
	assert.Equal(t, "INR 14160 (incl. GST)", notifier.notices[0].Fee)
	assert.Equal(t, "https://conf.example.com/register/"+reg.ID+"/receipt.pdf", notifier.notices[0].ReceiptURL)
}

func TestNoticeHandler_PropagatesErrors(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	env, err := eventing.BuildEnvelope(EventRegistrationSubmitted, map[string]string{"registration_id": "reg-1"}, eventing.Meta{})
	require.NoError(t, err)

	err = NoticeHandler(notifier)(context.Background(), env)
	assert.EqualError(t, err, "smtp down")
	require.Len(t, notifier.notices, 1)
	assert.Equal(t, "reg-1", notifier.notices[0].RegistrationID)

	err = NoticeHandler(notifier)(context.Background(), eventing.Envelope{})
	assert.Error(t, err)
}
