package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confreg/internal/auth"
	fees "confreg/internal/fees/domain"
	"confreg/internal/notify"
	registration "confreg/internal/registration/domain"
	"confreg/internal/registration/infrastructure/memory"
	"confreg/internal/storage"
)

var (
	beforeDeadline = time.Date(2025, 10, 1, 10, 0, 0, 0, fees.IST)
	afterDeadline  = time.Date(2025, 11, 2, 10, 0, 0, 0, fees.IST)
	pdfBytes       = []byte("%PDF-1.4\n%fake\n")
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.RegistrationNotice
	err     error
}

func (n *recordingNotifier) NotifyRegistration(_ context.Context, notice notify.RegistrationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

type fixture struct {
	svc      *Service
	repo     *memory.Repository
	store    *storage.MemoryStore
	notifier *recordingNotifier
	renders  *int
}

func newFixture(t *testing.T, at time.Time) fixture {
	t.Helper()
	engine, err := fees.NewEngine(fees.DefaultRateTable(), fees.WithClock(fixedClock{at}))
	require.NoError(t, err)
	renders := 0
	render := func(reg *registration.Registration, _ time.Time) ([]byte, error) {
		renders++
		return append([]byte("%PDF-receipt-"), reg.ID...), nil
	}
	f := fixture{
		repo:     memory.NewRepository(),
		store:    storage.NewMemoryStore(),
		notifier: &recordingNotifier{},
		renders:  &renders,
	}
	f.svc, err = NewService(f.repo, engine, f.store, render,
		WithNotifier(f.notifier),
		WithClock(func() time.Time { return at }),
		WithBaseURL("https://conf.example.com/"),
	)
	require.NoError(t, err)
	return f
}

func authorRequest() SubmitRequest {
	return SubmitRequest{
		Personal: registration.PersonalForm{
			Salutation:  "Dr.",
			FirstName:   "Asha",
			LastName:    "Rao",
			Email:       "asha@example.com",
			Gender:      "Female",
			YearOfBirth: "1988",
			Affiliation: "IIT Patna",
			Country:     "India",
			IsStudent:   "no",
			Mobile:      "9000000000",
		},
		Classification: fees.FormValues{
			IsAuthor:       "yes",
			Nationality:    "national",
			Category:       "IEEE Member",
			ConferenceType: "tutorial",
			PaperID:        "42",
		},
		TransactionNo: "TX-991",
		PaymentDate:   "2025-09-30",
		PaymentProof:  &Upload{Filename: "proof.pdf", ContentType: "application/pdf", Data: pdfBytes},
	}
}

func nonAuthorRequest() SubmitRequest {
	req := authorRequest()
	req.Personal.FirstName = "John"
	req.Personal.LastName = "Smith"
	req.Classification = fees.FormValues{
		IsAuthor:       "no",
		Nationality:    "international",
		Category:       "Non-member",
		ConferenceType: "full",
		PaperID:        "77",
	}
	return req
}

func TestSubmit_AuthorComputesFeeServerSide(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	reg, err := f.svc.Submit(context.Background(), "user-1", authorRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(14160), reg.FinalFee)
	assert.Equal(t, fees.CurrencyINR, reg.Currency)
	assert.Equal(t, "INR 14160 (incl. GST)", reg.FeeDisplayText)
	assert.Equal(t, fees.ConferenceFull, reg.ConferenceType, "authors always attend the full conference")
	assert.Equal(t, "paper_42-Author-national-IEEE_Member-Full_conference", reg.SummaryTag)
	assert.Equal(t, registration.StatusActive, reg.Status)
	assert.Equal(t, "user-1", reg.UserID)

	assert.Equal(t, "mem://payment_42_Asha_Rao_TX991_"+storage.CleanPart(reg.ID)+".pdf", reg.PaymentProof)
	assert.Equal(t, "mem://receipt_42_Asha_Rao_TX991_"+storage.CleanPart(reg.ID)+".pdf", reg.ReceiptLocator)
	assert.Empty(t, reg.StudentIDCard)
	assert.Equal(t, 2, f.store.Len())

	stored, err := f.repo.Get(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.SummaryTag, stored.SummaryTag)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "Dr. Asha Rao", f.notifier.notices[0].Name)
	assert.Equal(t, "https://conf.example.com/register/"+reg.ID+"/receipt.pdf", f.notifier.notices[0].ReceiptURL)
}

func TestSubmit_NonAuthorInternational(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	reg, err := f.svc.Submit(context.Background(), "user-1", nonAuthorRequest())
	require.NoError(t, err)

	assert.Equal(t, "0", reg.PaperID, "non-authors never carry a paper id")
	assert.Equal(t, int64(354), reg.FinalFee)
	assert.Equal(t, fees.CurrencyUSD, reg.Currency)
	assert.Equal(t, "USD 354 (incl. GST) ≈ INR 31506", reg.FeeDisplayText)
	assert.Equal(t, "paper_0-Non_author-international-Non-member-Full_conference", reg.SummaryTag)
	assert.Equal(t, "mem://payment_0_John_Smith_TX991_"+storage.CleanPart(reg.ID)+".pdf", reg.PaymentProof)
}

func TestSubmit_PhaseFollowsEngineClock(t *testing.T) {
	f := newFixture(t, afterDeadline)
	reg, err := f.svc.Submit(context.Background(), "user-1", nonAuthorRequest())
	require.NoError(t, err)
	assert.Equal(t, fees.PhaseRegular, reg.Phase)
	assert.Equal(t, int64(413), reg.FinalFee)
}

func TestSubmit_StudentCardOnlyKeptForStudents(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	req := authorRequest()
	req.StudentIDCard = &Upload{ContentType: "application/pdf", Data: pdfBytes}

	reg, err := f.svc.Submit(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Empty(t, reg.StudentIDCard)

	req.Personal.IsStudent = "yes"
	req.TransactionNo = "TX-992"
	reg, err = f.svc.Submit(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.Equal(t, "mem://student_42_Asha_Rao_TX992_"+storage.CleanPart(reg.ID)+".pdf", reg.StudentIDCard)
}

func TestSubmit_SameIdentityKeepsSeparateDocuments(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	ctx := context.Background()
	owner := auth.Identity{UserID: "user-1", Role: auth.RoleUser}

	first, err := f.svc.Submit(ctx, "user-1", nonAuthorRequest())
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, owner, first.ID)
	require.NoError(t, err)

	req := nonAuthorRequest()
	req.Classification.ConferenceType = "tutorial"
	req.PaymentProof = &Upload{ContentType: "application/pdf", Data: []byte("%PDF-second-proof")}
	second, err := f.svc.Submit(ctx, "user-1", req)
	require.NoError(t, err)

	assert.NotEqual(t, first.PaymentProof, second.PaymentProof)
	assert.NotEqual(t, first.ReceiptLocator, second.ReceiptLocator)
	assert.Equal(t, ReceiptFilename(first), ReceiptFilename(second), "download names stay human-readable")

	data, _, err := f.svc.Receipt(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-receipt-"+first.ID, string(data))
	data, _, err = f.svc.Receipt(ctx, owner, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-receipt-"+second.ID, string(data))

	proof, err := f.store.Load(ctx, first.PaymentProof)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, proof)
	assert.Equal(t, 4, f.store.Len())
}

type failingCreateRepo struct {
	*memory.Repository
}

func (failingCreateRepo) Create(context.Context, *registration.Registration) error {
	return errors.New("insert failed")
}

func TestSubmit_CreateFailureDiscardsDocuments(t *testing.T) {
	engine, err := fees.NewEngine(fees.DefaultRateTable(), fees.WithClock(fixedClock{beforeDeadline}))
	require.NoError(t, err)
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	svc, err := NewService(failingCreateRepo{memory.NewRepository()}, engine, store,
		func(reg *registration.Registration, _ time.Time) ([]byte, error) { return []byte("%PDF-r"), nil },
		WithNotifier(notifier),
		WithClock(func() time.Time { return beforeDeadline }),
	)
	require.NoError(t, err)

	req := authorRequest()
	req.Personal.IsStudent = "yes"
	req.StudentIDCard = &Upload{ContentType: "application/pdf", Data: pdfBytes}
	_, err = svc.Submit(context.Background(), "user-1", req)
	require.EqualError(t, err, "insert failed")
	assert.Zero(t, store.Len(), "proof, student card and receipt are removed")
	assert.Empty(t, notifier.notices)
}

func TestSubmit_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SubmitRequest)
		want   error
	}{
		{"missing payment date", func(r *SubmitRequest) { r.PaymentDate = "" }, registration.ErrInvalidInput},
		{"bad payment date", func(r *SubmitRequest) { r.PaymentDate = "30/09/2025" }, registration.ErrInvalidInput},
		{"missing transaction", func(r *SubmitRequest) { r.TransactionNo = " " }, registration.ErrInvalidInput},
		{"missing proof", func(r *SubmitRequest) { r.PaymentProof = nil }, registration.ErrInvalidInput},
		{"proof not pdf", func(r *SubmitRequest) {
			r.PaymentProof = &Upload{ContentType: "image/png", Data: []byte("\x89PNG")}
		}, registration.ErrInvalidInput},
		{"proof with pdf type but other bytes", func(r *SubmitRequest) {
			r.PaymentProof = &Upload{ContentType: "application/pdf", Data: []byte("hello")}
		}, registration.ErrInvalidInput},
		{"student card not pdf", func(r *SubmitRequest) {
			r.Personal.IsStudent = "yes"
			r.StudentIDCard = &Upload{ContentType: "image/jpeg", Data: []byte("jpeg")}
		}, registration.ErrInvalidInput},
		{"bad salutation", func(r *SubmitRequest) { r.Personal.Salutation = "Sir" }, registration.ErrInvalidInput},
		{"author without paper", func(r *SubmitRequest) { r.Classification.PaperID = "" }, fees.ErrInvalidInput},
		{"bad category", func(r *SubmitRequest) { r.Classification.Category = "Gold" }, fees.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, beforeDeadline)
			req := authorRequest()
			tc.mutate(&req)
			_, err := f.svc.Submit(context.Background(), "user-1", req)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, 0, f.store.Len(), "nothing stored for rejected submissions")
			regs, _ := f.repo.ListAll(context.Background())
			assert.Empty(t, regs)
		})
	}
}

func TestSubmit_RequiresUser(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	_, err := f.svc.Submit(context.Background(), "", authorRequest())
	assert.ErrorIs(t, err, registration.ErrForbidden)
}

func TestSubmit_NotifierFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	f.notifier.err = errors.New("webhook down")
	_, err := f.svc.Submit(context.Background(), "user-1", authorRequest())
	require.NoError(t, err)
}

func TestSubmit_FeeLookupFailure(t *testing.T) {
	spec := fees.DefaultRateTableSpec()
	delete(spec.Author[fees.NationalityNational], fees.CategoryIEEEMember)
	table, err := fees.NewRateTable(spec)
	require.NoError(t, err)
	engine, err := fees.NewEngine(table, fees.WithClock(fixedClock{beforeDeadline}))
	require.NoError(t, err)
	svc, err := NewService(memory.NewRepository(), engine, storage.NewMemoryStore(),
		func(*registration.Registration, time.Time) ([]byte, error) { return pdfBytes, nil })
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), "user-1", authorRequest())
	assert.ErrorIs(t, err, fees.ErrFeeLookup)
}

func TestQuote(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	q, err := f.svc.Quote(context.Background(), nonAuthorRequest().Classification)
	require.NoError(t, err)
	assert.Equal(t, int64(354), q.FinalFee)
	assert.Equal(t, int64(31506), q.INREquivalent)
	assert.Equal(t, "paper_0-Non_author-international-Non-member-Full_conference", q.SummaryTag)

	q, err = f.svc.Quote(context.Background(), authorRequest().Classification)
	require.NoError(t, err)
	assert.Zero(t, q.INREquivalent)

	_, err = f.svc.Quote(context.Background(), fees.FormValues{IsAuthor: "maybe"})
	assert.ErrorIs(t, err, fees.ErrInvalidInput)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	ctx := context.Background()
	reg, err := f.svc.Submit(ctx, "user-1", authorRequest())
	require.NoError(t, err)

	owner := auth.Identity{UserID: "user-1", Role: auth.RoleUser}
	stranger := auth.Identity{UserID: "user-2", Role: auth.RoleUser}

	_, err = f.svc.Cancel(ctx, stranger, reg.ID)
	assert.ErrorIs(t, err, registration.ErrForbidden)

	cancelled, err := f.svc.Cancel(ctx, owner, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, owner, reg.ID)
	assert.ErrorIs(t, err, registration.ErrAlreadyCancelled)

	_, err = f.svc.Cancel(ctx, owner, "missing")
	assert.ErrorIs(t, err, registration.ErrNotFound)
}

func TestCancel_AdminMayCancelAny(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	ctx := context.Background()
	reg, err := f.svc.Submit(ctx, "user-1", authorRequest())
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}, reg.ID)
	require.NoError(t, err)
	stored, err := f.repo.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, registration.StatusCancelled, stored.Status)
}

func TestListForUserAndAll(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, "user-1", authorRequest())
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "user-2", nonAuthorRequest())
	require.NoError(t, err)

	mine, err := f.svc.ListForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "user-1", mine[0].UserID)

	all, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.ListForUser(ctx, "")
	assert.ErrorIs(t, err, registration.ErrForbidden)
}

func TestReceipt_LoadsStoredOrReRenders(t *testing.T) {
	f := newFixture(t, beforeDeadline)
	ctx := context.Background()
	reg, err := f.svc.Submit(ctx, "user-1", authorRequest())
	require.NoError(t, err)
	owner := auth.Identity{UserID: "user-1", Role: auth.RoleUser}
	rendersAfterSubmit := *f.renders

	data, got, err := f.svc.Receipt(ctx, owner, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)
	assert.Equal(t, "%PDF-receipt-"+reg.ID, string(data))
	assert.Equal(t, rendersAfterSubmit, *f.renders)

	_, _, err = f.svc.Receipt(ctx, auth.Identity{UserID: "user-2", Role: auth.RoleUser}, reg.ID)
	assert.ErrorIs(t, err, registration.ErrForbidden)

	orphan := *reg
	orphan.ID = "orphan"
	orphan.ReceiptLocator = "mem://gone.pdf"
	require.NoError(t, f.repo.Create(ctx, &orphan))
	data, _, err = f.svc.Receipt(ctx, owner, "orphan")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-receipt-orphan", string(data))
	assert.Equal(t, rendersAfterSubmit+1, *f.renders)
}

func TestReceiptFilename(t *testing.T) {
	reg := &registration.Registration{
		PersonalDetails: registration.PersonalDetails{FirstName: "Asha", LastName: "Rao"},
		PaperID:         "42",
		TransactionNo:   "TX-991",
	}
	assert.Equal(t, "receipt_42_Asha_Rao_TX991.pdf", ReceiptFilename(reg))
}

func TestNewService_RejectsNilDeps(t *testing.T) {
	engine, err := fees.NewEngine(fees.DefaultRateTable())
	require.NoError(t, err)
	render := func(*registration.Registration, time.Time) ([]byte, error) { return nil, nil }

	_, err = NewService(nil, engine, storage.NewMemoryStore(), render)
	assert.Error(t, err)
	_, err = NewService(memory.NewRepository(), nil, storage.NewMemoryStore(), render)
	assert.Error(t, err)
	_, err = NewService(memory.NewRepository(), engine, nil, render)
	assert.Error(t, err)
	_, err = NewService(memory.NewRepository(), engine, storage.NewMemoryStore(), nil)
	assert.Error(t, err)
}
