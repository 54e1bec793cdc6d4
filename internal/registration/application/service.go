package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"confreg/internal/auth"
	fees "confreg/internal/fees/domain"
	"confreg/internal/notify"
	"confreg/internal/observability/metrics"
	registration "confreg/internal/registration/domain"
	"confreg/internal/storage"
)

const (
	paymentDateLayout = "2006-01-02"
	pdfContentType    = "application/pdf"

	prefixPayment = "payment_"
	prefixStudent = "student_"
	prefixReceipt = "receipt_"
)

var pdfMagic = []byte("%PDF-")

// ReceiptRenderer renders a receipt document for a persisted registration.
type ReceiptRenderer func(reg *registration.Registration, generatedAt time.Time) ([]byte, error)

// Upload is an uploaded document.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmitRequest is a registration form submission.
// Client-computed fee and summary values are never part of it.
type SubmitRequest struct {
	Personal       registration.PersonalForm
	Classification fees.FormValues
	TransactionNo  string
	PaymentDate    string
	Comment        string
	PaymentProof   *Upload
	StudentIDCard  *Upload
}

// Quote is a server-side fee preview.
type Quote struct {
	fees.FeeResult
	INREquivalent int64
}

// Service orchestrates registration submission and lifecycle.
type Service struct {
	repo      registration.Repository
	engine    *fees.Engine
	store     storage.Store
	render    ReceiptRenderer
	notifier  notify.Notifier
	publisher EventPublisher
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithNotifier sets the notifier for new registrations.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithPublisher routes new-registration notices through an event outbox
// instead of calling the notifier inline.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBaseURL sets the public base URL used in notification links.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// NewService constructs a Service.
func NewService(repo registration.Repository, engine *fees.Engine, store storage.Store, render ReceiptRenderer, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("registration service: nil repository")
	}
	if engine == nil {
		return nil, errors.New("registration service: nil fee engine")
	}
	if store == nil {
		return nil, errors.New("registration service: nil store")
	}
	if render == nil {
		return nil, errors.New("registration service: nil receipt renderer")
	}
	s := &Service{
		repo:   repo,
		engine: engine,
		store:  store,
		render: render,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit validates a submission, prices it, stores its documents and persists it.
func (s *Service) Submit(ctx context.Context, userID string, req SubmitRequest) (reg *registration.Registration, err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		switch {
		case err == nil:
		case errors.Is(err, registration.ErrInvalidInput), errors.Is(err, fees.ErrInvalidInput), errors.Is(err, fees.ErrFeeLookup):
			result = metrics.ResultRejected
		default:
			result = metrics.ResultError
		}
		metrics.ObserveSubmit(result, time.Since(start))
	}()

	if userID == "" {
		return nil, registration.ErrForbidden
	}
	now := s.now()

	personal, err := registration.ParsePersonal(req.Personal, now)
	if err != nil {
		return nil, err
	}
	in, err := fees.ParseInput(req.Classification, now)
	if err != nil {
		return nil, err
	}
	transactionNo := strings.TrimSpace(req.TransactionNo)
	if transactionNo == "" {
		return nil, registration.MissingField("transactionNo")
	}
	paymentDate, err := parsePaymentDate(req.PaymentDate)
	if err != nil {
		return nil, err
	}
	if req.PaymentProof == nil || len(req.PaymentProof.Data) == 0 {
		return nil, registration.MissingField("paymentProof")
	}
	if !isPDF(req.PaymentProof) {
		return nil, registration.NotPDF("paymentProof")
	}
	if personal.IsStudent && req.StudentIDCard != nil && len(req.StudentIDCard.Data) > 0 && !isPDF(req.StudentIDCard) {
		return nil, registration.NotPDF("studentIdCard")
	}

	quote, err := s.engine.Quote(in)
	if err != nil {
		s.recordFeeError(err)
		return nil, err
	}

	reg = &registration.Registration{
		ID:              uuid.NewString(),
		UserID:          userID,
		PersonalDetails: personal,
		TransactionNo:   transactionNo,
		PaymentDate:     paymentDate,
		Comment:         strings.TrimSpace(req.Comment),
		Status:          registration.StatusActive,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	reg.ApplyFee(in.Normalize(), quote)
	metrics.IncQuote(string(quote.Phase), string(quote.Currency))

	// Objects written before a failed Create have no record pointing at them.
	var stored []string
	defer func() {
		if err != nil {
			s.discard(ctx, stored)
		}
	}()

	reg.PaymentProof, err = s.store.Store(ctx, s.documentKey(prefixPayment, reg), req.PaymentProof.Data, pdfContentType)
	if err != nil {
		return nil, fmt.Errorf("registration service: store payment proof: %w", err)
	}
	stored = append(stored, reg.PaymentProof)
	if personal.IsStudent && req.StudentIDCard != nil && len(req.StudentIDCard.Data) > 0 {
		reg.StudentIDCard, err = s.store.Store(ctx, s.documentKey(prefixStudent, reg), req.StudentIDCard.Data, pdfContentType)
		if err != nil {
			return nil, fmt.Errorf("registration service: store student id: %w", err)
		}
		stored = append(stored, reg.StudentIDCard)
	}

	receipt, err := s.renderReceipt(reg, now)
	if err != nil {
		return nil, err
	}
	reg.ReceiptLocator, err = s.store.Store(ctx, s.documentKey(prefixReceipt, reg), receipt, pdfContentType)
	if err != nil {
		return nil, fmt.Errorf("registration service: store receipt: %w", err)
	}
	stored = append(stored, reg.ReceiptLocator)

	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, err
	}
	s.logger.Info("registration submitted",
		zap.String("registration_id", reg.ID),
		zap.String("user_id", userID),
		zap.String("summary", reg.SummaryTag),
		zap.Int64("fee", reg.FinalFee),
		zap.String("currency", string(reg.Currency)),
	)
	s.publish(ctx, reg)
	return reg, nil
}

// Quote previews the fee and summary tag for raw classification values.
func (s *Service) Quote(_ context.Context, v fees.FormValues) (Quote, error) {
	in, err := fees.ParseInput(v, s.now())
	if err != nil {
		return Quote{}, err
	}
	result, err := s.engine.Quote(in)
	if err != nil {
		s.recordFeeError(err)
		return Quote{}, err
	}
	q := Quote{FeeResult: result}
	if result.Currency == fees.CurrencyUSD {
		q.INREquivalent = s.engine.INREquivalent(result.FinalFee)
	}
	return q, nil
}

// Cancel cancels an active registration owned by actor, or any registration for admins.
func (s *Service) Cancel(ctx context.Context, actor auth.Identity, id string) (*registration.Registration, error) {
	reg, err := s.Get(ctx, actor, id)
	if err != nil {
		metrics.IncCancel(metrics.ResultRejected)
		return nil, err
	}
	at := s.now().UTC()
	if err := reg.Cancel(at); err != nil {
		metrics.IncCancel(metrics.ResultRejected)
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, registration.StatusActive, registration.StatusCancelled, at); err != nil {
		metrics.IncCancel(metrics.ResultRejected)
		return nil, err
	}
	metrics.IncCancel(metrics.ResultSuccess)
	s.logger.Info("registration cancelled", zap.String("registration_id", id), zap.String("actor", actor.UserID))
	return reg, nil
}

// ListForUser returns the registrations submitted by userID.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]registration.Registration, error) {
	if userID == "" {
		return nil, registration.ErrForbidden
	}
	return s.repo.ListByUser(ctx, userID)
}

// ListAll returns every registration.
func (s *Service) ListAll(ctx context.Context) ([]registration.Registration, error) {
	return s.repo.ListAll(ctx)
}

// Get returns a registration visible to actor.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id string) (*registration.Registration, error) {
	if strings.TrimSpace(id) == "" {
		return nil, registration.ErrNotFound
	}
	reg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !reg.OwnedBy(actor.UserID) && !actor.IsAdmin() {
		return nil, registration.ErrForbidden
	}
	return reg, nil
}

// Receipt returns the stored receipt PDF, re-rendering it from persisted data when missing.
func (s *Service) Receipt(ctx context.Context, actor auth.Identity, id string) ([]byte, *registration.Registration, error) {
	reg, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if reg.ReceiptLocator != "" {
		data, err := s.store.Load(ctx, reg.ReceiptLocator)
		if err == nil {
			return data, reg, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, nil, err
		}
		s.logger.Warn("stored receipt missing, re-rendering", zap.String("registration_id", id))
	}
	data, err := s.renderReceipt(reg, s.now())
	if err != nil {
		return nil, nil, err
	}
	return data, reg, nil
}

// FXRate returns the engine's USD to INR rate.
func (s *Service) FXRate() decimal.Decimal {
	return s.engine.Table().FXRate()
}

// INREquivalent converts a USD amount with the engine's rate.
func (s *Service) INREquivalent(usd int64) int64 {
	return s.engine.INREquivalent(usd)
}

// ReceiptFilename returns the download name for reg's receipt.
func ReceiptFilename(reg *registration.Registration) string {
	return storage.DocumentKey(prefixReceipt, reg.PaperID, reg.FirstName, reg.LastName, reg.TransactionNo)
}

func (s *Service) documentKey(prefix string, reg *registration.Registration) string {
	return storage.OwnedDocumentKey(prefix, reg.PaperID, reg.FirstName, reg.LastName, reg.TransactionNo, reg.ID)
}

func (s *Service) discard(ctx context.Context, locators []string) {
	ctx = context.WithoutCancel(ctx)
	for _, locator := range locators {
		if err := s.store.Delete(ctx, locator); err != nil {
			s.logger.Warn("discard stored document", zap.String("locator", locator), zap.Error(err))
		}
	}
}

func (s *Service) renderReceipt(reg *registration.Registration, at time.Time) ([]byte, error) {
	start := time.Now()
	data, err := s.render(reg, at)
	if err != nil {
		metrics.ObserveReceiptRender(metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("registration service: render receipt: %w", err)
	}
	metrics.ObserveReceiptRender(metrics.ResultSuccess, time.Since(start))
	return data, nil
}

func (s *Service) recordFeeError(err error) {
	var lookup *fees.LookupError
	if errors.As(err, &lookup) {
		kind := "non_author"
		if lookup.Author {
			kind = "author"
		}
		metrics.IncFeeLookupError(kind)
		s.logger.Warn("fee lookup failed", zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, reg *registration.Registration) {
	if s.notifier == nil && s.publisher == nil {
		return
	}
	notice := notify.RegistrationNotice{
		RegistrationID: reg.ID,
		Name:           reg.FullName(),
		Email:          reg.Email,
		Affiliation:    reg.Affiliation,
		Country:        reg.Country,
		Summary:        reg.SummaryTag,
		Fee:            reg.FeeDisplayText,
		TransactionNo:  reg.TransactionNo,
		CreatedAt:      reg.CreatedAt,
	}
	if s.baseURL != "" {
		notice.ReceiptURL = s.baseURL + "/register/" + reg.ID + "/receipt.pdf"
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, EventRegistrationSubmitted, notice); err != nil {
			s.logger.Warn("registration event publish failed", zap.String("registration_id", reg.ID), zap.Error(err))
		}
		return
	}
	if err := s.notifier.NotifyRegistration(ctx, notice); err != nil {
		s.logger.Warn("registration notification failed", zap.String("registration_id", reg.ID), zap.Error(err))
	}
}

func parsePaymentDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, registration.MissingField("dateOfPayment")
	}
	t, err := time.ParseInLocation(paymentDateLayout, value, fees.IST)
	if err != nil {
		return time.Time{}, registration.InvalidField("dateOfPayment")
	}
	return t, nil
}

func isPDF(u *Upload) bool {
	if u == nil {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(u.ContentType))
	if ct != "" && ct != pdfContentType {
		return false
	}
	return bytes.HasPrefix(u.Data, pdfMagic)
}
