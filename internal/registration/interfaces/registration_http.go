package interfaces

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"confreg/internal/audit"
	"confreg/internal/auth"
	fees "confreg/internal/fees/domain"
	"confreg/internal/observability/metrics"
	"confreg/internal/platform/httpx"
	regapp "confreg/internal/registration/application"
	registration "confreg/internal/registration/domain"
)

const (
	maxUploadBytes  = 10 << 20
	maxRequestBytes = 2*maxUploadBytes + 1<<20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RegistrationHandler serves /register/*, /user/registrations and /admin/registrations.
type RegistrationHandler struct {
	service     *regapp.Service
	auditLogger audit.Logger
	logger      *zap.Logger
	now         func() time.Time
}

// NewRegistrationHandler constructs a handler.
func NewRegistrationHandler(service *regapp.Service, auditLogger audit.Logger, logger *zap.Logger) (*RegistrationHandler, error) {
	if service == nil {
		return nil, errors.New("registration handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationHandler{service: service, auditLogger: auditLogger, logger: logger, now: time.Now}, nil
}

// ServeHTTP routes registration requests.
func (h *RegistrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/register/complete" && r.Method == http.MethodPost:
		h.handleSubmit(w, r)
		return
	case path == "/register/quote" && r.Method == http.MethodPost:
		h.handleQuote(w, r)
		return
	case strings.HasPrefix(path, "/register/cancel/") && r.Method == http.MethodPost:
		h.handleCancel(w, r, strings.TrimPrefix(path, "/register/cancel/"))
		return
	case (path == "/user/registrations" || path == "/user/dashboard") && r.Method == http.MethodGet:
		h.handleListMine(w, r)
		return
	case (path == "/admin/registrations" || path == "/admin/dashboard") && r.Method == http.MethodGet:
		h.handleListAll(w, r)
		return
	case path == "/admin/registrations/export.xlsx" && r.Method == http.MethodGet:
		h.handleExportXLSX(w, r)
		return
	case strings.HasPrefix(path, "/register/"):
		h.handleByID(w, r, strings.TrimPrefix(path, "/register/"))
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *RegistrationHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if r.Method != http.MethodGet || rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		h.handleGet(w, r, id)
	case len(parts) == 2 && parts[1] == "receipt.pdf":
		h.handleReceipt(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *RegistrationHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	paymentProof, err := readUpload(r, "paymentProof")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	studentID, err := readUpload(r, "studentIdCard")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := regapp.SubmitRequest{
		Personal: registration.PersonalForm{
			Salutation:  r.FormValue("salutation"),
			FirstName:   r.FormValue("firstName"),
			LastName:    r.FormValue("lastName"),
			Email:       r.FormValue("email"),
			Gender:      r.FormValue("gender"),
			YearOfBirth: r.FormValue("yearOfBirth"),
			Affiliation: r.FormValue("primaryAffiliation"),
			Country:     r.FormValue("country"),
			IsStudent:   r.FormValue("isStudent"),
			Mobile:      r.FormValue("mobile"),
			WhatsApp:    r.FormValue("whatsapp"),
			IEEENumber:  r.FormValue("ieeeNumber"),
		},
		Classification: classificationFrom(r.FormValue),
		TransactionNo:  r.FormValue("transactionNo"),
		PaymentDate:    r.FormValue("dateOfPayment"),
		Comment:        r.FormValue("comment"),
		PaymentProof:   paymentProof,
		StudentIDCard:  studentID,
	}

	reg, err := h.service.Submit(r.Context(), id.UserID, req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, reg.ID, audit.ActionRegistrationSubmit, map[string]any{
		"summary":  reg.SummaryTag,
		"fee":      reg.FinalFee,
		"currency": reg.Currency,
	})
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"registration":         reg,
		"receipt_download_url": "/register/" + reg.ID + "/receipt.pdf",
	})
}

func (h *RegistrationHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	form, err := httpx.FormValues(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	quote, err := h.service.Quote(r.Context(), classificationFrom(form.Get))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	resp := map[string]any{
		"fee":          quote.FinalFee,
		"base_fee":     quote.BaseFee.String(),
		"currency":     quote.Currency,
		"display_text": quote.DisplayText,
		"summary":      quote.SummaryTag,
		"phase":        quote.Phase,
	}
	if quote.INREquivalent > 0 {
		resp["inr_equivalent"] = quote.INREquivalent
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *RegistrationHandler) handleCancel(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	actor, _ := auth.IdentityFromContext(r.Context())
	reg, err := h.service.Cancel(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, reg.ID, audit.ActionRegistrationCancel, map[string]any{"status": reg.Status})
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "status": reg.Status})
}

func (h *RegistrationHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	actor, _ := auth.IdentityFromContext(r.Context())
	reg, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reg)
}

func (h *RegistrationHandler) handleReceipt(w http.ResponseWriter, r *http.Request, id string) {
	actor, _ := auth.IdentityFromContext(r.Context())
	data, reg, err := h.service.Receipt(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", regapp.ReceiptFilename(reg)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *RegistrationHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.IdentityFromContext(r.Context())
	regs, err := h.service.ListForUser(r.Context(), actor.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"registrations": regs})
}

func (h *RegistrationHandler) handleListAll(w http.ResponseWriter, r *http.Request) {
	regs, err := h.service.ListAll(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"registrations": regs})
}

func (h *RegistrationHandler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport("xlsx", result, time.Since(start))
	}()

	regs, err := h.service.ListAll(r.Context())
	if err != nil {
		result = metrics.ResultError
		h.respondServiceError(w, err)
		return
	}
	data, err := BuildRegistrationsXLSX(regs, h.service.FXRate())
	if err != nil {
		result = metrics.ResultError
		h.logger.Error("export xlsx failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "export xlsx error")
		return
	}
	filename := "registrations_" + h.now().In(fees.IST).Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, "", audit.ActionRegistrationExport, map[string]any{"format": "xlsx", "rows": len(regs)})
}

func (h *RegistrationHandler) logAudit(r *http.Request, registrationID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	if err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "registration",
		ResourceID:   registrationID,
		Metadata:     audit.Metadata(meta),
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}); err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (h *RegistrationHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registration.ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, fees.ErrInvalidInput), errors.Is(err, fees.ErrFeeLookup):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, registration.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "Registration not found")
	case errors.Is(err, registration.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, registration.ErrAlreadyCancelled):
		httpx.WriteError(w, http.StatusConflict, "Registration already cancelled")
	default:
		h.logger.Error("registration request failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "Server error")
	}
}

func classificationFrom(get func(string) string) fees.FormValues {
	return fees.FormValues{
		IsAuthor:       get("isAuthor"),
		Nationality:    get("nationality"),
		Category:       get("category"),
		ConferenceType: get("conferenceType"),
		PaperID:        get("paperId"),
	}
}

func readUpload(r *http.Request, field string) (*regapp.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	defer file.Close()
	return uploadFrom(file, header)
}

func uploadFrom(file multipart.File, header *multipart.FileHeader) (*regapp.Upload, error) {
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("%s: file too large", header.Filename)
	}
	return &regapp.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
