package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confreg/internal/audit"
	"confreg/internal/auth"
	fees "confreg/internal/fees/domain"
	regapp "confreg/internal/registration/application"
	"confreg/internal/registration/infrastructure/memory"
	"confreg/internal/storage"
)

var (
	testNow  = time.Date(2025, 10, 1, 10, 0, 0, 0, fees.IST)
	owner    = auth.Identity{UserID: "user-1", Name: "Asha", Email: "asha@example.com", Role: auth.RoleUser}
	stranger = auth.Identity{UserID: "user-2", Role: auth.RoleUser}
	admin    = auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestHandler(t *testing.T) (*RegistrationHandler, *audit.MemoryLog) {
	t.Helper()
	engine, err := fees.NewEngine(fees.DefaultRateTable(), fees.WithClock(fixedClock{testNow}))
	require.NoError(t, err)
	svc, err := regapp.NewService(memory.NewRepository(), engine, storage.NewMemoryStore(), BuildReceiptPDF,
		regapp.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	log := audit.NewMemoryLog()
	h, err := NewRegistrationHandler(svc, log, nil)
	require.NoError(t, err)
	h.now = func() time.Time { return testNow }
	return h, log
}

func submissionFields() map[string]string {
	return map[string]string{
		"salutation":         "Dr.",
		"firstName":          "Asha",
		"lastName":           "Rao",
		"email":              "asha@example.com",
		"gender":             "Female",
		"yearOfBirth":        "1988",
		"primaryAffiliation": "IIT Patna",
		"country":            "India",
		"isStudent":          "no",
		"mobile":             "9000000000",
		"isAuthor":           "no",
		"nationality":        "international",
		"category":           "Non-member",
		"conferenceType":     "full",
		"transactionNo":      "TX-991",
		"dateOfPayment":      "2025-09-30",
		"fee":                "1",
		"summary":            "paper_0-free",
	}
}

func multipartRequest(t *testing.T, path string, fields map[string]string, proofType string, proof []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if proof != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="paymentProof"; filename="proof.pdf"`)
		header.Set("Content-Type", proofType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(proof)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func as(req *http.Request, id auth.Identity) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), id))
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func submit(t *testing.T, h http.Handler) string {
	t.Helper()
	req := as(multipartRequest(t, "/register/complete", submissionFields(), "application/pdf", []byte("%PDF-1.4 proof")), owner)
	rec := serve(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Registration struct {
			ID             string `json:"id"`
			Fee            int64  `json:"fee"`
			Currency       string `json:"currency"`
			FeeDisplayText string `json:"fee_display_text"`
			Summary        string `json:"summary"`
			PaperID        string `json:"paper_id"`
		} `json:"registration"`
		ReceiptURL string `json:"receipt_download_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(354), resp.Registration.Fee)
	assert.Equal(t, "USD", resp.Registration.Currency)
	assert.Equal(t, "USD 354 (incl. GST) ≈ INR 31506", resp.Registration.FeeDisplayText)
	assert.Equal(t, "paper_0-Non_author-international-Non-member-Full_conference", resp.Registration.Summary)
	assert.Equal(t, "0", resp.Registration.PaperID)
	assert.Equal(t, "/register/"+resp.Registration.ID+"/receipt.pdf", resp.ReceiptURL)
	return resp.Registration.ID
}

func TestSubmit_IgnoresClientFee(t *testing.T) {
	h, log := newTestHandler(t)
	id := submit(t, h)

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionRegistrationSubmit, entries[0].Action)
	assert.Equal(t, id, entries[0].ResourceID)
	assert.Equal(t, "user-1", entries[0].Actor)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	h, _ := newTestHandler(t)

	fields := submissionFields()
	delete(fields, "dateOfPayment")
	rec := serve(h, as(multipartRequest(t, "/register/complete", fields, "application/pdf", []byte("%PDF-1.4")), owner))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "dateOfPayment")

	rec = serve(h, as(multipartRequest(t, "/register/complete", submissionFields(), "image/png", []byte("\x89PNG")), owner))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "paymentProof")

	rec = serve(h, as(multipartRequest(t, "/register/complete", submissionFields(), "", nil), owner))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := as(httptest.NewRequest(http.MethodPost, "/register/complete", strings.NewReader("{}")), owner)
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, serve(h, req).Code)
}

func TestSubmit_ClassificationErrorsAreFormErrors(t *testing.T) {
	h, _ := newTestHandler(t)

	fields := submissionFields()
	delete(fields, "nationality")
	rec := serve(h, as(multipartRequest(t, "/register/complete", fields, "application/pdf", []byte("%PDF-1.4")), owner))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "nationality")

	fields = submissionFields()
	fields["category"] = "Gold"
	rec = serve(h, as(multipartRequest(t, "/register/complete", fields, "application/pdf", []byte("%PDF-1.4")), owner))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestQuote(t *testing.T) {
	h, _ := newTestHandler(t)
	body := `{"isAuthor":"yes","nationality":"national","category":"IEEE Member","paperId":"42"}`
	req := httptest.NewRequest(http.MethodPost, "/register/quote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(h, as(req, owner))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 14160, resp["fee"])
	assert.Equal(t, "INR", resp["currency"])
	assert.Equal(t, "paper_42-Author-national-IEEE_Member-Full_conference", resp["summary"])
	assert.NotContains(t, resp, "inr_equivalent")

	form := "isAuthor=no&nationality=international&category=Non-member&conferenceType=full"
	req = httptest.NewRequest(http.MethodPost, "/register/quote", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = serve(h, as(req, owner))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 31506, resp["inr_equivalent"])

	req = httptest.NewRequest(http.MethodPost, "/register/quote", strings.NewReader(`{"isAuthor":"yes"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, serve(h, as(req, owner)).Code)
}

func TestCancelFlow(t *testing.T) {
	h, log := newTestHandler(t)
	id := submit(t, h)

	rec := serve(h, as(httptest.NewRequest(http.MethodPost, "/register/cancel/"+id, nil), stranger))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, as(httptest.NewRequest(http.MethodPost, "/register/cancel/"+id, nil), owner))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"cancelled"`)

	rec = serve(h, as(httptest.NewRequest(http.MethodPost, "/register/cancel/"+id, nil), owner))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Registration already cancelled")

	rec = serve(h, as(httptest.NewRequest(http.MethodPost, "/register/cancel/missing", nil), owner))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var actions []string
	for _, e := range log.Entries() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{audit.ActionRegistrationSubmit, audit.ActionRegistrationCancel}, actions)
}

func TestGetAndReceipt(t *testing.T) {
	h, _ := newTestHandler(t)
	id := submit(t, h)

	rec := serve(h, as(httptest.NewRequest(http.MethodGet, "/register/"+id, nil), owner))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = serve(h, as(httptest.NewRequest(http.MethodGet, "/register/"+id, nil), stranger))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, as(httptest.NewRequest(http.MethodGet, "/register/"+id+"/receipt.pdf", nil), admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "receipt_0_Asha_Rao_TX991.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = serve(h, as(httptest.NewRequest(http.MethodGet, "/register/"+id+"/other", nil), owner))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListings(t *testing.T) {
	h, _ := newTestHandler(t)
	submit(t, h)

	decode := func(rec *httptest.ResponseRecorder) []map[string]any {
		var resp struct {
			Registrations []map[string]any `json:"registrations"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Registrations
	}

	rec := serve(h, as(httptest.NewRequest(http.MethodGet, "/user/registrations", nil), owner))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(rec), 1)

	rec = serve(h, as(httptest.NewRequest(http.MethodGet, "/user/dashboard", nil), stranger))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(rec))

	rec = serve(h, as(httptest.NewRequest(http.MethodGet, "/admin/registrations", nil), admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(rec), 1)
}

func TestExportXLSX(t *testing.T) {
	h, log := newTestHandler(t)
	submit(t, h)

	rec := serve(h, as(httptest.NewRequest(http.MethodGet, "/admin/registrations/export.xlsx", nil), admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "registrations_20251001.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	entries := log.Entries()
	assert.Equal(t, audit.ActionRegistrationExport, entries[len(entries)-1].Action)
}

func TestUnknownRoute(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := serve(h, httptest.NewRequest(http.MethodDelete, "/user/registrations", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
