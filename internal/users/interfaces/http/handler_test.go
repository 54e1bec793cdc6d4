package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"confreg/internal/audit"
	"confreg/internal/auth"
	"confreg/internal/notify"
	userapp "confreg/internal/users/application"
	"confreg/internal/users/infrastructure/memory"
)

type nopMailer struct{ last notify.Message }

func (m *nopMailer) Send(_ context.Context, msg notify.Message) error {
	m.last = msg
	return nil
}

type harness struct {
	handler *Handler
	service *userapp.Service
	audit   *audit.MemoryLog
	revoked *auth.MemoryRevocationList
	mailer  *nopMailer
}

func newHarness(t *testing.T) harness {
	t.Helper()
	issuer, err := auth.NewIssuer([]byte("test-secret"), 2*time.Hour)
	require.NoError(t, err)
	h := harness{audit: audit.NewMemoryLog(), revoked: auth.NewMemoryRevocationList(), mailer: &nopMailer{}}
	h.service, err = userapp.NewService(memory.NewUserRepository(), memory.NewResetTokenStore(), issuer, h.revoked, h.mailer,
		"http://localhost:3000", userapp.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	h.handler, err = NewHandler(h.service, h.audit, nil, false)
	require.NoError(t, err)
	return h
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func signUpForm(email string) url.Values {
	return url.Values{
		"name":            {"Asha Rao"},
		"email":           {email},
		"password":        {"pw"},
		"confirmPassword": {"pw"},
	}
}

func TestRegister_SetsSessionCookie(t *testing.T) {
	h := newHarness(t)
	rec := postForm(h.handler, "/auth/register", signUpForm("asha@example.com"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, cookies[0].Value, body["token"])
	assert.NotContains(t, rec.Body.String(), "PasswordHash")

	entries := h.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionUserRegister, entries[0].Action)
}

func TestRegister_Errors(t *testing.T) {
	h := newHarness(t)
	postForm(h.handler, "/auth/register", signUpForm("asha@example.com"))

	rec := postForm(h.handler, "/auth/register", signUpForm("asha@example.com"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email is already registered")

	form := signUpForm("b@example.com")
	form.Set("confirmPassword", "other")
	rec = postForm(h.handler, "/auth/register", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match")
}

func TestLogin_JSONBody(t *testing.T) {
	h := newHarness(t)
	postForm(h.handler, "/auth/register", signUpForm("asha@example.com"))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"asha@example.com","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postForm(h.handler, "/auth/login", url.Values{"email": {"asha@example.com"}, "password": {"bad"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminLogin_RejectsPlainUser(t *testing.T) {
	h := newHarness(t)
	postForm(h.handler, "/auth/register", signUpForm("asha@example.com"))

	rec := postForm(h.handler, "/admin/login", url.Values{"email": {"asha@example.com"}, "password": {"pw"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, err := h.service.EnsureAdmin(context.Background(), "", "asha@example.com", "pw")
	require.NoError(t, err)
	rec = postForm(h.handler, "/admin/login", url.Values{"email": {"asha@example.com"}, "password": {"pw"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout_RevokesAndClearsCookie(t *testing.T) {
	h := newHarness(t)
	rec := postForm(h.handler, "/auth/register", signUpForm("asha@example.com"))
	token := rec.Result().Cookies()[0].Value

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)

	claims, err := auth.ParseJWT(token, []byte("test-secret"))
	require.NoError(t, err)
	revoked, err := h.revoked.IsRevoked(context.Background(), claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestForgotAndReset(t *testing.T) {
	h := newHarness(t)
	postForm(h.handler, "/auth/register", signUpForm("asha@example.com"))

	rec := postForm(h.handler, "/auth/forgot", url.Values{"email": {"ghost@example.com"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postForm(h.handler, "/auth/forgot", url.Values{"email": {"asha@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)

	const prefix = "http://localhost:3000/auth/reset/"
	idx := strings.Index(h.mailer.last.Body, prefix)
	require.GreaterOrEqual(t, idx, 0)
	token := strings.Fields(h.mailer.last.Body[idx+len(prefix):])[0]

	req := httptest.NewRequest(http.MethodGet, "/auth/reset/"+token, nil)
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postForm(h.handler, "/auth/reset/"+token, url.Values{"password": {"new"}, "confirmPassword": {"new"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postForm(h.handler, "/auth/reset/"+token, url.Values{"password": {"new"}, "confirmPassword": {"new"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(h.handler, "/auth/login", url.Values{"email": {"asha@example.com"}, "password": {"new"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}
