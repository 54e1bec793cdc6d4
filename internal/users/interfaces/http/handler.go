package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"confreg/internal/audit"
	"confreg/internal/auth"
	"confreg/internal/platform/httpx"
	userapp "confreg/internal/users/application"
	users "confreg/internal/users/domain"
)

// Handler serves /auth/* and the admin login routes.
type Handler struct {
	service      *userapp.Service
	auditLogger  audit.Logger
	logger       *zap.Logger
	secureCookie bool
}

// NewHandler constructs a handler.
func NewHandler(service *userapp.Service, auditLogger audit.Logger, logger *zap.Logger, secureCookie bool) (*Handler, error) {
	if service == nil {
		return nil, errors.New("users handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, auditLogger: auditLogger, logger: logger, secureCookie: secureCookie}, nil
}

// ServeHTTP routes account requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/auth/register" && r.Method == http.MethodPost:
		h.handleRegister(w, r)
	case path == "/auth/login" && r.Method == http.MethodPost:
		h.handleLogin(w, r, false)
	case path == "/admin/login" && r.Method == http.MethodPost:
		h.handleLogin(w, r, true)
	case (path == "/auth/logout" || path == "/admin/logout") && r.Method == http.MethodPost:
		h.handleLogout(w, r)
	case path == "/auth/forgot" && r.Method == http.MethodPost:
		h.handleForgot(w, r)
	case strings.HasPrefix(path, "/auth/reset/"):
		token := strings.TrimPrefix(path, "/auth/reset/")
		if token == "" || strings.Contains(token, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleCheckReset(w, r, token)
		case http.MethodPost:
			h.handleReset(w, r, token)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	form, err := httpx.FormValues(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	session, err := h.service.Register(r.Context(), userapp.SignUpRequest{
		Name:            form.Get("name"),
		Email:           form.Get("email"),
		Password:        form.Get("password"),
		ConfirmPassword: form.Get("confirmPassword"),
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.setSession(w, session)
	h.logAudit(r, session.User, audit.ActionUserRegister)
	httpx.WriteJSON(w, http.StatusCreated, sessionResponse(session))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request, admin bool) {
	form, err := httpx.FormValues(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	login := h.service.Login
	if admin {
		login = h.service.AdminLogin
	}
	session, err := login(r.Context(), form.Get("email"), form.Get("password"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.setSession(w, session)
	h.logAudit(r, session.User, audit.ActionUserLogin)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse(session))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.logger.Error("logout revoke failed", zap.Error(err))
			httpx.WriteError(w, http.StatusServiceUnavailable, "logout failed")
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleForgot(w http.ResponseWriter, r *http.Request) {
	form, err := httpx.FormValues(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), form.Get("email")); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "No account with that email exists")
			return
		}
		h.respondServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password reset link sent to your email."})
}

func (h *Handler) handleCheckReset(w http.ResponseWriter, r *http.Request, token string) {
	if err := h.service.CheckResetToken(r.Context(), token); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request, token string) {
	form, err := httpx.FormValues(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.service.ResetPassword(r.Context(), token, form.Get("password"), form.Get("confirmPassword"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.logAudit(r, user, audit.ActionPasswordReset)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset. You can now login."})
}

func (h *Handler) setSession(w http.ResponseWriter, session *userapp.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionResponse(session *userapp.Session) map[string]any {
	return map[string]any{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       session.User,
	}
}

func (h *Handler) logAudit(r *http.Request, user *users.User, action string) {
	if h.auditLogger == nil || user == nil {
		return
	}
	if err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        user.ID,
		Role:         string(user.Role),
		Action:       action,
		ResourceType: "user",
		ResourceID:   user.ID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	}); err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, users.ErrInvalidEmail),
		errors.Is(err, users.ErrMissingName),
		errors.Is(err, users.ErrMissingPassword),
		errors.Is(err, users.ErrPasswordMismatch),
		errors.Is(err, users.ErrInvalidResetToken):
		httpx.WriteError(w, http.StatusBadRequest, userMessage(err))
	case errors.Is(err, users.ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict, userMessage(err))
	case errors.Is(err, users.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, users.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	default:
		h.logger.Error("account request failed", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
	}
}

func userMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), "users: ")
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
