package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"confreg/internal/auth"
	"confreg/internal/notify"
	"confreg/internal/observability/metrics"
	users "confreg/internal/users/domain"
)

const resetTokenTTL = time.Hour

// SignUpRequest carries sign-up form fields.
type SignUpRequest struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Session is an issued login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *users.User
}

// Service manages accounts, sessions and password resets.
type Service struct {
	repo        users.Repository
	resetTokens users.ResetTokenStore
	issuer      *auth.Issuer
	revoked     auth.RevocationList
	mailer      notify.Mailer
	baseURL     string
	logger      *zap.Logger
	now         func() time.Time
	cost        int
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost overrides the bcrypt cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs a Service. revoked may be nil.
func NewService(repo users.Repository, resetTokens users.ResetTokenStore, issuer *auth.Issuer, revoked auth.RevocationList, mailer notify.Mailer, baseURL string, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("users service: nil repository")
	}
	if resetTokens == nil {
		return nil, errors.New("users service: nil reset token store")
	}
	if issuer == nil {
		return nil, errors.New("users service: nil issuer")
	}
	if mailer == nil {
		return nil, errors.New("users service: nil mailer")
	}
	s := &Service{
		repo:        repo,
		resetTokens: resetTokens,
		issuer:      issuer,
		revoked:     revoked,
		mailer:      mailer,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      zap.NewNop(),
		now:         time.Now,
		cost:        bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a user account and logs it in.
func (s *Service) Register(ctx context.Context, req SignUpRequest) (*Session, error) {
	name := strings.TrimSpace(req.Name)
	email := users.NormalizeEmail(req.Email)
	if !users.ValidEmail(email) {
		return nil, users.ErrInvalidEmail
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, users.ErrEmailTaken
	} else if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}
	if req.Password != req.ConfirmPassword {
		return nil, users.ErrPasswordMismatch
	}
	if name == "" {
		return nil, users.ErrMissingName
	}
	if req.Password == "" {
		return nil, users.ErrMissingPassword
	}

	user, err := s.newUser(name, email, req.Password, auth.RoleUser)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

// Login authenticates a user account.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	session, err := s.login(ctx, email, password, auth.RoleUser)
	if err != nil {
		metrics.IncLogin("user", metrics.ResultRejected)
		return nil, err
	}
	metrics.IncLogin("user", metrics.ResultSuccess)
	return session, nil
}

// AdminLogin authenticates an account holding the admin role.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*Session, error) {
	session, err := s.login(ctx, email, password, auth.RoleAdmin)
	if err != nil {
		metrics.IncLogin("admin", metrics.ResultRejected)
		return nil, err
	}
	metrics.IncLogin("admin", metrics.ResultSuccess)
	return session, nil
}

func (s *Service) login(ctx context.Context, email, password string, required auth.Role) (*Session, error) {
	user, err := s.repo.FindByEmail(ctx, users.NormalizeEmail(email))
	if errors.Is(err, users.ErrNotFound) {
		return nil, users.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if required == auth.RoleAdmin && user.Role != auth.RoleAdmin {
		return nil, users.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, users.ErrInvalidCredentials
	}
	return s.issue(user)
}

// Logout revokes the session token until it would have expired.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return nil
	}
	if s.revoked == nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time.Sub(s.now()))
}

// RequestPasswordReset mails a one-hour reset link to the account owner.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		return err
	}
	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.resetTokens.Save(ctx, token, user.ID, resetTokenTTL); err != nil {
		return fmt.Errorf("users service: save reset token: %w", err)
	}
	msg, err := notify.PasswordResetMessage(user.Email, s.baseURL+"/auth/reset/"+token)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return err
	}
	s.logger.Info("password reset requested", zap.String("user_id", user.ID))
	return nil
}

// CheckResetToken reports whether token is live.
func (s *Service) CheckResetToken(ctx context.Context, token string) error {
	_, err := s.resetTokens.Lookup(ctx, token)
	return err
}

// ResetPassword sets a new password using a live token, consuming it.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) (*users.User, error) {
	if _, err := s.resetTokens.Lookup(ctx, token); err != nil {
		return nil, err
	}
	if password != confirm {
		return nil, users.ErrPasswordMismatch
	}
	if password == "" {
		return nil, users.ErrMissingPassword
	}
	userID, err := s.resetTokens.Consume(ctx, token)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash), s.now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

// EnsureAdmin creates an admin account or promotes and re-keys an existing one.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (*users.User, error) {
	email = users.NormalizeEmail(email)
	if !users.ValidEmail(email) {
		return nil, users.ErrInvalidEmail
	}
	if password == "" {
		return nil, users.ErrMissingPassword
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		if strings.TrimSpace(name) == "" {
			name = "Administrator"
		}
		user, err := s.newUser(strings.TrimSpace(name), email, password, auth.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePassword(ctx, existing.ID, string(hash), now); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRole(ctx, existing.ID, auth.RoleAdmin, now); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, existing.ID)
}

// SessionTTL returns the lifetime of issued sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.issuer.TTL()
}

func (s *Service) newUser(name, email, password string, role auth.Role) (*users.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return &users.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Service) issue(user *users.User) (*Session, error) {
	token, claims, err := s.issuer.Issue(user.Identity())
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

func newResetToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
