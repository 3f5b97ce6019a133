// Package identity covers accounts and sessions: login, registration,
// federated sign-in, password recovery and user administration.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"booking-api/internal/apperr"
	"booking-api/internal/auth"
	"booking-api/internal/model"
	"booking-api/internal/oauth"
)

const (
	minPasswordLength = 8
	resetTokenTTL     = time.Hour
)

type Repository interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByID(ctx context.Context, id string) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsersByRole(ctx context.Context, role model.Role) ([]model.User, error)
	SetUserStatus(ctx context.Context, id string, status model.UserStatus) error
	LinkProvider(ctx context.Context, id, provider, subject string) error
	SetResetToken(ctx context.Context, id, hash string, expiry time.Time) error
	UserByResetToken(ctx context.Context, hash string, now time.Time) (*model.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

type Providers interface {
	Get(name string) (oauth.Provider, error)
}

type Config struct {
	Secret      string
	TokenTTL    time.Duration
	RememberTTL time.Duration
	FrontendURL string
}

type Service struct {
	repo      Repository
	mail      Mailer
	providers Providers
	cfg       Config
	log       *slog.Logger
	now       func() time.Time
}

func New(repo Repository, mail Mailer, providers Providers, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		mail:      mail,
		providers: providers,
		cfg:       cfg,
		log:       logger.With("component", "identity"),
		now:       time.Now,
	}
}

// Session is a freshly issued token. Persistent sessions get a cookie with
// an explicit lifetime; the others end with the browser session.
type Session struct {
	Token      string
	ExpiresAt  time.Time
	Persistent bool
	User       *model.User
}

func (s *Service) issue(u *model.User, persistent bool) (*Session, error) {
	ttl := s.cfg.TokenTTL
	if persistent {
		ttl = s.cfg.RememberTTL
	}
	tok, exp, err := auth.MakeToken(u.ID, u.Role, s.cfg.Secret, ttl)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: tok, ExpiresAt: exp, Persistent: persistent, User: u}, nil
}

// Authenticate validates a raw session token.
func (s *Service) Authenticate(raw string) (auth.Identity, error) {
	if raw == "" {
		return auth.Identity{}, fmt.Errorf("no token: %w", apperr.ErrUnauthenticated)
	}
	claims, err := auth.ParseToken(raw, s.cfg.Secret)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %w", apperr.ErrUnauthenticated, err)
	}
	return claims.Identity(), nil
}

// ----- local accounts -----

func (s *Service) Login(ctx context.Context, email, password string, rememberMe bool) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		fields := map[string]string{}
		if email == "" {
			fields["email"] = "required"
		}
		if password == "" {
			fields["password"] = "required"
		}
		return nil, apperr.Validation(fields)
	}
	u, err := s.repo.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, fmt.Errorf("login %s: %w", u.ID, apperr.ErrInvalidCredentials)
	}
	s.log.InfoContext(ctx, "user logged in", "user_id", u.ID, "remember_me", rememberMe)
	return s.issue(u, rememberMe)
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *RegisterInput) validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	fields := map[string]string{}
	if in.Username == "" {
		fields["username"] = "required"
	}
	switch {
	case in.Email == "":
		fields["email"] = "required"
	case !validEmail(in.Email):
		fields["email"] = "invalid email address"
	}
	switch {
	case in.Password == "":
		fields["password"] = "required"
	case len(in.Password) < minPasswordLength:
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLength)
	}
	return apperr.Validation(fields)
}

// Register creates a local account with role user and logs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Status:       model.UserActive,
		Role:         model.RoleUser,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	return s.issue(u, false)
}

// EnsureAdmin creates the bootstrap admin unless the email is taken.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) error {
	email = normalizeEmail(email)
	if _, err := s.repo.UserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if username == "" {
		username = "admin"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Status:       model.UserActive,
		Role:         model.RoleAdmin,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "bootstrap admin created", "user_id", u.ID)
	return nil
}

// ----- federated -----

// Federated signs in with a provider access token, creating the account on
// first use. A fresh session is issued every time.
func (s *Service) Federated(ctx context.Context, provider, token string) (*Session, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, apperr.ErrNotFound)
	}
	prof, err := p.Profile(ctx, token)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(prof.Email)
	if email == "" {
		return nil, apperr.Invalid("email", provider+" profile has no email")
	}

	u, err := s.repo.UserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		u, err = s.createFederated(ctx, prof, email)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	if err := s.repo.LinkProvider(ctx, u.ID, provider, prof.Subject); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "federated login", "user_id", u.ID, "provider", provider)
	return s.issue(u, false)
}

func (s *Service) createFederated(ctx context.Context, prof *oauth.Profile, email string) (*model.User, error) {
	name := strings.TrimSpace(prof.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	u := &model.User{
		ID:       uuid.New().String(),
		Username: name,
		Email:    email,
		Status:   model.UserActive,
		Role:     model.RoleUser,
	}
	err := s.repo.CreateUser(ctx, u)
	if errors.Is(err, apperr.ErrConflict) {
		// display names are not unique, usernames are
		u.Username = name + "-" + u.ID[:6]
		err = s.repo.CreateUser(ctx, u)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ----- session info -----

type AuthStatus struct {
	IsAuthenticated bool             `json:"isAuthenticated"`
	Role            model.Role       `json:"role"`
	Status          model.UserStatus `json:"status"`
}

// CheckAuth reports the token's role and the account status from storage.
func (s *Service) CheckAuth(ctx context.Context, id auth.Identity) (*AuthStatus, error) {
	u, err := s.repo.UserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("account gone: %w", apperr.ErrUnauthenticated)
		}
		return nil, err
	}
	return &AuthStatus{IsAuthenticated: true, Role: id.Role, Status: u.Status}, nil
}

// ----- password recovery -----

func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.Invalid("email", "required")
	}
	u, err := s.repo.UserByEmail(ctx, email)
	if err != nil {
		return err
	}
	raw, hash, err := auth.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("reset token: %w", err)
	}
	if err := s.repo.SetResetToken(ctx, u.ID, hash, s.now().Add(resetTokenTTL)); err != nil {
		return err
	}
	link := s.cfg.FrontendURL + "/reset-password/" + raw
	if err := s.mail.SendPasswordReset(ctx, u.Email, link); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	s.log.InfoContext(ctx, "password reset requested", "user_id", u.ID)
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLength {
		return apperr.Invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if token == "" {
		return apperr.Invalid("token", "invalid or expired")
	}
	u, err := s.repo.UserByResetToken(ctx, auth.HashResetToken(token), s.now())
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Invalid("token", "invalid or expired")
	}
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "password reset", "user_id", u.ID)
	return nil
}

// ----- user administration -----

// ListUsers returns the accounts with role user.
func (s *Service) ListUsers(ctx context.Context, caller auth.Identity) ([]model.User, error) {
	if err := auth.Authorize(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListUsersByRole(ctx, model.RoleUser)
}

func (s *Service) Block(ctx context.Context, caller auth.Identity, id string) error {
	return s.setStatus(ctx, caller, id, model.UserInactive)
}

func (s *Service) Unblock(ctx context.Context, caller auth.Identity, id string) error {
	return s.setStatus(ctx, caller, id, model.UserActive)
}

// setStatus only flips the flag; logins and live tokens are unaffected.
func (s *Service) setStatus(ctx context.Context, caller auth.Identity, id string, st model.UserStatus) error {
	if err := auth.Authorize(caller, model.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.SetUserStatus(ctx, id, st); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user status changed", "user_id", id, "status", st, "by", caller.UserID)
	return nil
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func validEmail(e string) bool {
	addr, err := mail.ParseAddress(e)
	return err == nil && addr.Address == e
}
