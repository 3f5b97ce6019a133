package identity_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-api/internal/apperr"
	"booking-api/internal/auth"
	"booking-api/internal/identity"
	"booking-api/internal/model"
	"booking-api/internal/oauth"
	"booking-api/internal/store/memstore"
)

const secret = "test-secret"

type resetMail struct{ to, link string }

type fakeMailer struct{ sent []resetMail }

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.sent = append(m.sent, resetMail{to, link})
	return nil
}

type fakeProvider struct {
	name    string
	profile *oauth.Profile
	err     error
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) Profile(context.Context, string) (*oauth.Profile, error) {
	if p.err != nil {
		return nil, p.err
	}
	cp := *p.profile
	cp.Provider = p.name
	return &cp, nil
}

type env struct {
	svc   *identity.Service
	store *memstore.Store
	mail  *fakeMailer
	g     *fakeProvider
}

func setup(t *testing.T) *env {
	t.Helper()
	st := memstore.New()
	mail := &fakeMailer{}
	g := &fakeProvider{name: oauth.Google, profile: &oauth.Profile{Subject: "g-1", Email: "Carol@Gmail.com", Name: "Carol"}}
	svc := identity.New(st, mail, oauth.NewRegistry(g), identity.Config{
		Secret:      secret,
		TokenTTL:    24 * time.Hour,
		RememberTTL: 7 * 24 * time.Hour,
		FrontendURL: "https://app.test",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &env{svc: svc, store: st, mail: mail, g: g}
}

func (e *env) register(t *testing.T, name, email string) *identity.Session {
	t.Helper()
	s, err := e.svc.Register(context.Background(), identity.RegisterInput{Username: name, Email: email, Password: "password1"})
	require.NoError(t, err)
	return s
}

func TestRegister(t *testing.T) {
	e := setup(t)
	s := e.register(t, "alice", "alice@x.com")

	assert.Equal(t, model.RoleUser, s.User.Role)
	assert.Equal(t, model.UserActive, s.User.Status)
	assert.False(t, s.Persistent)
	assert.NotEqual(t, "password1", s.User.PasswordHash)

	id, err := e.svc.Authenticate(s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, id.UserID)

	_, err = e.svc.Register(context.Background(), identity.RegisterInput{Username: "alice2", Email: "ALICE@x.com", Password: "password1"})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "duplicate email, case-insensitive")
}

func TestRegisterValidation(t *testing.T) {
	e := setup(t)
	tests := []struct {
		name  string
		in    identity.RegisterInput
		field string
	}{
		{"no username", identity.RegisterInput{Email: "a@x.com", Password: "password1"}, "username"},
		{"no email", identity.RegisterInput{Username: "a", Password: "password1"}, "email"},
		{"bad email", identity.RegisterInput{Username: "a", Email: "not-an-email", Password: "password1"}, "email"},
		{"display-name email", identity.RegisterInput{Username: "a", Email: "A <a@x.com>", Password: "password1"}, "email"},
		{"short password", identity.RegisterInput{Username: "a", Email: "a@x.com", Password: "short"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Register(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation))
			assert.Contains(t, apperr.Details(err), tt.field)
		})
	}
}

func TestLogin(t *testing.T) {
	e := setup(t)
	e.register(t, "alice", "alice@x.com")
	ctx := context.Background()

	s, err := e.svc.Login(ctx, "alice@x.com", "password1", false)
	require.NoError(t, err)
	assert.False(t, s.Persistent)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), s.ExpiresAt, time.Minute)

	s, err = e.svc.Login(ctx, " Alice@X.com ", "password1", true)
	require.NoError(t, err)
	assert.True(t, s.Persistent)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), s.ExpiresAt, time.Minute)

	_, err = e.svc.Login(ctx, "alice@x.com", "wrong-password", false)
	assert.True(t, errors.Is(err, apperr.ErrInvalidCredentials))

	_, err = e.svc.Login(ctx, "nobody@x.com", "password1", false)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = e.svc.Login(ctx, "", "", false)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestFederatedCreatesThenReuses(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.svc.Federated(ctx, oauth.Google, "tok")
	require.NoError(t, err)
	assert.Equal(t, "carol@gmail.com", first.User.Email)
	assert.Equal(t, "Carol", first.User.Username)
	assert.Empty(t, first.User.PasswordHash)

	second, err := e.svc.Federated(ctx, oauth.Google, "tok")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	u, err := e.store.UserByID(ctx, first.User.ID)
	require.NoError(t, err)
	require.NotNil(t, u.GoogleID)
	assert.Equal(t, "g-1", *u.GoogleID)

	// no password: local login must fail
	_, err = e.svc.Login(ctx, "carol@gmail.com", "anything-at-all", false)
	assert.True(t, errors.Is(err, apperr.ErrInvalidCredentials))
}

func TestFederatedLinksExistingAccount(t *testing.T) {
	e := setup(t)
	local := e.register(t, "carol", "carol@gmail.com")

	s, err := e.svc.Federated(context.Background(), oauth.Google, "tok")
	require.NoError(t, err)
	assert.Equal(t, local.User.ID, s.User.ID)
}

func TestFederatedUsernameClash(t *testing.T) {
	e := setup(t)
	e.register(t, "Carol", "other@x.com")

	s, err := e.svc.Federated(context.Background(), oauth.Google, "tok")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.User.Username, "Carol-"))
}

func TestFederatedFailures(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.Federated(ctx, "myspace", "tok")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	e.g.err = apperr.ErrUnauthenticated
	_, err = e.svc.Federated(ctx, oauth.Google, "tok")
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))

	e.g.err = nil
	e.g.profile = &oauth.Profile{Subject: "g-2", Name: "No Mail"}
	_, err = e.svc.Federated(ctx, oauth.Google, "tok")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestAuthenticate(t *testing.T) {
	e := setup(t)

	_, err := e.svc.Authenticate("")
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
	_, err = e.svc.Authenticate("garbage")
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))

	expired, _, err := auth.MakeToken("u1", model.RoleUser, secret, -time.Minute)
	require.NoError(t, err)
	_, err = e.svc.Authenticate(expired)
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
	assert.True(t, errors.Is(err, auth.ErrExpiredToken))
}

func TestCheckAuthReadsStatus(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	s := e.register(t, "alice", "alice@x.com")
	admin := auth.Identity{UserID: "admin", Role: model.RoleAdmin}
	id := auth.Identity{UserID: s.User.ID, Role: s.User.Role}

	st, err := e.svc.CheckAuth(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &identity.AuthStatus{IsAuthenticated: true, Role: model.RoleUser, Status: model.UserActive}, st)

	require.NoError(t, e.svc.Block(ctx, admin, s.User.ID))
	st, err = e.svc.CheckAuth(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.UserInactive, st.Status)

	_, err = e.svc.CheckAuth(ctx, auth.Identity{UserID: "gone", Role: model.RoleUser})
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
}

func TestPasswordRecovery(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.register(t, "alice", "alice@x.com")

	assert.True(t, errors.Is(e.svc.ForgotPassword(ctx, "nobody@x.com"), apperr.ErrNotFound))

	require.NoError(t, e.svc.ForgotPassword(ctx, "alice@x.com"))
	require.Len(t, e.mail.sent, 1)
	assert.Equal(t, "alice@x.com", e.mail.sent[0].to)
	prefix := "https://app.test/reset-password/"
	require.True(t, strings.HasPrefix(e.mail.sent[0].link, prefix))
	token := strings.TrimPrefix(e.mail.sent[0].link, prefix)
	assert.Len(t, token, 64)

	err := e.svc.ResetPassword(ctx, "not-the-token", "newpassword")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	err = e.svc.ResetPassword(ctx, token, "short")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	require.NoError(t, e.svc.ResetPassword(ctx, token, "newpassword"))
	_, err = e.svc.Login(ctx, "alice@x.com", "newpassword", false)
	assert.NoError(t, err)
	_, err = e.svc.Login(ctx, "alice@x.com", "password1", false)
	assert.True(t, errors.Is(err, apperr.ErrInvalidCredentials))

	// single use
	err = e.svc.ResetPassword(ctx, token, "another-password")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestUserAdministration(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	admin := auth.Identity{UserID: "admin", Role: model.RoleAdmin}
	user := auth.Identity{UserID: "u", Role: model.RoleUser}

	a := e.register(t, "alice", "alice@x.com")
	e.register(t, "bob", "bob@x.com")
	require.NoError(t, e.svc.EnsureAdmin(ctx, "root", "root@x.com", "rootpassword"))
	require.NoError(t, e.svc.EnsureAdmin(ctx, "root", "root@x.com", "rootpassword"), "idempotent")

	list, err := e.svc.ListUsers(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 2, "admins are not listed")
	assert.Equal(t, "bob", list[0].Username, "newest first")

	_, err = e.svc.ListUsers(ctx, user)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.True(t, errors.Is(e.svc.Block(ctx, user, a.User.ID), apperr.ErrForbidden))
	assert.True(t, errors.Is(e.svc.Block(ctx, admin, "missing"), apperr.ErrNotFound))

	require.NoError(t, e.svc.Block(ctx, admin, a.User.ID))
	// blocked accounts can still log in
	_, err = e.svc.Login(ctx, "alice@x.com", "password1", false)
	assert.NoError(t, err)
	require.NoError(t, e.svc.Unblock(ctx, admin, a.User.ID))

	s, err := e.svc.Login(ctx, "root@x.com", "rootpassword", false)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, s.User.Role)
}
