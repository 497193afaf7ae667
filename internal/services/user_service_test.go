package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Lapkipomoshi/help-paw-backend/internal/auth"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/mail"
)

func newUserService(t *testing.T) (*UserService, *mail.Outbox) {
	t.Helper()
	box := &mail.Outbox{}
	return &UserService{
		DB:     newTestDB(t),
		Tokens: auth.NewSigner("test-secret"),
		Mailer: box,
		TTL: TokenTTLs{
			Access: time.Minute, Refresh: time.Hour, Activation: time.Hour,
			Reset: time.Hour, EmailChange: time.Hour,
		},
		FrontendURL: "https://help-paw.test",
	}, box
}

// mailedToken returns the token at the end of the last link sent to addr.
func mailedToken(t *testing.T, box *mail.Outbox, addr string) string {
	t.Helper()
	m, ok := box.Last(addr)
	if !ok {
		t.Fatalf("no mail to %s", addr)
	}
	return m.Body[strings.LastIndex(m.Body, "/")+1:]
}

func TestUserRegisterActivateLogin(t *testing.T) {
	svc, box := newUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: " Alice@Example.com ", Username: "alice", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "alice@example.com" || u.IsActive || u.Role != domain.RoleUser {
		t.Fatalf("user = %+v", u)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "s3cret-pass"); validationCode(err) != CodeInactiveUser {
		t.Fatalf("inactive login: %v", err)
	}

	if err := svc.Activate(ctx, mailedToken(t, box, "alice@example.com")); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	pair, err := svc.Login(ctx, "ALICE@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "wrong-pass"); validationCode(err) != CodeInvalidCredentials {
		t.Fatalf("wrong password: %v", err)
	}

	a, err := svc.Authenticate(ctx, pair.Access)
	if err != nil || a.ID != u.ID || a.Role != domain.RoleUser {
		t.Fatalf("Authenticate = %+v, %v", a, err)
	}
	if _, err := svc.Authenticate(ctx, pair.Refresh); err == nil {
		t.Fatalf("refresh token accepted as access token")
	}
	if err := svc.Verify(pair.Refresh); err != nil {
		t.Fatalf("Verify refresh: %v", err)
	}
	fresh, err := svc.Refresh(ctx, pair.Refresh)
	if err != nil || fresh == "" {
		t.Fatalf("Refresh = %q, %v", fresh, err)
	}
	if _, err := svc.Refresh(ctx, pair.Access); validationCode(err) != CodeInvalidToken {
		t.Fatalf("access token used to refresh: %v", err)
	}
}

func TestUserRegister_Validation(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "nope", Username: "bad name", Password: "12345678"})
	for _, f := range []string{"email", "username", "password"} {
		if fieldError(err, f) == "" {
			t.Fatalf("expected error on %s, got %v", f, err)
		}
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Username: "a", Password: "short"}); fieldError(err, "password") == "" {
		t.Fatalf("short password accepted: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Username: "a", Password: "long-enough"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Username: "b", Password: "long-enough"}); fieldError(err, "email") == "" {
		t.Fatalf("duplicate email accepted: %v", err)
	}
}

func TestUserPasswordReset(t *testing.T) {
	svc, box := newUserService(t)
	ctx := context.Background()
	admin, err := svc.CreateAdmin(ctx, RegisterInput{Email: "root@example.com", Username: "root", Password: "first-pass"})
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if !admin.IsActive || admin.Role != domain.RoleAdmin {
		t.Fatalf("admin = %+v", admin)
	}

	// Unknown addresses are accepted silently.
	if err := svc.ResetPassword(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("ResetPassword unknown: %v", err)
	}
	if len(box.Sent()) != 0 {
		t.Fatalf("mail sent for unknown address")
	}

	if err := svc.ResetPassword(ctx, "root@example.com"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	tok := mailedToken(t, box, "root@example.com")
	if err := svc.Activate(ctx, tok); validationCode(err) != CodeInvalidToken {
		t.Fatalf("reset token used for activation: %v", err)
	}
	if err := svc.ResetPasswordConfirm(ctx, tok, "second-pass"); err != nil {
		t.Fatalf("ResetPasswordConfirm: %v", err)
	}
	if _, err := svc.Login(ctx, "root@example.com", "second-pass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestUserEmailChange(t *testing.T) {
	svc, box := newUserService(t)
	ctx := context.Background()
	u, err := svc.CreateAdmin(ctx, RegisterInput{Email: "old@example.com", Username: "mover", Password: "mover-pass"})
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if _, err := svc.CreateAdmin(ctx, RegisterInput{Email: "taken@example.com", Username: "other", Password: "other-pass"}); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	a, err := svc.Authenticate(ctx, mustAccess(t, svc, "old@example.com", "mover-pass"))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := svc.ResetEmail(ctx, a, "taken@example.com"); fieldError(err, "new_email") == "" {
		t.Fatalf("taken email accepted: %v", err)
	}
	if err := svc.ResetEmail(ctx, a, "New@Example.com"); err != nil {
		t.Fatalf("ResetEmail: %v", err)
	}
	changed, err := svc.ResetEmailConfirm(ctx, mailedToken(t, box, "new@example.com"))
	if err != nil {
		t.Fatalf("ResetEmailConfirm: %v", err)
	}
	if changed.ID != u.ID || changed.Email != "new@example.com" {
		t.Fatalf("user = %+v", changed)
	}

	me, err := svc.UpdateMe(ctx, a, "renamed")
	if err != nil || me.Username != "renamed" {
		t.Fatalf("UpdateMe = %+v, %v", me, err)
	}
	if _, err := svc.UpdateMe(ctx, a, "other"); fieldError(err, "username") == "" {
		t.Fatalf("duplicate username accepted: %v", err)
	}
	if _, err := svc.Me(ctx, nil); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous Me: %v", err)
	}
}

func mustAccess(t *testing.T, svc *UserService, email, pw string) string {
	t.Helper()
	pair, err := svc.Login(context.Background(), email, pw)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return pair.Access
}
