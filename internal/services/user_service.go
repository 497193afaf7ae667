package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/auth"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/mail"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
)

// TokenTTLs are the lifetimes of each token purpose.
type TokenTTLs struct {
	Access      time.Duration
	Refresh     time.Duration
	Activation  time.Duration
	Reset       time.Duration
	EmailChange time.Duration
}

// TokenPair is the login result.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RegisterInput is a sign-up request.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// UserService handles accounts and the token flows around them.
type UserService struct {
	DB          *gorm.DB
	Tokens      *auth.Signer
	Mailer      mail.Mailer
	TTL         TokenTTLs
	FrontendURL string
}

// Register creates an inactive user and mails an activation link.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Register")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	f := fieldErrors{}
	if required(f, "email", in.Email) && !validEmail(in.Email) {
		f.add("email", "invalid email")
	}
	maxRunes(f, "email", in.Email, 254)
	if required(f, "username", in.Username) {
		matches(f, "username", in.Username, usernameRE, "letters, digits and @/./+/-/_ only")
		maxRunes(f, "username", in.Username, 150)
	}
	validPassword(f, "password", in.Password)
	if err := f.err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{Email: in.Email, Username: in.Username, PasswordHash: hash, Role: domain.RoleUser}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, duplicateField(err)
	}
	span.SetAttributes(attribute.String("user.id", u.ID))

	tok, _, err := s.Tokens.Sign(auth.Claims{
		RegisteredClaims: subject(u.ID),
		Purpose:          auth.PurposeActivation,
	}, s.TTL.Activation)
	if err != nil {
		return nil, err
	}
	s.send(ctx, mail.Message{
		To:      u.Email,
		Subject: "Активация аккаунта «Лапки помощи»",
		Body:    fmt.Sprintf("Для активации аккаунта перейдите по ссылке: %s/activate/%s", s.FrontendURL, tok),
	})
	return u, nil
}

// Activate marks the user named by an activation token active.
func (s *UserService) Activate(ctx context.Context, token string) error {
	c, err := s.parse(token, auth.PurposeActivation)
	if err != nil {
		return err
	}
	if err := repo.UpdateUserFields(ctx, s.DB, c.UserID(), map[string]any{"is_active": true}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("user")
		}
		return err
	}
	return nil
}

// Login checks credentials and issues an access/refresh pair.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Login")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, normalizeEmail(email))
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, invalid(CodeInvalidCredentials, "no active account found with the given credentials")
	}
	if !u.IsActive {
		return nil, invalid(CodeInactiveUser, "account is not activated")
	}
	acc, err := s.accessToken(u)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.Tokens.Sign(auth.Claims{RegisteredClaims: subject(u.ID), Purpose: auth.PurposeRefresh}, s.TTL.Refresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: acc, Refresh: refresh}, nil
}

// Refresh issues a new access token. The role is re-read so promotions
// take effect without a new login.
func (s *UserService) Refresh(ctx context.Context, refresh string) (string, error) {
	c, err := s.parse(refresh, auth.PurposeRefresh)
	if err != nil {
		return "", err
	}
	u, err := s.activeUser(ctx, c.UserID())
	if err != nil {
		return "", err
	}
	return s.accessToken(u)
}

// Verify accepts any valid access or refresh token.
func (s *UserService) Verify(token string) error {
	if _, err := s.Tokens.Parse(token, auth.PurposeAccess); err == nil {
		return nil
	}
	_, err := s.parse(token, auth.PurposeRefresh)
	return err
}

// Authenticate resolves a bearer access token to an actor. The role comes
// from the database, not the token.
func (s *UserService) Authenticate(ctx context.Context, token string) (*access.Actor, error) {
	c, err := s.Tokens.Parse(token, auth.PurposeAccess)
	if err != nil {
		return nil, err
	}
	u, err := s.activeUser(ctx, c.UserID())
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	return &access.Actor{ID: u.ID, Role: u.Role}, nil
}

// Me returns the actor's account.
func (s *UserService) Me(ctx context.Context, a *access.Actor) (*domain.User, error) {
	if !a.Authenticated() {
		return nil, ErrUnauthenticated
	}
	u, err := repo.GetUser(ctx, s.DB, a.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, notFound("user")
	}
	return u, err
}

// UpdateMe changes the actor's username.
func (s *UserService) UpdateMe(ctx context.Context, a *access.Actor, username string) (*domain.User, error) {
	if !a.Authenticated() {
		return nil, ErrUnauthenticated
	}
	username = strings.TrimSpace(username)
	f := fieldErrors{}
	if required(f, "username", username) {
		matches(f, "username", username, usernameRE, "letters, digits and @/./+/-/_ only")
		maxRunes(f, "username", username, 150)
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	if err := repo.UpdateUserFields(ctx, s.DB, a.ID, map[string]any{"username": username}); err != nil {
		return nil, duplicateField(err)
	}
	return s.Me(ctx, a)
}

// ResetPassword mails a reset link when email belongs to an active user.
// The outcome is not disclosed to the caller.
func (s *UserService) ResetPassword(ctx context.Context, email string) error {
	u, err := repo.GetUserByEmail(ctx, s.DB, normalizeEmail(email))
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return nil
	}
	tok, _, err := s.Tokens.Sign(auth.Claims{RegisteredClaims: subject(u.ID), Purpose: auth.PurposeResetPassword}, s.TTL.Reset)
	if err != nil {
		return err
	}
	s.send(ctx, mail.Message{
		To:      u.Email,
		Subject: "Сброс пароля «Лапки помощи»",
		Body:    fmt.Sprintf("Для сброса пароля перейдите по ссылке: %s/password/reset/%s", s.FrontendURL, tok),
	})
	return nil
}

// ResetPasswordConfirm sets a new password using a reset token.
func (s *UserService) ResetPasswordConfirm(ctx context.Context, token, newPassword string) error {
	c, err := s.parse(token, auth.PurposeResetPassword)
	if err != nil {
		return err
	}
	f := fieldErrors{}
	validPassword(f, "new_password", newPassword)
	if err := f.err(); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := repo.UpdateUserFields(ctx, s.DB, c.UserID(), map[string]any{"password_hash": hash}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("user")
		}
		return err
	}
	return nil
}

// ResetEmail mails a confirmation link to newEmail.
func (s *UserService) ResetEmail(ctx context.Context, a *access.Actor, newEmail string) error {
	if !a.Authenticated() {
		return ErrUnauthenticated
	}
	newEmail = normalizeEmail(newEmail)
	if !validEmail(newEmail) {
		return invalidField("new_email", "invalid email")
	}
	if _, err := repo.GetUserByEmail(ctx, s.DB, newEmail); err == nil {
		return invalidField("new_email", "already taken")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	tok, _, err := s.Tokens.Sign(auth.Claims{
		RegisteredClaims: subject(a.ID),
		Purpose:          auth.PurposeResetEmail,
		Email:            newEmail,
	}, s.TTL.EmailChange)
	if err != nil {
		return err
	}
	s.send(ctx, mail.Message{
		To:      newEmail,
		Subject: "Смена email «Лапки помощи»",
		Body:    fmt.Sprintf("Для подтверждения нового адреса перейдите по ссылке: %s/email/reset/%s", s.FrontendURL, tok),
	})
	return nil
}

// ResetEmailConfirm applies an email change if the address is still free.
func (s *UserService) ResetEmailConfirm(ctx context.Context, token string) (*domain.User, error) {
	c, err := s.parse(token, auth.PurposeResetEmail)
	if err != nil {
		return nil, err
	}
	if !validEmail(c.Email) {
		return nil, invalid(CodeInvalidToken, "token carries no email")
	}
	if err := repo.UpdateUserFields(ctx, s.DB, c.UserID(), map[string]any{"email": c.Email}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, notFound("user")
		}
		return nil, duplicateField(err)
	}
	return repo.GetUser(ctx, s.DB, c.UserID())
}

// CreateAdmin creates an active administrator, bypassing email activation.
func (s *UserService) CreateAdmin(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Email = normalizeEmail(in.Email)
	f := fieldErrors{}
	if !validEmail(in.Email) {
		f.add("email", "invalid email")
	}
	required(f, "username", in.Username)
	validPassword(f, "password", in.Password)
	if err := f.err(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Email: in.Email, Username: strings.TrimSpace(in.Username), PasswordHash: hash,
		Role: domain.RoleAdmin, IsActive: true,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		return nil, duplicateField(err)
	}
	return u, nil
}

func (s *UserService) accessToken(u *domain.User) (string, error) {
	tok, _, err := s.Tokens.Sign(auth.Claims{
		RegisteredClaims: subject(u.ID),
		Purpose:          auth.PurposeAccess,
		Role:             string(u.Role),
	}, s.TTL.Access)
	return tok, err
}

func (s *UserService) activeUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, invalid(CodeInvalidToken, "user not found")
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, invalid(CodeInactiveUser, "account is not activated")
	}
	return u, nil
}

// parse maps token failures onto validation errors.
func (s *UserService) parse(token string, p auth.Purpose) (*auth.Claims, error) {
	c, err := s.Tokens.Parse(token, p)
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return nil, invalid(CodeInvalidToken, "token expired")
	case err != nil:
		return nil, invalid(CodeInvalidToken, "invalid token")
	}
	return c, nil
}

func (s *UserService) send(ctx context.Context, m mail.Message) {
	if s.Mailer == nil {
		return
	}
	if err := s.Mailer.Send(ctx, m); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("to", m.To).Str("subject", m.Subject).Msg("mail not sent")
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

func subject(id string) jwt.RegisteredClaims { return jwt.RegisteredClaims{Subject: id} }

// duplicateField converts a unique violation into a field error.
func duplicateField(err error) error {
	var dup *repo.DuplicateError
	if errors.As(err, &dup) {
		col := dup.Column
		if col == "" {
			return invalid(CodeValidation, "already exists")
		}
		return invalidField(col, "already taken")
	}
	return err
}
