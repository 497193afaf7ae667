// Account HTTP handlers.
//
//   - POST  /auth/users                          (register, inactive until activated)
//   - POST  /auth/users/activation               (activate with mailed token)
//   - POST  /auth/jwt/create | refresh | verify  (token pair handling)
//   - GET   /auth/users/me, PATCH /auth/users/me
//   - POST  /auth/users/reset_password[_confirm]
//   - POST  /auth/users/reset_email[_confirm]
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
)

//
// DTOs
//

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email    string `json:"email" example:"volunteer@example.com"`
	Username string `json:"username" example:"volunteer"`
	Password string `json:"password" example:"correct-horse-battery"`
}

// TokenRequest carries a single signed token.
type TokenRequest struct {
	Token string `json:"token"`
}

// LoginRequest exchanges credentials for a token pair.
type LoginRequest struct {
	Email    string `json:"email" example:"volunteer@example.com"`
	Password string `json:"password" example:"correct-horse-battery"`
}

// RefreshRequest exchanges a refresh token for an access token.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// AccessResponse is the refreshed access token.
type AccessResponse struct {
	Access string `json:"access"`
}

// UpdateMeRequest changes the caller's profile.
type UpdateMeRequest struct {
	Username string `json:"username" example:"volunteer"`
}

// EmailRequest names an e-mail address.
type EmailRequest struct {
	Email string `json:"email" example:"volunteer@example.com"`
}

// NewEmailRequest asks for an address change.
type NewEmailRequest struct {
	NewEmail string `json:"new_email" example:"new@example.com"`
}

// PasswordConfirmRequest sets a new password with a reset token.
type PasswordConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

//
// Handlers
//

// RegisterUser godoc
// @ID          registerUser
// @Summary     Register a user
// @Description Creates an inactive account and mails an activation link.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Account"
// @Success     201   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /auth/users [post]
func (h *Handlers) RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Email: req.Email, Username: req.Username, Password: req.Password,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, u)
}

// ActivateUser godoc
// @ID          activateUser
// @Summary     Activate an account
// @Tags        Auth
// @Accept      json
// @Param       body  body  handlers.TokenRequest  true  "Activation token"
// @Success     204
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /auth/users/activation [post]
func (h *Handlers) ActivateUser(c *gin.Context) {
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.Activate(c.Request.Context(), req.Token); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// CreateToken godoc
// @ID          createToken
// @Summary     Log in
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  services.TokenPair
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     429   {object}  handlers.ErrorResponse
// @Router      /auth/jwt/create [post]
func (h *Handlers) CreateToken(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, pair)
}

// RefreshToken godoc
// @ID          refreshToken
// @Summary     Refresh the access token
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RefreshRequest  true  "Refresh token"
// @Success     200   {object}  handlers.AccessResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /auth/jwt/refresh [post]
func (h *Handlers) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	access, err := h.users.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, AccessResponse{Access: access})
}

// VerifyToken godoc
// @ID          verifyToken
// @Summary     Check a token signature and expiry
// @Tags        Auth
// @Accept      json
// @Param       body  body  handlers.TokenRequest  true  "Token"
// @Success     200
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /auth/jwt/verify [post]
func (h *Handlers) VerifyToken(c *gin.Context) {
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.Verify(req.Token); err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{})
}

// GetMe godoc
// @ID          getMe
// @Summary     Current user
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.User
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /auth/users/me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	u, err := h.users.Me(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Change the current user's username
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.UpdateMeRequest  true  "Profile"
// @Success     200   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Router      /auth/users/me [patch]
func (h *Handlers) UpdateMe(c *gin.Context) {
	var req UpdateMeRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.UpdateMe(c.Request.Context(), actor(c), req.Username)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// ResetPassword godoc
// @ID          resetPassword
// @Summary     Mail a password reset link
// @Description Always answers 204 so registered addresses are not revealed.
// @Tags        Auth
// @Accept      json
// @Param       body  body  handlers.EmailRequest  true  "Account e-mail"
// @Success     204
// @Router      /auth/users/reset_password [post]
func (h *Handlers) ResetPassword(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), req.Email); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// ResetPasswordConfirm godoc
// @ID          resetPasswordConfirm
// @Summary     Set a new password
// @Tags        Auth
// @Accept      json
// @Param       body  body  handlers.PasswordConfirmRequest  true  "Reset token and password"
// @Success     204
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /auth/users/reset_password_confirm [post]
func (h *Handlers) ResetPasswordConfirm(c *gin.Context) {
	var req PasswordConfirmRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.ResetPasswordConfirm(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// ResetEmail godoc
// @ID          resetEmail
// @Summary     Request an e-mail change
// @Description Mails a confirmation link, valid for two days, to the new address.
// @Tags        Auth
// @Accept      json
// @Security    BearerAuth
// @Param       body  body  handlers.NewEmailRequest  true  "New address"
// @Success     204
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Router      /auth/users/reset_email [post]
func (h *Handlers) ResetEmail(c *gin.Context) {
	var req NewEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.ResetEmail(c.Request.Context(), actor(c), req.NewEmail); err != nil {
		h.writeError(c, err)
		return
	}
	noContent(c)
}

// ResetEmailConfirm godoc
// @ID          resetEmailConfirm
// @Summary     Apply an e-mail change
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.TokenRequest  true  "Change token"
// @Success     200   {object}  domain.User
// @Failure     400   {object}  handlers.ErrorResponse
// @Router      /auth/users/reset_email_confirm [post]
func (h *Handlers) ResetEmailConfirm(c *gin.Context) {
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.ResetEmailConfirm(c.Request.Context(), req.Token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
