package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/internal/services"
	"github.com/charlesng35/workpass/pkg/logger"
	"github.com/charlesng35/workpass/pkg/response"
)

const passwordResetAcceptedMessage = "If an account exists for this email, a reset link is on its way"

// AuthHandler manages account creation, login and password reset.
type AuthHandler struct {
	auth   *services.AuthService
	signup *services.SignupService
	resets *services.PasswordResetService
}

func NewAuthHandler(auth *services.AuthService, signup *services.SignupService, resets *services.PasswordResetService) *AuthHandler {
	return &AuthHandler{auth: auth, signup: signup, resets: resets}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type completeSignupRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.signup.Register(requestContext(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusCreated, user)
}

// POST /api/auth/signup
func (h *AuthHandler) StartSignup(c *gin.Context) {
	var req services.StartSignupInput
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.signup.Start(requestContext(c), req); err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, "A verification code has been sent to your corporate email")
}

// POST /api/auth/signup/complete
func (h *AuthHandler) CompleteSignup(c *gin.Context) {
	var req completeSignupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.signup.Complete(requestContext(c), req.Email, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondWithSession(c, http.StatusCreated, user)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// POST /api/auth/password/forgot
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.resets.Request(requestContext(c), req.Email); err != nil {
		// The reply must not reveal whether the lookup succeeded.
		logger.WithModule("auth").Error("password reset request failed", zap.Error(err))
	}
	response.Accepted(c, passwordResetAcceptedMessage)
}

// POST /api/auth/password/reset
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.resets.Confirm(requestContext(c), req.Token, req.Password); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Password updated"})
}

// respondWithSession signs the new account in so the client can continue
// without a separate login.
func (h *AuthHandler) respondWithSession(c *gin.Context, status int, user *models.User) {
	result, err := h.auth.Issue(requestContext(c), user)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, status, result)
}
