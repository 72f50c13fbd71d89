package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/workpass/internal/services"
	"github.com/charlesng35/workpass/pkg/response"
)

// OTPHandler issues and checks emailed corporate verification codes.
type OTPHandler struct {
	otp *services.OTPService
}

func NewOTPHandler(otp *services.OTPService) *OTPHandler {
	return &OTPHandler{otp: otp}
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type otpVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// POST /api/otp/request
func (h *OTPHandler) Request(c *gin.Context) {
	var req otpRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.otp.Issue(requestContext(c), req.Email); err != nil {
		writeError(c, err)
		return
	}
	response.Accepted(c, "A verification code has been sent")
}

// POST /api/otp/verify
func (h *OTPHandler) Verify(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req otpVerifyRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.otp.Verify(requestContext(c), req.Email, req.Code, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user":   user,
		"access": user.Access(),
	})
}
