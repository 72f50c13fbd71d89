package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/workpass/internal/middleware"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/internal/services"
	"github.com/charlesng35/workpass/pkg/response"
)

// ProfileHandler serves the caller's own identity, access gate and
// verification requests.
type ProfileHandler struct {
	users     *services.UserService
	companies *services.CompanyService
	manual    *services.ManualVerificationService
}

func NewProfileHandler(users *services.UserService, companies *services.CompanyService, manual *services.ManualVerificationService) *ProfileHandler {
	return &ProfileHandler{users: users, companies: companies, manual: manual}
}

// GET /api/me
func (h *ProfileHandler) Me(c *gin.Context) {
	user, ok := h.load(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user":   user,
		"access": user.Access(),
	})
}

// GET /api/me/access
func (h *ProfileHandler) Access(c *gin.Context) {
	user, ok := h.load(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, user.Access())
}

// POST /api/me/onboarding
func (h *ProfileHandler) CompleteOnboarding(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.OnboardingInput
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.CompleteOnboarding(requestContext(c), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user":   user,
		"access": user.Access(),
	})
}

// GET /api/me/company
// Requires RequireVerifiedMember, which stores the loaded user.
func (h *ProfileHandler) Company(c *gin.Context) {
	value, _ := c.Get(middleware.CtxUserKey)
	user, ok := value.(*models.User)
	if !ok || user.CompanyID == nil {
		response.Error(c, services.ErrCompanyNotFound)
		return
	}

	ctx := requestContext(c)
	company, err := h.companies.Get(ctx, *user.CompanyID)
	if err != nil {
		writeError(c, err)
		return
	}
	members, err := h.companies.MemberCount(ctx, company.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, services.CompanySummary{Company: *company, MemberCount: members})
}

// POST /api/verification/requests
func (h *ProfileHandler) SubmitVerification(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.ManualRequestInput
	if !bindAndValidate(c, &req) {
		return
	}

	id, err := h.manual.Submit(requestContext(c), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"id": id, "status": models.ReviewPending})
}

// GET /api/verification/requests
func (h *ProfileHandler) ListVerificationRequests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	requests, err := h.manual.ListForUser(requestContext(c), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, requests)
}

func (h *ProfileHandler) load(c *gin.Context) (*models.User, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return user, true
}
