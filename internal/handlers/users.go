package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/workpass/internal/services"
	"github.com/charlesng35/workpass/pkg/response"
)

// UserHandler serves admin user management.
type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// GET /api/admin/users
func (h *UserHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 50)

	users, total, err := h.service.List(requestContext(c), services.ListUsersOptions{
		Page:      page,
		PageSize:  per,
		Query:     strings.TrimSpace(c.Query("q")),
		Verified:  parseBoolQuery(c, "verified"),
		CompanyID: strings.TrimSpace(c.Query("company_id")),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, users, pageMeta(page, per, total))
}

// GET /api/admin/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user":   user,
		"access": user.Access(),
	})
}

// PATCH /api/admin/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var patch services.AdminUserPatch
	if !bindAndValidate(c, &patch) {
		return
	}

	user, err := h.service.AdminUpdate(requestContext(c), adminID, c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"user":   user,
		"access": user.Access(),
	})
}

// DELETE /api/admin/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), adminID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// CompanyHandler lists resolved companies for admins.
type CompanyHandler struct {
	companies *services.CompanyService
}

func NewCompanyHandler(companies *services.CompanyService) *CompanyHandler {
	return &CompanyHandler{companies: companies}
}

// GET /api/admin/companies
func (h *CompanyHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 50)

	companies, total, err := h.companies.List(requestContext(c), page, per)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, companies, pageMeta(page, per, total))
}
