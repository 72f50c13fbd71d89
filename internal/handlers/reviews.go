package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/internal/services"
	"github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/response"
)

type reviewDecisionRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=2000"`
}

// bindReviewDecision accepts an empty body as a decision without notes.
func bindReviewDecision(c *gin.Context) (string, bool) {
	var req reviewDecisionRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if !bindAndValidate(c, &req) {
		return "", false
	}
	return strings.TrimSpace(req.Notes), true
}

func reviewListOptions(c *gin.Context) (services.ReviewListOptions, bool) {
	opts := services.ReviewListOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 50),
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.ReviewStatus(strings.ToLower(raw))
		if !status.Valid() {
			response.Error(c, errors.NewBadRequest("status must be pending, approved or rejected"))
			return opts, false
		}
		opts.Status = status
	}
	return opts, true
}

// ManualReviewHandler exposes the admin queue for manual verification requests.
type ManualReviewHandler struct {
	manual *services.ManualVerificationService
}

func NewManualReviewHandler(manual *services.ManualVerificationService) *ManualReviewHandler {
	return &ManualReviewHandler{manual: manual}
}

// GET /api/admin/verification/requests
func (h *ManualReviewHandler) List(c *gin.Context) {
	opts, ok := reviewListOptions(c)
	if !ok {
		return
	}

	requests, total, err := h.manual.List(requestContext(c), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, requests, pageMeta(opts.Page, opts.PageSize, total))
}

// GET /api/admin/verification/requests/:id
func (h *ManualReviewHandler) Get(c *gin.Context) {
	request, err := h.manual.Get(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, request)
}

// POST /api/admin/verification/requests/:id/approve
func (h *ManualReviewHandler) Approve(c *gin.Context) {
	h.decide(c, models.ReviewApproved)
}

// POST /api/admin/verification/requests/:id/reject
func (h *ManualReviewHandler) Reject(c *gin.Context) {
	h.decide(c, models.ReviewRejected)
}

func (h *ManualReviewHandler) decide(c *gin.Context, status models.ReviewStatus) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	notes, ok := bindReviewDecision(c)
	if !ok {
		return
	}

	id := c.Param("id")
	var err error
	if status == models.ReviewApproved {
		err = h.manual.Approve(requestContext(c), adminID, id, notes)
	} else {
		err = h.manual.Reject(requestContext(c), adminID, id, notes)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "status": status})
}

// WaitlistHandler accepts public applications and serves the admin queue.
type WaitlistHandler struct {
	waitlist *services.WaitlistService
}

func NewWaitlistHandler(waitlist *services.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist}
}

// POST /api/waitlist
func (h *WaitlistHandler) Submit(c *gin.Context) {
	var req services.WaitlistInput
	if !bindAndValidate(c, &req) {
		return
	}

	id, err := h.waitlist.Submit(requestContext(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"id": id, "status": models.ReviewPending})
}

// GET /api/admin/waitlist
func (h *WaitlistHandler) List(c *gin.Context) {
	opts, ok := reviewListOptions(c)
	if !ok {
		return
	}

	entries, total, err := h.waitlist.List(requestContext(c), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, entries, pageMeta(opts.Page, opts.PageSize, total))
}

// GET /api/admin/waitlist/:id
func (h *WaitlistHandler) Get(c *gin.Context) {
	entry, err := h.waitlist.Get(requestContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, entry)
}

// POST /api/admin/waitlist/:id/approve
func (h *WaitlistHandler) Approve(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	notes, ok := bindReviewDecision(c)
	if !ok {
		return
	}

	id := c.Param("id")
	user, err := h.waitlist.Approve(requestContext(c), adminID, id, notes)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "status": models.ReviewApproved, "user": user})
}

// POST /api/admin/waitlist/:id/reject
func (h *WaitlistHandler) Reject(c *gin.Context) {
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}
	notes, ok := bindReviewDecision(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := h.waitlist.Reject(requestContext(c), adminID, id, notes); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "status": models.ReviewRejected})
}
