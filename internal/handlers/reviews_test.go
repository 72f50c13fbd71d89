package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/workpass/internal/handlers/testutil"
	"github.com/charlesng35/workpass/internal/models"
	"github.com/charlesng35/workpass/internal/services"
)

type reviewRef struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func TestManualReview_SubmitAndApprove(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin("root@workpass.io", "admin-password")
	adminToken := env.Login(admin.Email, "admin-password").AccessToken
	member := env.CreateMember("ana@gmail.com", "correct-horse", testutil.MemberOptions{})
	token := env.Login(member.Email, "correct-horse").AccessToken

	noProof := env.Request(http.MethodPost, "/api/verification/requests", map[string]string{
		"corporate_email": "ana@globex.com",
	}, token)
	require.Equal(t, http.StatusBadRequest, noProof.Code)
	require.Equal(t, "PROOF_REQUIRED", testutil.DecodeResponse(t, noProof).Error.Code)

	submit := env.Request(http.MethodPost, "/api/verification/requests", map[string]string{
		"corporate_email": "ana@globex.com",
		"linkedin_url":    "https://www.linkedin.com/in/ana",
	}, token)
	require.Equal(t, http.StatusCreated, submit.Code, submit.Body.String())
	var ref reviewRef
	testutil.DecodeInto(t, testutil.DecodeResponse(t, submit).Data, &ref)
	require.NotEmpty(t, ref.ID)
	require.Equal(t, string(models.ReviewPending), ref.Status)

	dup := env.Request(http.MethodPost, "/api/verification/requests", map[string]string{
		"corporate_email": "ana@globex.com",
		"linkedin_url":    "https://www.linkedin.com/in/ana",
	}, token)
	require.Equal(t, http.StatusConflict, dup.Code)
	require.Equal(t, "REQUEST_PENDING", testutil.DecodeResponse(t, dup).Error.Code)

	mine := env.Request(http.MethodGet, "/api/verification/requests", nil, token)
	require.Equal(t, http.StatusOK, mine.Code)
	var own []reviewRef
	testutil.DecodeInto(t, testutil.DecodeResponse(t, mine).Data, &own)
	require.Len(t, own, 1)

	forbidden := env.Request(http.MethodGet, "/api/admin/verification/requests", nil, token)
	require.Equal(t, http.StatusForbidden, forbidden.Code)

	queue := env.Request(http.MethodGet, "/api/admin/verification/requests?status=pending", nil, adminToken)
	require.Equal(t, http.StatusOK, queue.Code, queue.Body.String())
	queueResp := testutil.DecodeResponse(t, queue)
	require.NotNil(t, queueResp.Meta)
	require.Equal(t, 1, queueResp.Meta.Total)

	bad := env.Request(http.MethodGet, "/api/admin/verification/requests?status=maybe", nil, adminToken)
	require.Equal(t, http.StatusBadRequest, bad.Code)

	approve := env.Request(http.MethodPost, "/api/admin/verification/requests/"+ref.ID+"/approve",
		map[string]string{"notes": "confirmed on LinkedIn"}, adminToken)
	require.Equal(t, http.StatusOK, approve.Code, approve.Body.String())
	require.Equal(t, "ana@gmail.com", env.Notifier.Last(t, services.NotifyManualApproved).To)

	again := env.Request(http.MethodPost, "/api/admin/verification/requests/"+ref.ID+"/reject", nil, adminToken)
	require.Equal(t, http.StatusConflict, again.Code)
	require.Equal(t, "ALREADY_TERMINAL", testutil.DecodeResponse(t, again).Error.Code)

	access := env.Request(http.MethodGet, "/api/me/access", nil, token)
	require.Equal(t, http.StatusOK, access.Code)
	var state testutil.AccessPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, access).Data, &state)
	require.False(t, state.NeedsVerification)
	require.True(t, state.NeedsOnboarding)
	require.False(t, state.CanBrowseFeed)

	gated := env.Request(http.MethodGet, "/api/me/company", nil, token)
	require.Equal(t, http.StatusForbidden, gated.Code)
	require.Equal(t, "VERIFICATION_REQUIRED", testutil.DecodeResponse(t, gated).Error.Code)

	onboard := env.Request(http.MethodPost, "/api/me/onboarding", map[string]string{"city": "Lisbon"}, token)
	require.Equal(t, http.StatusOK, onboard.Code, onboard.Body.String())

	company := env.Request(http.MethodGet, "/api/me/company", nil, token)
	require.Equal(t, http.StatusOK, company.Code, company.Body.String())
	var summary struct {
		Domain      string `json:"domain"`
		Name        string `json:"name"`
		MemberCount int64  `json:"member_count"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, company).Data, &summary)
	require.Equal(t, "globex.com", summary.Domain)
	require.Equal(t, "Globex", summary.Name)
	require.EqualValues(t, 1, summary.MemberCount)
}

func TestManualReview_Reject(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin("root@workpass.io", "admin-password")
	adminToken := env.Login(admin.Email, "admin-password").AccessToken
	member := env.CreateMember("ana@gmail.com", "correct-horse", testutil.MemberOptions{})
	token := env.Login(member.Email, "correct-horse").AccessToken

	submit := env.Request(http.MethodPost, "/api/verification/requests", map[string]string{
		"corporate_email": "ana@globex.com",
		"proof_document":  "uploads/ana-badge.png",
	}, token)
	require.Equal(t, http.StatusCreated, submit.Code, submit.Body.String())
	var ref reviewRef
	testutil.DecodeInto(t, testutil.DecodeResponse(t, submit).Data, &ref)

	reject := env.Request(http.MethodPost, "/api/admin/verification/requests/"+ref.ID+"/reject",
		map[string]string{"notes": "badge unreadable"}, adminToken)
	require.Equal(t, http.StatusOK, reject.Code, reject.Body.String())
	require.Equal(t, 1, env.Notifier.Count(services.NotifyManualRejected))

	get := env.Request(http.MethodGet, "/api/admin/verification/requests/"+ref.ID, nil, adminToken)
	require.Equal(t, http.StatusOK, get.Code)
	var stored reviewRef
	testutil.DecodeInto(t, testutil.DecodeResponse(t, get).Data, &stored)
	require.Equal(t, string(models.ReviewRejected), stored.Status)

	resubmit := env.Request(http.MethodPost, "/api/verification/requests", map[string]string{
		"corporate_email": "ana@globex.com",
		"linkedin_url":    "https://linkedin.com/in/ana",
	}, token)
	require.Equal(t, http.StatusCreated, resubmit.Code, resubmit.Body.String())

	missing := env.Request(http.MethodGet, "/api/admin/verification/requests/does-not-exist", nil, adminToken)
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestWaitlist_SubmitAndApprove(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin("root@workpass.io", "admin-password")
	adminToken := env.Login(admin.Email, "admin-password").AccessToken

	start := env.Request(http.MethodPost, "/api/auth/signup", map[string]string{
		"email":      "max@initech.com",
		"password":   "correct-horse",
		"first_name": "Max",
	}, "")
	require.Equal(t, http.StatusAccepted, start.Code, start.Body.String())

	submit := env.Request(http.MethodPost, "/api/waitlist", map[string]string{
		"corporate_email": "max@initech.com",
		"personal_email":  "max@gmail.com",
		"city":            "Austin",
	}, "")
	require.Equal(t, http.StatusCreated, submit.Code, submit.Body.String())
	require.Equal(t, "max@gmail.com", env.Notifier.Last(t, services.NotifyWaitlistReceived).To)
	var ref reviewRef
	testutil.DecodeInto(t, testutil.DecodeResponse(t, submit).Data, &ref)

	dup := env.Request(http.MethodPost, "/api/waitlist", map[string]string{
		"corporate_email": "max@initech.com",
		"personal_email":  "max@gmail.com",
	}, "")
	require.Equal(t, http.StatusConflict, dup.Code)
	require.Equal(t, "WAITLIST_PENDING", testutil.DecodeResponse(t, dup).Error.Code)

	list := env.Request(http.MethodGet, "/api/admin/waitlist", nil, adminToken)
	require.Equal(t, http.StatusOK, list.Code)
	require.Equal(t, 1, testutil.DecodeResponse(t, list).Meta.Total)

	approve := env.Request(http.MethodPost, "/api/admin/waitlist/"+ref.ID+"/approve", nil, adminToken)
	require.Equal(t, http.StatusOK, approve.Code, approve.Body.String())
	var approved struct {
		Status string               `json:"status"`
		User   testutil.UserPayload `json:"user"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, approve).Data, &approved)
	require.Equal(t, string(models.ReviewApproved), approved.Status)
	require.True(t, approved.User.IsVerified)
	require.True(t, approved.User.Onboarded)
	require.Equal(t, string(models.VerificationManual), approved.User.VerificationMethod)
	require.Equal(t, "max@gmail.com", env.Notifier.Last(t, services.NotifyWaitlistApproved).To)

	session := env.Login("max@initech.com", "correct-horse")
	require.True(t, session.Access.CanBrowseFeed)
}

func TestWaitlist_ApproveWithoutIntentAndReject(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := env.CreateAdmin("root@workpass.io", "admin-password")
	adminToken := env.Login(admin.Email, "admin-password").AccessToken

	submit := env.Request(http.MethodPost, "/api/waitlist", map[string]string{
		"corporate_email": "max@initech.com",
		"personal_email":  "max@gmail.com",
	}, "")
	require.Equal(t, http.StatusCreated, submit.Code, submit.Body.String())
	var ref reviewRef
	testutil.DecodeInto(t, testutil.DecodeResponse(t, submit).Data, &ref)

	approve := env.Request(http.MethodPost, "/api/admin/waitlist/"+ref.ID+"/approve", nil, adminToken)
	require.Equal(t, http.StatusConflict, approve.Code, approve.Body.String())
	require.Equal(t, "NO_SIGNUP_INTENT", testutil.DecodeResponse(t, approve).Error.Code)

	get := env.Request(http.MethodGet, "/api/admin/waitlist/"+ref.ID, nil, adminToken)
	require.Equal(t, http.StatusOK, get.Code)
	var stored reviewRef
	testutil.DecodeInto(t, testutil.DecodeResponse(t, get).Data, &stored)
	require.Equal(t, string(models.ReviewPending), stored.Status)

	reject := env.Request(http.MethodPost, "/api/admin/waitlist/"+ref.ID+"/reject",
		map[string]string{"notes": "could not confirm employment"}, adminToken)
	require.Equal(t, http.StatusOK, reject.Code, reject.Body.String())
	require.Equal(t, 1, env.Notifier.Count(services.NotifyWaitlistRejected))

	var users int64
	require.NoError(t, env.DB.Model(&models.User{}).Where("email = ?", "max@initech.com").Count(&users).Error)
	require.Zero(t, users)
}

func TestWaitlist_RejectsPublicCorporateEmail(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/waitlist", map[string]string{
		"corporate_email": "max@yahoo.com",
		"personal_email":  "max@gmail.com",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "NOT_CORPORATE_EMAIL", testutil.DecodeResponse(t, w).Error.Code)
}
