package server

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fundraiseer/apiserver/config"
	"github.com/fundraiseer/apiserver/internal/cache"
	"github.com/fundraiseer/apiserver/internal/handlers"
	"github.com/fundraiseer/apiserver/internal/storage"
	"github.com/fundraiseer/apiserver/internal/validation"
	"github.com/fundraiseer/apiserver/types"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "password123"

type recordingNotifier struct {
	mu   sync.Mutex
	sent []types.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification types.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) last(typ string) (types.Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Type == typ {
			return n.sent[i], true
		}
	}
	return types.Notification{}, false
}

type testAPI struct {
	t        *testing.T
	handler  http.Handler
	services *Services
	notifier *recordingNotifier
	objects  *storage.Memory
}

func testConfig() config.Config {
	return config.Config{
		Env: "test",
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret",
			TokenTTL:         time.Hour,
			ResetTokenTTL:    10 * time.Minute,
			OTPTTL:           10 * time.Minute,
			ResetRequiresOTP: true,
		},
		RateLimit: config.RateLimitConfig{
			ContactMax:    2,
			ContactWindow: time.Hour,
			LoginMax:      100,
			LoginWindow:   time.Minute,
			ForgotMax:     100,
			ForgotWindow:  time.Minute,
			VerifyMax:     100,
			VerifyWindow:  time.Minute,
		},
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWithConfig(t, testConfig())
}

func newTestAPIWithConfig(t *testing.T, cfg config.Config) *testAPI {
	t.Helper()

	kv := cache.NewMemory()
	notifier := &recordingNotifier{}
	objects := storage.NewMemory("uploads")
	v, err := validation.New()
	require.NoError(t, err)

	svc := NewServices(NewMemoryBackend(), kv, notifier, cfg.Auth.OTPTTL)
	router := NewRouter(cfg, RouterDeps{
		Services:  svc,
		Storage:   storage.NewStorage(objects, "/uploads"),
		Validator: v,
		Counter:   kv,
	})
	return &testAPI{t: t, handler: router, services: svc, notifier: notifier, objects: objects}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) register(email, name string) (string, types.User) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/register", "", handlers.RegisterRequest{Email: email, Name: name, Password: testPassword})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[handlers.AuthResponse](a.t, rec)
	return resp.Token, resp.User
}

func (a *testAPI) admin(email string) (string, types.User) {
	a.t.Helper()
	_, err := a.services.Users.Create(context.Background(), email, "Admin", testPassword, types.RoleAdmin)
	require.NoError(a.t, err)
	return a.login(email, testPassword)
}

func (a *testAPI) login(email, password string) (string, types.User) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/login", "", handlers.LoginRequest{Email: email, Password: password})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[handlers.AuthResponse](a.t, rec)
	return resp.Token, resp.User
}

func (a *testAPI) createCampaign(token string, goal float64) types.CampaignView {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/campaigns/create", token, handlers.CampaignCreateRequest{
		Title:               "Community garden",
		Description:         "Raised beds and tools",
		Category:            "community",
		GoalAmount:          goal,
		Deadline:            time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
		FundUtilizationPlan: "Lumber, soil and seeds",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[handlers.CampaignResponse](a.t, rec).Campaign
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fundraiseer_http_requests_total")
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)
	token, user := api.register("Frank@Example.com", "Frank")
	assert.NotEmpty(t, token)
	assert.Equal(t, "frank@example.com", user.Email)
	assert.Equal(t, types.RoleUser, user.Role)

	rec := api.do(http.MethodPost, "/auth/register", "", handlers.RegisterRequest{Email: "frank@example.com", Name: "Frank", Password: testPassword})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "bad", "password": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decode[handlers.ErrorResponse](t, rec)
	assert.Equal(t, "validation failed", errResp.Message)
	assert.NotEmpty(t, errResp.Errors)
	assert.Empty(t, errResp.Error)

	rec = api.do(http.MethodPost, "/auth/login", "", handlers.LoginRequest{Email: "frank@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _ = api.login("frank@example.com", testPassword)
	rec = api.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[types.User](t, rec)
	assert.Equal(t, user.ID, me.ID)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = api.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = api.do(http.MethodGet, "/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCampaignLifecycle(t *testing.T) {
	api := newTestAPI(t)
	ownerToken, owner := api.register("owner@example.com", "Owner")
	donorToken, _ := api.register("donor@example.com", "Donor")
	adminToken, admin := api.admin("admin@example.com")

	campaign := api.createCampaign(ownerToken, 100)
	assert.Equal(t, types.CampaignPending, campaign.Status)
	assert.Equal(t, owner.ID, campaign.CreatorID)

	rec := api.do(http.MethodGet, "/campaigns", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[handlers.ListResponse[types.CampaignView]](t, rec).Total)

	rec = api.do(http.MethodGet, "/campaigns/"+campaign.ID, donorToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = api.do(http.MethodGet, "/campaigns/"+campaign.ID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodPost, "/campaigns/"+campaign.ID+"/donate", donorToken, handlers.DonationRequest{Amount: 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/admin/campaigns/pending", ownerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = api.do(http.MethodGet, "/admin/campaigns/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[handlers.ListResponse[types.CampaignView]](t, rec).Total)

	moderate := "/admin/campaigns/" + campaign.ID + "/moderate"
	rec = api.do(http.MethodPatch, moderate, adminToken, handlers.ModerationRequest{Status: types.CampaignRejected, Note: "no"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(http.MethodPatch, moderate, adminToken, handlers.ModerationRequest{Status: types.CampaignApproved})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moderated := decode[handlers.CampaignResponse](t, rec).Campaign
	assert.Equal(t, types.CampaignApproved, moderated.Status)
	assert.Equal(t, admin.ID, moderated.ModeratedBy)
	rec = api.do(http.MethodPatch, moderate, adminToken, handlers.ModerationRequest{Status: types.CampaignApproved})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/campaigns/"+campaign.ID+"/donate", ownerToken, handlers.DonationRequest{Amount: 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(http.MethodPost, "/campaigns/"+campaign.ID+"/donate", donorToken, handlers.DonationRequest{Amount: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(http.MethodPost, "/campaigns/"+campaign.ID+"/donate", "", handlers.DonationRequest{Amount: 10})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/campaigns/"+campaign.ID+"/donate", donorToken, handlers.DonationRequest{Amount: 90})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	donation := decode[handlers.DonationResponse](t, rec)
	assert.Equal(t, 90.0, donation.Campaign.RaisedAmount)
	assert.Equal(t, types.CampaignApproved, donation.Campaign.Status)

	rec = api.do(http.MethodPost, "/donations/donate", donorToken, handlers.DirectDonationRequest{CampaignID: campaign.ID, Amount: 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	donation = decode[handlers.DonationResponse](t, rec)
	assert.Equal(t, 100.0, donation.Campaign.RaisedAmount)
	assert.Equal(t, types.CampaignCompleted, donation.Campaign.Status)

	rec = api.do(http.MethodPost, "/campaigns/"+campaign.ID+"/donate", donorToken, handlers.DonationRequest{Amount: 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/campaigns?status=completed", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	completed := decode[handlers.ListResponse[types.CampaignView]](t, rec)
	require.Len(t, completed.Items, 1)
	assert.Equal(t, campaign.ID, completed.Items[0].ID)

	rec = api.do(http.MethodGet, "/dashboard/campaigns/"+campaign.ID+"/stats", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[types.CampaignStats](t, rec)
	assert.Equal(t, 2, stats.DonationCount)
	assert.Equal(t, 100.0, stats.TotalRaised)
	rec = api.do(http.MethodGet, "/dashboard/campaigns/"+campaign.ID+"/stats", donorToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/dashboard/donations", donorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.DonationView](t, rec), 2)

	rec = api.do(http.MethodPost, "/admin/campaigns/recalculate", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[types.ReconcileReport](t, rec)
	assert.Equal(t, 1, report.Checked)
	assert.Zero(t, report.Corrected)

	rec = api.do(http.MethodGet, "/admin/dashboard/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[types.DashboardStats](t, rec)
	assert.Equal(t, 3, dash.Users.Total)
	assert.Equal(t, 1, dash.Campaigns.Completed)
	assert.Equal(t, 100.0, dash.Donations.Amount)
}

func TestAdminCampaignSkipsModeration(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.admin("admin@example.com")

	campaign := api.createCampaign(adminToken, 250)
	assert.Equal(t, types.CampaignApproved, campaign.Status)

	rec := api.do(http.MethodGet, "/campaigns/"+campaign.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCampaignRejectsBadInput(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("owner@example.com", "Owner")

	rec := api.do(http.MethodPost, "/campaigns/create", token, map[string]any{"title": "Only a title"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := handlers.CampaignCreateRequest{
		Title:               "Bad date",
		Description:         "desc",
		Category:            "education",
		GoalAmount:          10,
		Deadline:            "next week",
		FundUtilizationPlan: "plan",
	}
	rec = api.do(http.MethodPost, "/campaigns/create", token, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "deadline", decode[handlers.ErrorResponse](t, rec).Errors[0].Field)

	req.Deadline = "2001-01-01"
	rec = api.do(http.MethodPost, "/campaigns/create", token, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req.Deadline = time.Now().AddDate(0, 1, 0).Format("2006-01-02")
	req.Category = "pets"
	rec = api.do(http.MethodPost, "/campaigns/create", token, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleChangeForcesPasswordReset(t *testing.T) {
	api := newTestAPI(t)
	adminToken, admin := api.admin("admin@example.com")
	memberToken, member := api.register("member@example.com", "Member")

	rec := api.do(http.MethodPatch, "/admin/users/"+admin.ID+"/role", adminToken, handlers.RoleUpdateRequest{Role: types.RoleUser})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPatch, "/admin/users/"+member.ID+"/role", memberToken, handlers.RoleUpdateRequest{Role: types.RoleAdmin})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPatch, "/admin/users/"+member.ID+"/role", adminToken, handlers.RoleUpdateRequest{Role: types.RoleAdmin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[handlers.UserResponse](t, rec).User.RequirePasswordReset)

	rec = api.do(http.MethodGet, "/auth/me", memberToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, decode[handlers.PasswordResetResponse](t, rec).RequirePasswordReset)

	rec = api.do(http.MethodPost, "/auth/login", "", handlers.LoginRequest{Email: member.Email, Password: testPassword})
	require.Equal(t, http.StatusForbidden, rec.Code)
	resetResp := decode[handlers.PasswordResetResponse](t, rec)
	assert.True(t, resetResp.RequirePasswordReset)
	assert.Equal(t, member.Email, resetResp.Email)
	assert.Equal(t, "/forgot-password", resetResp.RedirectTo)

	rec = api.do(http.MethodPost, "/auth/forgot-password", "", handlers.ForgotPasswordRequest{Email: member.Email})
	require.Equal(t, http.StatusOK, rec.Code)
	n, ok := api.notifier.last(types.NotificationPasswordResetOTP)
	require.True(t, ok)

	rec = api.do(http.MethodPost, "/auth/reset-password", "", handlers.ResetPasswordRequest{Email: member.Email, NewPassword: "brand-new-pass"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a reset token is required")

	rec = api.do(http.MethodPost, "/auth/verify-otp", "", handlers.VerifyOTPRequest{Email: member.Email, OTP: n.Data["otp"]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resetToken := decode[handlers.ResetTokenResponse](t, rec).ResetToken
	require.NotEmpty(t, resetToken)

	rec = api.do(http.MethodGet, "/auth/me", resetToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "reset tokens are not session tokens")

	rec = api.do(http.MethodPost, "/auth/reset-password", "", handlers.ResetPasswordRequest{Email: admin.Email, NewPassword: "brand-new-pass", ResetToken: resetToken})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "the token is bound to one email")

	rec = api.do(http.MethodPost, "/auth/reset-password", "", handlers.ResetPasswordRequest{Email: member.Email, NewPassword: "brand-new-pass", ResetToken: resetToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token, user := api.login(member.Email, "brand-new-pass")
	assert.Equal(t, types.RoleAdmin, user.Role)
	rec = api.do(http.MethodGet, "/admin/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[handlers.ListResponse[types.UserWithStats]](t, rec).Total)
}

func TestVerifyOTPIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.VerifyMax = 3
	api := newTestAPIWithConfig(t, cfg)
	_, member := api.register("member@example.com", "Member")

	rec := api.do(http.MethodPost, "/auth/forgot-password", "", handlers.ForgotPasswordRequest{Email: member.Email})
	require.Equal(t, http.StatusOK, rec.Code)
	n, ok := api.notifier.last(types.NotificationPasswordResetOTP)
	require.True(t, ok)
	wrong := "000000"
	if n.Data["otp"] == wrong {
		wrong = "111111"
	}

	for i := 0; i < 3; i++ {
		rec = api.do(http.MethodPost, "/auth/verify-otp", "", handlers.VerifyOTPRequest{Email: member.Email, OTP: wrong})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec = api.do(http.MethodPost, "/auth/verify-otp", "", handlers.VerifyOTPRequest{Email: member.Email, OTP: n.Data["otp"]})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	api := newTestAPI(t)
	api.register("known@example.com", "Known")

	known := api.do(http.MethodPost, "/auth/forgot-password", "", handlers.ForgotPasswordRequest{Email: "known@example.com"})
	unknown := api.do(http.MethodPost, "/auth/forgot-password", "", handlers.ForgotPasswordRequest{Email: "ghost@example.com"})
	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestCreateAdmin(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.admin("admin@example.com")
	memberToken, _ := api.register("member@example.com", "Member")

	req := handlers.RegisterRequest{Email: "second@example.com", Name: "Second", Password: testPassword}
	rec := api.do(http.MethodPost, "/admin/create-admin", memberToken, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, "/admin/create-admin", adminToken, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, types.RoleAdmin, decode[handlers.UserResponse](t, rec).User.Role)

	_, user := api.login("second@example.com", testPassword)
	assert.True(t, user.IsAdmin())
}

func TestComments(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.admin("admin@example.com")
	readerToken, _ := api.register("reader@example.com", "Reader")
	otherToken, _ := api.register("other@example.com", "Other")
	campaign := api.createCampaign(adminToken, 100)

	path := "/campaigns/" + campaign.ID + "/comments"
	rec := api.do(http.MethodPost, path, readerToken, handlers.CommentRequest{Text: "Count me in"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	comment := decode[types.CommentView](t, rec)

	rec = api.do(http.MethodPost, path, "", handlers.CommentRequest{Text: "anonymous"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.CommentView](t, rec), 1)

	rec = api.do(http.MethodDelete, "/campaigns/comments/"+comment.ID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = api.do(http.MethodDelete, "/campaigns/comments/"+comment.ID, readerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(http.MethodDelete, "/campaigns/comments/"+comment.ID, readerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommentsOfPendingCampaignAreHidden(t *testing.T) {
	api := newTestAPI(t)
	ownerToken, _ := api.register("owner@example.com", "Owner")
	readerToken, _ := api.register("reader@example.com", "Reader")
	campaign := api.createCampaign(ownerToken, 100)
	require.Equal(t, types.CampaignPending, campaign.Status)

	path := "/campaigns/" + campaign.ID + "/comments"
	rec := api.do(http.MethodPost, path, ownerToken, handlers.CommentRequest{Text: "waiting on review"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = api.do(http.MethodGet, path, readerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, path, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.CommentView](t, rec), 1)
}

func TestContactTriage(t *testing.T) {
	api := newTestAPI(t)
	adminToken, admin := api.admin("admin@example.com")
	memberToken, member := api.register("member@example.com", "Member")

	rec := api.do(http.MethodPost, "/contact", memberToken, handlers.ContactRequest{
		Name: "Member", Email: member.Email, Subject: "Refund", Message: "Please refund my donation",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	contactID := decode[handlers.ContactResponse](t, rec).ID

	rec = api.do(http.MethodGet, "/contact/admin", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodGet, "/contact/admin?status=unread", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[handlers.ListResponse[types.Contact]](t, rec).Total)

	resolved := types.ContactResolved
	rec = api.do(http.MethodPut, "/contact/admin/"+contactID, adminToken, handlers.ContactUpdateRequest{Status: &resolved})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	response := "Refund issued"
	rec = api.do(http.MethodPut, "/contact/admin/"+contactID, adminToken, handlers.ContactUpdateRequest{Status: &resolved, AdminResponse: &response})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[types.Contact](t, rec)
	assert.Equal(t, types.ContactResolved, updated.Status)
	assert.Equal(t, admin.ID, updated.RespondedBy)
	assert.NotNil(t, updated.RespondedAt)

	inProgress := types.ContactInProgress
	rec = api.do(http.MethodPut, "/contact/admin/"+contactID, adminToken, handlers.ContactUpdateRequest{Status: &inProgress})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/contact/user/messages", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := decode[handlers.UserMessagesResponse](t, rec)
	require.Len(t, msgs.Items, 1)
	assert.Equal(t, "Refund issued", msgs.Items[0].AdminResponse)
	assert.False(t, msgs.HasUnread)

	rec = api.do(http.MethodGet, "/contact/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.ContactStats{Total: 1, Resolved: 1}, decode[types.ContactStats](t, rec))
}

func TestContactRateLimit(t *testing.T) {
	api := newTestAPI(t)
	msg := handlers.ContactRequest{Name: "Anon", Email: "anon@example.com", Subject: "Hi", Message: "Hello there"}

	for i := 0; i < 2; i++ {
		rec := api.do(http.MethodPost, "/contact", "", msg)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := api.do(http.MethodPost, "/contact", "", msg)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(`{"name":"Anon","email":"anon@example.com","subject":"Hi","message":"Hello"}`))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		spoofed := httptest.NewRecorder()
		api.handler.ServeHTTP(spoofed, req)
		assert.Equal(t, http.StatusTooManyRequests, spoofed.Code, "forwarding headers are ignored without a trusted proxy")
	}

	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(`{"name":"Anon","email":"anon@example.com","subject":"Hi","message":"Hello"}`))
	req.RemoteAddr = "203.0.113.9:4000"
	other := httptest.NewRecorder()
	api.handler.ServeHTTP(other, req)
	assert.Equal(t, http.StatusCreated, other.Code, "limits are kept per client address")
}

func TestContactRateLimitBehindProxy(t *testing.T) {
	cfg := testConfig()
	cfg.TrustProxy = true
	api := newTestAPIWithConfig(t, cfg)

	send := func(forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(`{"name":"Anon","email":"anon@example.com","subject":"Hi","message":"Hello"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusCreated, send("198.51.100.7"))
	assert.Equal(t, http.StatusCreated, send("198.51.100.7"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.7"))
	assert.Equal(t, http.StatusCreated, send("198.51.100.8"))
}

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func (a *testAPI) uploadAvatar(token string, data []byte) *httptest.ResponseRecorder {
	a.t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("avatar", "me.png")
	require.NoError(a.t, err)
	_, err = part.Write(data)
	require.NoError(a.t, err)
	require.NoError(a.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/avatar", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func TestAvatarUpload(t *testing.T) {
	api := newTestAPI(t)
	token, user := api.register("pic@example.com", "Pic")

	rec := api.uploadAvatar(token, []byte("%PDF-1.4 not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.uploadAvatar(token, pngHeader)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[types.User](t, rec).AvatarURL
	assert.True(t, strings.HasPrefix(first, "/uploads/avatars/"+user.ID+"/"), first)

	rec = api.do(http.MethodGet, first, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, storage.CacheControl, rec.Header().Get("Cache-Control"))
	assert.Equal(t, pngHeader, rec.Body.Bytes())

	rec = api.uploadAvatar(token, pngHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[types.User](t, rec).AvatarURL
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, api.objects.Len(), "the replaced avatar is removed")

	rec = api.do(http.MethodGet, first, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(http.MethodDelete, "/users/avatar", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[types.User](t, rec).AvatarURL)
	assert.Zero(t, api.objects.Len())
}

func TestProfileUpdate(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("gina@example.com", "Gina")

	rec := api.do(http.MethodPut, "/users/profile", token, handlers.ProfileUpdateRequest{Name: "Gina G"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Gina G", decode[types.User](t, rec).Name)

	rec = api.do(http.MethodPut, "/users/profile", token, handlers.ProfileUpdateRequest{CurrentPassword: "wrong-pass", NewPassword: "another-pass"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/users/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gina G", decode[types.User](t, rec).Name)
}

func TestAdminRoutesRequireAuthentication(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("member@example.com", "Member")

	for _, path := range []string{"/admin/users", "/admin/campaigns", "/admin/dashboard/stats", "/contact/admin"} {
		rec := api.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		rec = api.do(http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}
