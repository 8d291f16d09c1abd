package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/config"
	"libraryhub/internal/core/services"
	"libraryhub/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiFixture struct {
	app   *fiber.App
	db    *gorm.DB
	svc   *services.Container
	clock *testutil.Clock
}

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Error   string                 `json:"error"`
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	db := testutil.NewDB(t)
	clock := &testutil.Clock{Now: testutil.T0}
	cfg := &config.Config{
		AppMode: "dev",
		JWT: config.JWTConfig{
			Secret:           "access-secret",
			RefreshSecret:    "refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
		Lending: config.LendingConfig{
			LoanPeriodDays: 15,
			FineRatePerDay: decimal.NewFromInt(5),
			FineCacheTTL:   time.Hour,
			DueSoonWindow:  24 * time.Hour,
		},
		Scheduler: config.SchedulerConfig{SweepTimeout: time.Minute},
	}

	svc := services.NewContainer(db, cfg, services.LogNotifier{}, clock.Func())
	app := NewApp(cfg)
	Setup(app, cfg, svc, func() error { return nil })
	return &apiFixture{app: app, db: db, svc: svc, clock: clock}
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (f *apiFixture) adminToken(t *testing.T) (*models.User, string) {
	t.Helper()
	admin := testutil.CreateAdmin(t, f.db)
	token, err := f.svc.Auth.MintAccessToken(context.Background(), admin.Username)
	require.NoError(t, err)
	return admin, token
}

func (f *apiFixture) memberToken(t *testing.T, username string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"email":"%s@library.test","name":"Reader","password":"correct horse"}`, username, username)
	status, env := f.do(t, http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, status, env.Error)
	token, _ := env.Data["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHealthAndRoot(t *testing.T) {
	f := newAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err = f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthGuards(t *testing.T) {
	f := newAPI(t)
	member := f.memberToken(t, "ann")

	status, _ := f.do(t, http.MethodGet, "/api/v1/books", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodGet, "/api/v1/books", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodGet, "/api/v1/admin/dashboard", member, "")
	assert.Equal(t, http.StatusForbidden, status)

	status, env := f.do(t, http.MethodGet, "/api/v1/auth/me", member, "")
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, env.Data["user"])

	status, _ = f.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"identifier":"ann","password":"wrong horse"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRequestApprovalFlow(t *testing.T) {
	f := newAPI(t)
	_, admin := f.adminToken(t)
	member := f.memberToken(t, "ann")
	book := testutil.CreateBook(t, f.db, "Dune", 1)

	status, _ := f.do(t, http.MethodPost, "/api/v1/requests", member, `{"book_id":999}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, env := f.do(t, http.MethodPost, "/api/v1/requests", member, fmt.Sprintf(`{"book_id":%d}`, book.ID))
	require.Equal(t, http.StatusCreated, status, env.Error)
	requestID := uint(env.Data["id"].(float64))

	status, _ = f.do(t, http.MethodPost, "/api/v1/requests", member, fmt.Sprintf(`{"book_id":%d}`, book.ID))
	assert.Equal(t, http.StatusBadRequest, status, "duplicate pending request")

	path := fmt.Sprintf("/api/v1/admin/requests/%d/status", requestID)
	status, _ = f.do(t, http.MethodPut, path, admin, `{"status":"pending"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = f.do(t, http.MethodPut, path, admin, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, "approved", env.Data["status"])

	status, _ = f.do(t, http.MethodPut, path, admin, `{"status":"approved"}`)
	assert.Equal(t, http.StatusConflict, status, "already resolved")

	status, _ = f.do(t, http.MethodPut, "/api/v1/admin/requests/999/status", admin, `{"status":"rejected"}`)
	assert.Equal(t, http.StatusNotFound, status)

	assert.Equal(t, 0, testutil.ReloadBook(t, f.db, book.ID).AvailableCopies)
}

func TestReturnAndSettleFine(t *testing.T) {
	f := newAPI(t)
	_, admin := f.adminToken(t)
	member := f.memberToken(t, "ann")
	book := testutil.CreateBook(t, f.db, "Dune", 1)

	_, env := f.do(t, http.MethodPost, "/api/v1/requests", member, fmt.Sprintf(`{"book_id":%d}`, book.ID))
	requestID := uint(env.Data["id"].(float64))
	_, env = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/requests/%d/status", requestID), admin, `{"status":"approved"}`)
	issueID := uint(env.Data["issue_id"].(float64))

	f.clock.Now = testutil.T0.Add(20 * 24 * time.Hour)
	status, env := f.do(t, http.MethodPost, "/api/v1/admin/fines/calculate-overdue", admin, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, env.Data["updated_count"])
	assert.EqualValues(t, 1, env.Data["email_sent_count"])

	status, env = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/issues/%d/fine", issueID), member, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 5, env.Data["overdue_days"])

	status, env = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/issues/%d/return", issueID), admin, `{"damage_type":"minor"}`)
	require.Equal(t, http.StatusOK, status, env.Error)
	entry := env.Data["fine_entry"].(map[string]interface{})
	fineID := uint(entry["id"].(float64))

	status, _ = f.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/issues/%d/return", issueID), admin, "")
	assert.Equal(t, http.StatusConflict, status, "already returned")

	payPath := fmt.Sprintf("/api/v1/admin/fines/%d/pay", fineID)
	status, _ = f.do(t, http.MethodPut, payPath, admin, `{"payment_method":"cheque"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = f.do(t, http.MethodPut, payPath, admin, `{"payment_method":"online"}`)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, "paid", env.Data["status"])

	status, _ = f.do(t, http.MethodPut, payPath, admin, "")
	assert.Equal(t, http.StatusBadRequest, status, "already settled")

	status, _ = f.do(t, http.MethodPut, "/api/v1/admin/fines/999/waive", admin, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDonationEndpoints(t *testing.T) {
	f := newAPI(t)
	_, admin := f.adminToken(t)

	status, _ := f.do(t, http.MethodPost, "/api/v1/donations", "", `{"donor_name":"Ravi","donor_email":"ravi@example.com","donor_phone":"123"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	body := `{"donor_name":"Ravi","donor_email":"ravi@example.com","donor_phone":"9876543210",
		"book_title":"Malgudi Days","author":"R. K. Narayan","condition":"good","quantity":2}`
	status, env := f.do(t, http.MethodPost, "/api/v1/donations", "", body)
	require.Equal(t, http.StatusCreated, status, env.Error)
	donationID := uint(env.Data["id"].(float64))

	status, _ = f.do(t, http.MethodGet, "/api/v1/admin/donations?status=lost", admin, "")
	assert.Equal(t, http.StatusBadRequest, status)

	path := fmt.Sprintf("/api/v1/admin/donations/%d/status", donationID)
	status, _ = f.do(t, http.MethodPut, path, admin, `{"status":"collected"}`)
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodPut, path, admin, `{"status":"approved"}`)
	assert.Equal(t, http.StatusBadRequest, status, "collected is terminal")

	status, _ = f.do(t, http.MethodGet, "/api/v1/admin/donations/999", admin, "")
	assert.Equal(t, http.StatusNotFound, status)
}
