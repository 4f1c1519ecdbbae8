package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/warehouse-console/internal/auth"
	"github.com/odyssey-erp/warehouse-console/internal/authz"
	"github.com/odyssey-erp/warehouse-console/internal/shared"
	"github.com/odyssey-erp/warehouse-console/internal/view"
	_ "github.com/odyssey-erp/warehouse-console/testing"
)

type stubRepo struct {
	account  *auth.Account
	sessions map[string]int64
	removed  []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if s.account == nil || !strings.EqualFold(s.account.Email, email) {
		return nil, shared.ErrNotFound
	}
	return s.account, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.removed = append(s.removed, id)
	return nil
}

func (s *stubRepo) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func managerAccount(t *testing.T) *auth.Account {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.Account{
		ID:           7,
		Name:         "Maya",
		Email:        "maya@warehouse.test",
		PasswordHash: string(hashed),
		IsActive:     true,
		Role:         "manager",
		Permissions: map[string]authz.GrantInput{
			"products": {Allowed: true, Actions: []string{"read", "create", "update"}},
		},
	}
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine(authz.DefaultRoutes(), csrfManager)
	require.NoError(t, err)
	handler := auth.NewHandler(nil, auth.NewService(repo), templates, sessionManager, csrfManager)
	return handler, sessionManager
}

// serve runs h against req inside a session loaded from the request cookie
// and commits it afterwards, the way the middleware stack does.
func serve(t *testing.T, sm *shared.SessionManager, h http.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	h(res, req)
	require.NoError(t, sm.Commit(ctx, res, req, sess))
	return res, sess
}

func postLogin(sm *shared.SessionManager, sessionID, email, password string) *http.Request {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sessionID})
	}
	return req
}

func TestLoginPage(t *testing.T) {
	handler, sm := newAuthHandler(t, &stubRepo{})

	res, sess := serve(t, sm, handler.ShowLoginForTest, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginPageRedirectsSignedInUser(t *testing.T) {
	repo := &stubRepo{account: managerAccount(t)}
	handler, sm := newAuthHandler(t, repo)

	_, sess := serve(t, sm, handler.HandleLoginForTest, postLogin(sm, "", "maya@warehouse.test", "correctpass"))

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	res, _ := serve(t, sm, handler.ShowLoginForTest, req)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler, sm := newAuthHandler(t, &stubRepo{account: managerAccount(t)})

	res, sess := serve(t, sm, handler.HandleLoginForTest, postLogin(sm, "", "maya@warehouse.test", "wrongpassword"))

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid email or password")
	assert.Nil(t, sess.Identity())
}

func TestLoginValidationErrors(t *testing.T) {
	handler, sm := newAuthHandler(t, &stubRepo{})

	res, _ := serve(t, sm, handler.HandleLoginForTest, postLogin(sm, "", "not-an-email", "short"))

	assert.Equal(t, http.StatusBadRequest, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Enter a valid email address")
	assert.Contains(t, body, "Password must be at least 8 characters")
}

func TestLoginStoresIdentityAndRenewsSession(t *testing.T) {
	repo := &stubRepo{account: managerAccount(t)}
	handler, sm := newAuthHandler(t, repo)

	_, anon := serve(t, sm, handler.ShowLoginForTest, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	anonID := anon.ID
	anonToken := anon.Get(shared.CSRFSessionKey)

	res, sess := serve(t, sm, handler.HandleLoginForTest, postLogin(sm, anonID, "maya@warehouse.test", "correctpass"))

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
	assert.NotEqual(t, anonID, sess.ID)
	assert.NotEqual(t, anonToken, sess.Get(shared.CSRFSessionKey))
	assert.Equal(t, int64(7), repo.sessions[sess.ID])

	id := sess.Identity()
	require.NotNil(t, id)
	assert.Equal(t, authz.RoleManager, id.Role)
	assert.True(t, authz.NewEvaluator(sess).CanPerformAction("products", authz.ActionUpdate))
	assert.False(t, authz.NewEvaluator(sess).CanPerformAction("products", authz.ActionDelete))

	// The identity survives a reload from redis under the new cookie.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	reloaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Identity())
	assert.Equal(t, "maya@warehouse.test", reloaded.Identity().Email)
}

func TestLoginRejectsAccountWithInvalidRole(t *testing.T) {
	acc := managerAccount(t)
	acc.Role = "auditor"
	handler, sm := newAuthHandler(t, &stubRepo{account: acc})

	res, sess := serve(t, sm, handler.HandleLoginForTest, postLogin(sm, "", "maya@warehouse.test", "correctpass"))

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Nil(t, sess.Identity())
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{account: managerAccount(t)}
	handler, sm := newAuthHandler(t, repo)

	_, sess := serve(t, sm, handler.HandleLoginForTest, postLogin(sm, "", "maya@warehouse.test", "correctpass"))
	loggedIn := sess.ID

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: loggedIn})
	res, after := serve(t, sm, handler.HandleLogoutForTest, req)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, auth.LoginPath, res.Header().Get("Location"))
	assert.Nil(t, after.Identity())
	assert.Equal(t, []string{loggedIn}, repo.removed)

	reload := httptest.NewRequest(http.MethodGet, "/", nil)
	reload.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: loggedIn})
	again, err := sm.Load(context.Background(), reload)
	require.NoError(t, err)
	assert.Nil(t, again.Identity())
}

func TestLoginPageShowsExpiredNotice(t *testing.T) {
	handler, sm := newAuthHandler(t, &stubRepo{})

	req := httptest.NewRequest(http.MethodGet, auth.LoginPath+"?"+auth.ExpiredQuery+"=1", nil)
	res, _ := serve(t, sm, handler.ShowLoginForTest, req)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Your session has ended")
}
