package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/warehouse-console/internal/authz"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "test_session", "secret", time.Hour, false), mr
}

func testIdentity(t *testing.T) *authz.Identity {
	t.Helper()
	id, err := authz.NewIdentity(authz.IdentityInput{
		ID:    "42",
		Name:  "Mira",
		Email: "mira@test.local",
		Role:  "manager",
		Permissions: map[string]authz.GrantInput{
			"tasks": {Allowed: true, Actions: []string{"read", "update"}},
		},
	})
	require.NoError(t, err)
	return id
}

func roundTrip(t *testing.T, sm *SessionManager, sess *Session) *Session {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, sm.Commit(context.Background(), rec, req, sess))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	loaded, err := sm.Load(context.Background(), next)
	require.NoError(t, err)
	return loaded
}

func TestSessionPersistsIdentity(t *testing.T) {
	sm, _ := newTestManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Nil(t, sess.Identity())

	sess.SetIdentity(testIdentity(t))
	loaded := roundTrip(t, sm, sess)

	require.NotNil(t, loaded.Identity())
	assert.Equal(t, sess.ID, loaded.ID)
	ev := authz.NewEvaluator(loaded)
	assert.True(t, ev.IsManager())
	assert.True(t, ev.CanPerformAction("tasks", authz.ActionUpdate))
	assert.False(t, ev.CanPerformAction("tasks", authz.ActionDelete))
}

func TestSessionDropsCorruptIdentity(t *testing.T) {
	sm, mr := newTestManager(t)
	require.NoError(t, mr.Set("session:abc", `{"values":{},"identity":{"id":"1","name":"x","email":"x@test.local","role":"root"}}`))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "abc"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "abc", sess.ID)
	assert.Nil(t, sess.Identity())
	assert.False(t, authz.NewEvaluator(sess).Authenticated())
}

func TestDeauthorizeContextDiscardsSession(t *testing.T) {
	sm, mr := newTestManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetIdentity(testIdentity(t))
	loaded := roundTrip(t, sm, sess)
	require.True(t, mr.Exists("session:"+loaded.ID))

	ctx := ContextWithSession(context.Background(), loaded)
	ev := authz.NewEvaluator(loaded)
	require.True(t, ev.HasModuleAccess("tasks"))

	assert.True(t, DeauthorizeContext(ctx))
	assert.False(t, ev.HasModuleAccess("tasks"), "evaluator must see the cleared identity at once")
	assert.True(t, loaded.Destroyed())

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil), loaded))
	assert.False(t, mr.Exists("session:"+loaded.ID))
	assert.False(t, DeauthorizeContext(context.Background()))
}

func TestDeauthorizeContextReportsOnlyFirstDiscard(t *testing.T) {
	sm, _ := newTestManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetIdentity(testIdentity(t))
	ctx := ContextWithSession(context.Background(), sess)

	var wg sync.WaitGroup
	var ended atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if DeauthorizeContext(ctx) {
				ended.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ended.Load())
	assert.True(t, sess.Destroyed())
	assert.False(t, DeauthorizeContext(ctx))
}

func TestRenewRotatesSessionID(t *testing.T) {
	sm, mr := newTestManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	loaded := roundTrip(t, sm, sess)
	oldID := loaded.ID

	require.NoError(t, sm.Renew(context.Background(), loaded))
	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists("session:"+oldID))
}

func TestNilSessionIsAnonymous(t *testing.T) {
	var sess *Session
	assert.Nil(t, sess.Identity())
	assert.False(t, sess.Destroyed())
	sess.ClearIdentity()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, EvaluatorFor(req).Authenticated())
}

func TestFlashMessagesSurviveCommit(t *testing.T) {
	sm, _ := newTestManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.AddFlash(FlashMessage{Kind: "success", Message: "saved"})

	loaded := roundTrip(t, sm, sess)
	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "saved", flash.Message)
	assert.Nil(t, loaded.PopFlash())
}
