package view

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/warehouse-console/internal/authz"
	"github.com/odyssey-erp/warehouse-console/internal/shared"
)

type column struct{ Key, Label string }

type resource struct {
	Title, Singular, Module, Path string
	Columns                       []column
}

type record map[string]any

func (r record) ID() string { return Field(r, "id") }

type listData struct {
	Resource resource
	Records  []record
	Page     shared.Pagination
	Error    string
}

func requestWithIdentity(t *testing.T, path string, in *authz.IdentityInput) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	sm := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "s", "secret", time.Hour, false)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	if in != nil {
		id, err := authz.NewIdentity(*in)
		require.NoError(t, err)
		sess.SetIdentity(id)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(authz.DefaultRoutes(), shared.NewCSRFManager("x"))
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestPageBuildsNavigationForRole(t *testing.T) {
	engine, err := NewEngine(authz.DefaultRoutes(), shared.NewCSRFManager("x"))
	require.NoError(t, err)

	req := requestWithIdentity(t, "/products", &authz.IdentityInput{
		ID: "4", Name: "Uma", Email: "uma@warehouse.test", Role: "user",
	})
	td := engine.Page(req, "Products", nil)

	assert.NotEmpty(t, td.CSRFToken)
	assert.True(t, td.Auth.Authenticated())
	var paths []string
	for _, rule := range td.Nav {
		paths = append(paths, rule.Path)
	}
	assert.Equal(t, []string{"/", "/products", "/delivery-orders", "/tasks"}, paths)
}

func TestPageAnonymous(t *testing.T) {
	engine, err := NewEngine(authz.DefaultRoutes(), shared.NewCSRFManager("x"))
	require.NoError(t, err)

	td := engine.Page(requestWithIdentity(t, "/auth/login", nil), "Sign in", nil)
	assert.False(t, td.Auth.Authenticated())
	assert.Empty(t, td.Nav)
}

func TestResourceListHidesGatedActions(t *testing.T) {
	engine, err := NewEngine(authz.DefaultRoutes(), shared.NewCSRFManager("x"))
	require.NoError(t, err)

	req := requestWithIdentity(t, "/products", &authz.IdentityInput{
		ID: "2", Name: "Maya", Email: "maya@warehouse.test", Role: "manager",
		Permissions: map[string]authz.GrantInput{
			"products": {Allowed: true, Actions: []string{"read", "update"}},
		},
	})
	data := listData{
		Resource: resource{Title: "Products", Singular: "product", Module: "products", Path: "/products",
			Columns: []column{{Key: "name", Label: "Name"}}},
		Records: []record{{"id": "p-1", "name": "Pallet jack"}},
	}

	rec := httptest.NewRecorder()
	require.NoError(t, engine.Render(rec, "pages/resource_list.html", engine.Page(req, "Products", data)))

	body := rec.Body.String()
	assert.Contains(t, body, "Pallet jack")
	assert.Contains(t, body, `href="/products/p-1/edit"`)
	assert.NotContains(t, body, "New product")
	assert.NotContains(t, body, "Delete")
}

func TestResourceListMarksReadOnlyViewers(t *testing.T) {
	engine, err := NewEngine(authz.DefaultRoutes(), shared.NewCSRFManager("x"))
	require.NoError(t, err)

	req := requestWithIdentity(t, "/tasks", &authz.IdentityInput{
		ID: "5", Name: "Ola", Email: "ola@warehouse.test", Role: "user",
		Permissions: map[string]authz.GrantInput{
			"tasks": {Allowed: true, Actions: []string{"read"}},
		},
	})
	data := listData{
		Resource: resource{Title: "Tasks", Singular: "task", Module: "tasks", Path: "/tasks",
			Columns: []column{{Key: "title", Label: "Title"}}},
		Records: []record{{"id": "t-1", "title": "Count aisle 4"}},
	}

	rec := httptest.NewRecorder()
	require.NoError(t, engine.Render(rec, "pages/resource_list.html", engine.Page(req, "Tasks", data)))

	body := rec.Body.String()
	assert.Contains(t, body, `<span class="badge">Read only</span>`)
	assert.NotContains(t, body, `href="/tasks/t-1/edit"`)
}

func TestGateOptions(t *testing.T) {
	opts, err := GateOptions("module", "tasks", "action", "create", "manager", true)
	require.NoError(t, err)
	assert.Equal(t, authz.GateOptions{Module: "tasks", Action: authz.ActionCreate, RequireManager: true}, opts)

	_, err = GateOptions("module")
	assert.Error(t, err)
	_, err = GateOptions("colour", "red")
	assert.Error(t, err)
}

func TestGateOptionsRejectsMalformedFlags(t *testing.T) {
	cases := map[string][]any{
		"string superadmin": {"superadmin", "true"},
		"string manager":    {"manager", "yes"},
		"numeric flag":      {"manager", 1},
		"non-string key":    {42, "tasks"},
		"nil key":           {nil, true},
	}
	for name, pairs := range cases {
		t.Run(name, func(t *testing.T) {
			opts, err := GateOptions(pairs...)
			require.Error(t, err)
			assert.Equal(t, authz.GateOptions{}, opts)
		})
	}
}

func TestGateHelperFailsClosedInTemplates(t *testing.T) {
	engine, err := NewEngine(authz.DefaultRoutes(), shared.NewCSRFManager("x"))
	require.NoError(t, err)
	tpl, err := engine.templates.Clone()
	require.NoError(t, err)
	tpl, err = tpl.New("superadmin-flag").Parse(`{{if .Auth.Permits (gate "superadmin" "true")}}secret{{end}}`)
	require.NoError(t, err)

	req := requestWithIdentity(t, "/", &authz.IdentityInput{
		ID: "5", Name: "Ola", Email: "ola@warehouse.test", Role: "user",
		Permissions: map[string]authz.GrantInput{},
	})
	rec := httptest.NewRecorder()
	err = tpl.Execute(rec, engine.Page(req, "Home", nil))
	assert.Error(t, err)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestField(t *testing.T) {
	rec := map[string]any{"qty": float64(12), "price": 3.5, "active": true, "name": "Crate", "nil": nil}
	assert.Equal(t, "12", Field(rec, "qty"))
	assert.Equal(t, "3.50", Field(rec, "price"))
	assert.Equal(t, "Yes", Field(rec, "active"))
	assert.Equal(t, "Crate", Field(rec, "name"))
	assert.Equal(t, "", Field(rec, "nil"))
	assert.Equal(t, "", Field(rec, "missing"))
}
