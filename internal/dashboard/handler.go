package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/warehouse-console/internal/auth"
	"github.com/odyssey-erp/warehouse-console/internal/authz"
	"github.com/odyssey-erp/warehouse-console/internal/backend"
	"github.com/odyssey-erp/warehouse-console/internal/observability"
	"github.com/odyssey-erp/warehouse-console/internal/platform/httpx"
	"github.com/odyssey-erp/warehouse-console/internal/shared"
	"github.com/odyssey-erp/warehouse-console/internal/view"
)

// Backend is the subset of backend.Client used by the screens.
type Backend interface {
	List(ctx context.Context, actor *authz.Identity, collection string) ([]backend.Record, error)
	Get(ctx context.Context, actor *authz.Identity, collection, id string) (backend.Record, error)
	Create(ctx context.Context, actor *authz.Identity, collection string, rec backend.Record) (backend.Record, error)
	Update(ctx context.Context, actor *authz.Identity, collection, id string, fields backend.Record) (backend.Record, error)
	Delete(ctx context.Context, actor *authz.Identity, collection, id string) error
}

// Handler serves the dashboard screens. Every route it mounts is expected to
// sit behind the route guard, so an identity is always present.
type Handler struct {
	logger    *slog.Logger
	backend   Backend
	templates *view.Engine
	routes    *authz.RouteTable
	resources []Resource
	metrics   *observability.Metrics
	rbac      authz.Middleware
	validate  *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, be Backend, templates *view.Engine, routes *authz.RouteTable, resources []Resource, metrics *observability.Metrics, rbac authz.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		backend:   be,
		templates: templates,
		routes:    routes,
		resources: resources,
		metrics:   metrics,
		rbac:      rbac,
		validate:  validator.New(),
	}
}

// MountRoutes registers the home page, the role matrix and every resource.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.With(h.rbac.Require(authz.GateOptions{RequireSuperAdmin: true})).Get("/roles", h.showRoles)

	for _, res := range h.resources {
		r.Route(res.Path, func(r chi.Router) {
			r.With(h.rbac.RequireAction(res.Module, authz.ActionRead)).Get("/", h.list(res))
			r.Group(func(r chi.Router) {
				r.Use(h.rbac.RequireAction(res.Module, authz.ActionCreate))
				r.Get("/new", h.newForm(res))
				r.Post("/", h.create(res))
			})
			r.Group(func(r chi.Router) {
				r.Use(h.rbac.RequireAction(res.Module, authz.ActionUpdate))
				r.Get("/{id}/edit", h.editForm(res))
				r.Post("/{id}/update", h.update(res))
			})
			r.With(h.rbac.RequireAction(res.Module, authz.ActionDelete)).Post("/{id}/delete", h.remove(res))
		})
	}
}

type card struct {
	Label string
	Path  string
	Count int
	Error string
}

type homePage struct {
	Cards []card
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	eval := shared.EvaluatorFor(r)
	actor := eval.Current()
	if actor == nil {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}

	var targets []Resource
	for _, rule := range h.routes.VisibleRoutes(actor.Role) {
		if rule.Module == "" || !eval.CanPerformAction(rule.Module, authz.ActionRead) {
			continue
		}
		if res, ok := h.resourceAt(rule.Path); ok {
			targets = append(targets, res)
		}
	}

	cards := make([]card, len(targets))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(4)
	for i, res := range targets {
		cards[i] = card{Label: res.Title, Path: res.Path}
		g.Go(func() error {
			records, err := h.backend.List(ctx, actor, res.Collection)
			h.observe(res.Collection, err)
			if err != nil {
				if revoked(err) {
					return err
				}
				h.logger.Warn("count records", slog.String("collection", res.Collection), slog.Any("error", err))
				cards[i].Error = shared.UserSafeMessage(err)
				return nil
			}
			cards[i].Count = len(records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, "pages/home.html", "Dashboard", homePage{Cards: cards}, http.StatusOK)
}

type matrixRow struct {
	Rule    authz.RouteRule
	Allowed []bool
}

type grantRow struct {
	Module  string
	Allowed bool
	Actions []authz.Action
}

type rolesPage struct {
	Roles  []authz.Role
	Matrix []matrixRow
	Grants []grantRow
}

func (h *Handler) showRoles(w http.ResponseWriter, r *http.Request) {
	page := rolesPage{Roles: authz.Roles()}
	for _, rule := range h.routes.Rules() {
		row := matrixRow{Rule: rule, Allowed: make([]bool, len(page.Roles))}
		for i, role := range page.Roles {
			row.Allowed[i] = rule.Permits(role)
		}
		page.Matrix = append(page.Matrix, row)
	}
	if actor := shared.EvaluatorFor(r).Current(); actor != nil {
		for _, module := range actor.Permissions.Modules() {
			grant, _ := actor.Permissions.Grant(module)
			page.Grants = append(page.Grants, grantRow{Module: module, Allowed: grant.Allowed(), Actions: grant.Actions()})
		}
	}
	h.render(w, r, "pages/roles.html", "Roles", page, http.StatusOK)
}

type listPage struct {
	Resource Resource
	Records  []backend.Record
	Page     shared.Pagination
	Error    string
}

func (h *Handler) list(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := h.backend.List(r.Context(), actor(r), res.Collection)
		h.observe(res.Collection, err)
		if err != nil {
			if revoked(err) {
				h.fail(w, r, err)
				return
			}
			h.logger.Error("list records", slog.String("collection", res.Collection), slog.Any("error", err))
			h.render(w, r, "pages/resource_list.html", res.Title, listPage{Resource: res, Error: shared.UserSafeMessage(err)}, httpx.StatusFor(err))
			return
		}
		page := shared.NewPagination(shared.PageFromQuery(r.URL.Query()), shared.DefaultPerPage, len(records))
		start, end := page.Bounds()
		h.render(w, r, "pages/resource_list.html", res.Title, listPage{Resource: res, Records: records[start:end], Page: page}, http.StatusOK)
	}
}

type formPage struct {
	Resource Resource
	ID       string
	Action   string
	Values   map[string]string
	Errors   map[string]string
}

func (h *Handler) newForm(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := formPage{Resource: res, Action: res.Path, Values: map[string]string{}, Errors: map[string]string{}}
		h.render(w, r, "pages/resource_form.html", "New "+res.Singular, page, http.StatusOK)
	}
}

func (h *Handler) create(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		page := formPage{Resource: res, Action: res.Path}
		page.Values, page.Errors = h.bind(r, res)
		if len(page.Errors) > 0 {
			h.render(w, r, "pages/resource_form.html", "New "+res.Singular, page, http.StatusBadRequest)
			return
		}
		_, err := h.backend.Create(r.Context(), actor(r), res.Collection, res.record(page.Values, false))
		h.observe(res.Collection, err)
		if err != nil {
			h.rejectForm(w, r, page, "New "+res.Singular, err)
			return
		}
		h.redirectWithFlash(w, r, res.Path, "success", titleCase(res.Singular)+" created")
	}
}

func (h *Handler) editForm(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, err := h.backend.Get(r.Context(), actor(r), res.Collection, id)
		h.observe(res.Collection, err)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		page := formPage{
			Resource: res,
			ID:       id,
			Action:   fmt.Sprintf("%s/%s/update", res.Path, id),
			Values:   res.values(rec),
			Errors:   map[string]string{},
		}
		h.render(w, r, "pages/resource_form.html", "Edit "+res.Singular, page, http.StatusOK)
	}
}

func (h *Handler) update(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		id := chi.URLParam(r, "id")
		page := formPage{Resource: res, ID: id, Action: fmt.Sprintf("%s/%s/update", res.Path, id)}
		page.Values, page.Errors = h.bind(r, res)
		if len(page.Errors) > 0 {
			h.render(w, r, "pages/resource_form.html", "Edit "+res.Singular, page, http.StatusBadRequest)
			return
		}
		_, err := h.backend.Update(r.Context(), actor(r), res.Collection, id, res.record(page.Values, true))
		h.observe(res.Collection, err)
		if err != nil {
			h.rejectForm(w, r, page, "Edit "+res.Singular, err)
			return
		}
		h.redirectWithFlash(w, r, res.Path, "success", titleCase(res.Singular)+" updated")
	}
}

func (h *Handler) remove(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.backend.Delete(r.Context(), actor(r), res.Collection, chi.URLParam(r, "id"))
		h.observe(res.Collection, err)
		switch {
		case err == nil:
			h.redirectWithFlash(w, r, res.Path, "success", titleCase(res.Singular)+" deleted")
		case revoked(err):
			h.fail(w, r, err)
		default:
			h.logger.Error("delete record", slog.String("collection", res.Collection), slog.Any("error", err))
			h.redirectWithFlash(w, r, res.Path, "error", shared.UserSafeMessage(err))
		}
	}
}

// bind reads and validates the submitted fields of res.
func (h *Handler) bind(r *http.Request, res Resource) (map[string]string, map[string]string) {
	values := make(map[string]string, len(res.Fields))
	errs := make(map[string]string)
	for _, f := range res.Fields {
		v := strings.TrimSpace(r.PostFormValue(f.Key))
		values[f.Key] = v
		rules := f.rules()
		if rules == "" {
			continue
		}
		if err := h.validate.Var(v, rules); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				errs[f.Key] = fieldMessage(f, verrs[0])
			} else {
				errs[f.Key] = f.Label + " is invalid"
			}
		}
	}
	return values, errs
}

// rejectForm re-renders a form after the backend refused the write.
func (h *Handler) rejectForm(w http.ResponseWriter, r *http.Request, page formPage, title string, err error) {
	if revoked(err) {
		h.fail(w, r, err)
		return
	}
	status := httpx.StatusFor(err)
	var se *backend.StatusError
	if errors.As(err, &se) && se.Status < http.StatusInternalServerError {
		status = http.StatusBadRequest
		page.Errors["general"] = "The warehouse service rejected the record: " + se.Body
	} else {
		h.logger.Error("save record", slog.String("collection", page.Resource.Collection), slog.Any("error", err))
		page.Errors["general"] = shared.UserSafeMessage(err)
	}
	h.render(w, r, "pages/resource_form.html", title, page, status)
}

type errorPage struct {
	Message string
}

// fail answers a backend error. Revoked credentials end the session and send
// the visitor to login; the session itself was already discarded by the
// client's deauthorization hook.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if revoked(err) {
		h.logger.Info("backend revoked access", slog.String("path", r.URL.Path))
		http.Redirect(w, r, auth.LoginPath+"?"+auth.ExpiredQuery+"=1", http.StatusSeeOther)
		return
	}
	status := httpx.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("backend call", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	h.render(w, r, "pages/error.html", http.StatusText(status), errorPage{Message: shared.UserSafeMessage(err)}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any, status int) {
	viewData := h.templates.Page(r, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, name, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (h *Handler) observe(collection string, err error) {
	h.metrics.ObserveBackendCall(collection, outcome(err))
}

func (h *Handler) resourceAt(path string) (Resource, bool) {
	for _, res := range h.resources {
		if res.Path == path {
			return res, true
		}
	}
	return Resource{}, false
}

func actor(r *http.Request) *authz.Identity {
	return shared.EvaluatorFor(r).Current()
}

func revoked(err error) bool {
	return errors.Is(err, httpx.ErrUnauthorized) || errors.Is(err, httpx.ErrForbidden)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, httpx.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, httpx.ErrForbidden):
		return "forbidden"
	case errors.Is(err, httpx.ErrNotFound):
		return "not_found"
	case errors.Is(err, httpx.ErrUnavailable):
		return "unavailable"
	}
	return "error"
}

func fieldMessage(f Field, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return f.Label + " is required"
	case "email":
		return "Enter a valid email address"
	case "max":
		return f.Label + " must be at most " + fe.Param() + " characters"
	case "numeric":
		return f.Label + " must be a number"
	case "oneof":
		return f.Label + " must be one of: " + strings.Join(f.Options, ", ")
	case "datetime":
		return f.Label + " must be a date (YYYY-MM-DD)"
	}
	return f.Label + " is invalid"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
