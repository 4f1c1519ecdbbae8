package view

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/warehouse-console/internal/authz"
	"github.com/odyssey-erp/warehouse-console/internal/shared"
	"github.com/odyssey-erp/warehouse-console/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	routes    *authz.RouteTable
	csrf      *shared.CSRFManager
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	// Auth answers permission checks for the viewer; it reads the live session.
	Auth authz.Evaluator
	// Nav holds the sidebar entries for the viewer's role, in table order.
	Nav  []authz.RouteRule
	Data any
}

// NewEngine parses the embedded templates.
func NewEngine(routes *authz.RouteTable, csrf *shared.CSRFManager) (*Engine, error) {
	titler := cases.Title(language.English)
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"title": func(s string) string {
			return titler.String(strings.ReplaceAll(s, "_", " "))
		},
		"gate":   GateOptions,
		"guard":  authz.Guard[string],
		"field":  Field,
		"active": isActive,
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl, routes: routes, csrf: csrf}, nil
}

// Page assembles TemplateData for the request: CSRF token, pending flash,
// evaluator and the role-filtered navigation.
func (e *Engine) Page(r *http.Request, title string, data any) TemplateData {
	sess := shared.SessionFromContext(r.Context())
	td := TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Auth:        shared.EvaluatorFor(r),
		Data:        data,
	}
	if e != nil && e.csrf != nil && sess != nil {
		td.CSRFToken, _ = e.csrf.EnsureToken(r.Context(), sess)
	}
	if sess != nil {
		td.Flash = sess.PopFlash()
	}
	if id := td.Auth.Current(); id != nil && e != nil {
		td.Nav = e.routes.VisibleRoutes(id.Role)
	}
	return td
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}

// GateOptions builds authz.GateOptions from key/value pairs, for templates:
//
//	{{if .Auth.Permits (gate "module" "products" "action" "delete")}}
//
// Recognised keys are module, action, superadmin and manager.
func GateOptions(pairs ...any) (authz.GateOptions, error) {
	var opts authz.GateOptions
	if len(pairs)%2 != 0 {
		return opts, fmt.Errorf("view: gate expects key/value pairs")
	}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return authz.GateOptions{}, fmt.Errorf("view: gate key %v is not a string", pairs[i])
		}
		var err error
		switch key {
		case "module":
			opts.Module = fmt.Sprint(pairs[i+1])
		case "action":
			opts.Action = authz.Action(fmt.Sprint(pairs[i+1]))
		case "superadmin":
			opts.RequireSuperAdmin, err = gateFlag(key, pairs[i+1])
		case "manager":
			opts.RequireManager, err = gateFlag(key, pairs[i+1])
		default:
			return authz.GateOptions{}, fmt.Errorf("view: unknown gate option %q", key)
		}
		if err != nil {
			return authz.GateOptions{}, err
		}
	}
	return opts, nil
}

func gateFlag(key string, v any) (bool, error) {
	flag, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("view: gate option %q wants a bool, got %T", key, v)
	}
	return flag, nil
}

// Field formats a record value for display.
func Field(record map[string]any, key string) string {
	v, ok := record[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.2f", val)
	}
	return fmt.Sprint(v)
}

func isActive(current, target string) bool {
	if target == "/" {
		return current == "/"
	}
	return current == target || strings.HasPrefix(current, target+"/")
}
