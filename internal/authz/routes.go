package authz

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidRouteTable reports a route table that breaks the one-rule-per-destination rule.
var ErrInvalidRouteTable = errors.New("authz: invalid route table")

// RouteRule names the roles allowed to open a navigable destination.
type RouteRule struct {
	Path          string
	Label         string
	Module        string
	RequiredRoles []Role
}

// Permits reports whether role is listed in the rule.
func (r RouteRule) Permits(role Role) bool {
	for _, allowed := range r.RequiredRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// RouteTable is an ordered, immutable set of route rules. Declaration order
// is the sidebar order.
type RouteTable struct {
	rules  []RouteRule
	byPath map[string]int
}

// NewRouteTable validates rules and builds a table.
func NewRouteTable(rules ...RouteRule) (*RouteTable, error) {
	t := &RouteTable{
		rules:  make([]RouteRule, 0, len(rules)),
		byPath: make(map[string]int, len(rules)),
	}
	for _, rule := range rules {
		p := cleanRoute(rule.Path)
		if p == "" {
			return nil, fmt.Errorf("%w: empty path", ErrInvalidRouteTable)
		}
		if _, dup := t.byPath[p]; dup {
			return nil, fmt.Errorf("%w: duplicate path %s", ErrInvalidRouteTable, p)
		}
		if len(rule.RequiredRoles) == 0 {
			return nil, fmt.Errorf("%w: %s has no roles", ErrInvalidRouteTable, p)
		}
		for _, role := range rule.RequiredRoles {
			if !role.Valid() {
				return nil, fmt.Errorf("%w: %s lists unknown role %q", ErrInvalidRouteTable, p, role)
			}
		}
		rule.Path = p
		rule.RequiredRoles = append([]Role(nil), rule.RequiredRoles...)
		t.byPath[p] = len(t.rules)
		t.rules = append(t.rules, rule)
	}
	return t, nil
}

// MustRouteTable is NewRouteTable that panics on error, for static tables.
func MustRouteTable(rules ...RouteRule) *RouteTable {
	t, err := NewRouteTable(rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// Rules returns a copy of every rule in declaration order.
func (t *RouteTable) Rules() []RouteRule {
	if t == nil {
		return nil
	}
	return append([]RouteRule(nil), t.rules...)
}

// VisibleRoutes returns the rules that list role, in declaration order.
func (t *RouteTable) VisibleRoutes(role Role) []RouteRule {
	if t == nil {
		return nil
	}
	var out []RouteRule
	for _, rule := range t.rules {
		if rule.Permits(role) {
			out = append(out, rule)
		}
	}
	return out
}

// Lookup resolves a request path to its rule: the exact path or the closest
// enclosing segment prefix. "/users/7/edit" resolves to "/users". The root
// rule only ever matches "/" itself.
func (t *RouteTable) Lookup(route string) (RouteRule, bool) {
	if t == nil {
		return RouteRule{}, false
	}
	p := cleanRoute(route)
	if p == "" {
		return RouteRule{}, false
	}
	for {
		if i, ok := t.byPath[p]; ok {
			return t.rules[i], true
		}
		if p == "/" {
			return RouteRule{}, false
		}
		p = path.Dir(p)
		if p == "/" {
			return RouteRule{}, false
		}
	}
}

// IsRouteAllowed reports whether role may open route. Routes without a rule
// are denied.
func (t *RouteTable) IsRouteAllowed(route string, role Role) bool {
	rule, ok := t.Lookup(route)
	return ok && rule.Permits(role)
}

func cleanRoute(route string) string {
	route = strings.TrimSpace(route)
	if route == "" {
		return ""
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return path.Clean(route)
}

// Module names used by the console screens.
const (
	ModuleUsers          = "users"
	ModuleProducts       = "products"
	ModuleCustomers      = "customers"
	ModulePurchaseOrders = "purchase_orders"
	ModuleDeliveryOrders = "delivery_orders"
	ModuleTasks          = "tasks"
)

// DefaultRoutes is the console navigation table.
func DefaultRoutes() *RouteTable {
	all := []Role{RoleSuperAdmin, RoleManager, RoleUser}
	staff := []Role{RoleSuperAdmin, RoleManager}
	return MustRouteTable(
		RouteRule{Path: "/", Label: "Dashboard", RequiredRoles: all},
		RouteRule{Path: "/users", Label: "Users", Module: ModuleUsers, RequiredRoles: staff},
		RouteRule{Path: "/products", Label: "Products", Module: ModuleProducts, RequiredRoles: all},
		RouteRule{Path: "/customers", Label: "Customers", Module: ModuleCustomers, RequiredRoles: staff},
		RouteRule{Path: "/purchase-orders", Label: "Purchase Orders", Module: ModulePurchaseOrders, RequiredRoles: staff},
		RouteRule{Path: "/delivery-orders", Label: "Delivery Orders", Module: ModuleDeliveryOrders, RequiredRoles: all},
		RouteRule{Path: "/tasks", Label: "Tasks", Module: ModuleTasks, RequiredRoles: all},
		RouteRule{Path: "/roles", Label: "Roles", RequiredRoles: []Role{RoleSuperAdmin}},
	)
}
