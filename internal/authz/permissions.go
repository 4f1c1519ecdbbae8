package authz

import (
	"sort"
	"strings"
)

// Action is an operation a module grant may permit.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionManage is independent of the four CRUD actions and implies none of them.
	ActionManage Action = "manage"
)

var actionOrder = map[Action]int{
	ActionCreate: 0,
	ActionRead:   1,
	ActionUpdate: 2,
	ActionDelete: 3,
	ActionManage: 4,
}

// Actions lists every known action in canonical order.
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := actionOrder[a]
	return ok
}

// ModuleGrant is the access record for one module. The zero value denies everything.
type ModuleGrant struct {
	allowed bool
	actions map[Action]struct{}
}

// Allowed reports whether the module is accessible at all.
func (g ModuleGrant) Allowed() bool {
	return g.allowed
}

// Has reports whether the grant lists the action. It ignores Allowed.
func (g ModuleGrant) Has(action Action) bool {
	_, ok := g.actions[action]
	return ok
}

// Actions returns the granted actions in canonical order.
func (g ModuleGrant) Actions() []Action {
	out := make([]Action, 0, len(g.actions))
	for a := range g.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return actionOrder[out[i]] < actionOrder[out[j]] })
	return out
}

// PermissionTable maps module names to grants. It is immutable once built;
// the zero value is an empty table that denies every module.
type PermissionTable struct {
	grants map[string]ModuleGrant
}

// Grant looks up the grant for module.
func (t PermissionTable) Grant(module string) (ModuleGrant, bool) {
	if t.grants == nil {
		return ModuleGrant{}, false
	}
	g, ok := t.grants[normalizeModule(module)]
	return g, ok
}

// Modules returns every module key in the table, sorted.
func (t PermissionTable) Modules() []string {
	keys := make([]string, 0, len(t.grants))
	for k := range t.grants {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of modules in the table.
func (t PermissionTable) Len() int {
	return len(t.grants)
}

func (t PermissionTable) input() map[string]GrantInput {
	if len(t.grants) == 0 {
		return nil
	}
	out := make(map[string]GrantInput, len(t.grants))
	for module, g := range t.grants {
		actions := g.Actions()
		names := make([]string, len(actions))
		for i, a := range actions {
			names[i] = string(a)
		}
		out[module] = GrantInput{Allowed: g.allowed, Actions: names}
	}
	return out
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
