package authz

// Evaluator answers authorization queries against the identity held by its
// source. It keeps no state of its own: every call re-reads the source, so a
// cleared identity is denied immediately.
type Evaluator struct {
	source IdentitySource
}

// NewEvaluator binds an evaluator to an identity source. A nil source denies everything.
func NewEvaluator(source IdentitySource) Evaluator {
	return Evaluator{source: source}
}

// Identity makes a bare identity usable as its own source.
func (i *Identity) Identity() *Identity {
	return i
}

// Current returns the identity in effect, or nil.
func (e Evaluator) Current() *Identity {
	if e.source == nil {
		return nil
	}
	return e.source.Identity()
}

// Authenticated reports whether an identity is present.
func (e Evaluator) Authenticated() bool {
	return e.Current() != nil
}

// HasModuleAccess reports whether the module is present in the permission
// table with allowed set.
func (e Evaluator) HasModuleAccess(module string) bool {
	id := e.Current()
	if id == nil {
		return false
	}
	grant, ok := id.Permissions.Grant(module)
	return ok && grant.Allowed()
}

// CanPerformAction requires module access and an explicit listing of action.
func (e Evaluator) CanPerformAction(module string, action Action) bool {
	id := e.Current()
	if id == nil {
		return false
	}
	grant, ok := id.Permissions.Grant(module)
	return ok && grant.Allowed() && grant.Has(action)
}

// IsSuperAdmin reports whether the identity holds the superadmin role.
func (e Evaluator) IsSuperAdmin() bool {
	id := e.Current()
	return id != nil && id.Role == RoleSuperAdmin
}

// IsManager reports whether the identity holds the manager role. Super
// admins are not managers.
func (e Evaluator) IsManager() bool {
	id := e.Current()
	return id != nil && id.Role == RoleManager
}

// AccessibleModules lists the allowed modules, sorted.
func (e Evaluator) AccessibleModules() []string {
	id := e.Current()
	if id == nil {
		return nil
	}
	var out []string
	for _, module := range id.Permissions.Modules() {
		if grant, _ := id.Permissions.Grant(module); grant.Allowed() {
			out = append(out, module)
		}
	}
	return out
}

// Permits runs the gate decision for opts against this evaluator.
func (e Evaluator) Permits(opts GateOptions) bool {
	return Allow(e, opts)
}
