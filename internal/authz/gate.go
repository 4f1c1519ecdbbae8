package authz

// GateOptions configures a render guard. Empty options allow any caller.
type GateOptions struct {
	Module            string
	Action            Action
	RequireSuperAdmin bool
	RequireManager    bool
}

// Checker is the subset of evaluator queries a gate consults.
type Checker interface {
	IsSuperAdmin() bool
	IsManager() bool
	HasModuleAccess(module string) bool
	CanPerformAction(module string, action Action) bool
}

// Allow evaluates opts against c. Role tiers are checked first, then the
// module, then the action; the first failing check denies.
func Allow(c Checker, opts GateOptions) bool {
	if c == nil {
		return false
	}
	if opts.RequireSuperAdmin && !c.IsSuperAdmin() {
		return false
	}
	if opts.RequireManager && !c.IsManager() {
		return false
	}
	if opts.Module == "" && opts.Action == "" {
		return true
	}
	if opts.Module != "" && !c.HasModuleAccess(opts.Module) {
		return false
	}
	if opts.Action != "" && !c.CanPerformAction(opts.Module, opts.Action) {
		return false
	}
	return true
}

// Guard returns children when opts allow c and fallback otherwise. Passing
// the zero value as fallback renders nothing.
func Guard[T any](c Checker, opts GateOptions, children, fallback T) T {
	if Allow(c, opts) {
		return children
	}
	return fallback
}
