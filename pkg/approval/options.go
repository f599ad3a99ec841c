package approval

// Option configures a Manager.
type Option func(*Manager)

// WithPriceFloor sets the minimum price an approve may apply. Proposals
// under the floor are refused and stay pending.
func WithPriceFloor(floor float64) Option {
	return func(m *Manager) {
		if floor > 0 {
			m.floor = floor
		}
	}
}

// WithGate sets the role allow-list and administrator identity checked on
// every resolution.
func WithGate(gate Gate) Option {
	return func(m *Manager) {
		m.gate = gate
	}
}

// WithAllowedRoles restricts resolutions to actors holding at least one
// of the given roles. An empty list permits everyone.
func WithAllowedRoles(roles []string) Option {
	return func(m *Manager) {
		m.gate.Roles = roles
	}
}

// WithAdmin names an actor id that bypasses the role allow-list.
func WithAdmin(id string) Option {
	return func(m *Manager) {
		m.gate.AdminID = id
	}
}

// WithResolveHook registers a callback fired after every successful
// resolution, including each entry of a bulk sweep.
func WithResolveHook(fn ResolveFunc) Option {
	return func(m *Manager) {
		m.onResolve = fn
	}
}
