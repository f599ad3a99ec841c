package approval

import "github.com/driftwatch/driftwatch/pkg/errors"

// Gate is the role allow-list shared by every reviewer-facing operation.
// The same gate guards price approvals, bundle confirmations, and the
// admin-only bulk commands.
type Gate struct {
	// Roles an actor must hold at least one of. Empty permits everyone.
	Roles []string

	// AdminID names an actor that bypasses the allow-list and may issue
	// bulk commands.
	AdminID string
}

// Permit returns a ForbiddenError unless the actor is the administrator
// or holds an allowed role.
func (g Gate) Permit(actor Actor, operation string) error {
	if g.Admin(actor) {
		return nil
	}
	if len(g.Roles) == 0 {
		return nil
	}
	for _, want := range g.Roles {
		for _, have := range actor.Roles {
			if have == want {
				return nil
			}
		}
	}
	return errors.NewForbiddenError(actor.ID, operation)
}

// Admin reports whether the actor is the configured administrator.
func (g Gate) Admin(actor Actor) bool {
	return g.AdminID != "" && actor.ID == g.AdminID
}
