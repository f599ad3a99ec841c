package driftwatch

import (
	"sync"

	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/detect"
)

// Hook function types for workflow events
type (
	// ActionRaisedHook is called when a cycle raises a pending action
	ActionRaisedHook func(act approval.PendingAction)

	// ActionResolvedHook is called when a pending action is resolved
	ActionResolvedHook func(act approval.PendingAction, outcome approval.Outcome, actor approval.Actor)

	// BundleMismatchHook is called when a confirmed bundle's price
	// diverges from its constituent sum
	BundleMismatchHook func(c detect.Candidate)
)

// hooks manages event callbacks for workflow changes
type hooks struct {
	mu         sync.RWMutex
	onRaised   []ActionRaisedHook
	onResolved []ActionResolvedHook
	onMismatch []BundleMismatchHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

func (h *hooks) addRaised(fn ActionRaisedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRaised = append(h.onRaised, fn)
}

func (h *hooks) addResolved(fn ActionResolvedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onResolved = append(h.onResolved, fn)
}

func (h *hooks) addMismatch(fn BundleMismatchHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMismatch = append(h.onMismatch, fn)
}

// actionRaised fans a raised action out to the registered callbacks
func (h *hooks) actionRaised(act approval.PendingAction) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onRaised {
		fn(act)
	}
}

// actionResolved fans a resolution out to the registered callbacks
func (h *hooks) actionResolved(act approval.PendingAction, outcome approval.Outcome, actor approval.Actor) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onResolved {
		fn(act, outcome, actor)
	}
}

// bundleMismatch fans a bundle price mismatch out to the registered callbacks
func (h *hooks) bundleMismatch(c detect.Candidate) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, fn := range h.onMismatch {
		fn(c)
	}
}
