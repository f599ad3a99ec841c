// Package approval holds the pending-action state machine between
// detection and mutation. Every price change the system proposes lives
// here as a PendingAction until a reviewer approves, declines, or ignores
// it; nothing mutates the operator catalog without passing through this
// package.
//
// Entries transition absent -> pending -> {applied, suppressed, absent}.
// Approve applies the proposed price through a Mutator and removes the
// entry. Decline removes it and suppresses the key for the configured
// window. Ignore removes it without side effects. Because the callback
// transport can redeliver the same click, resolving an unknown id returns
// a NotFound the caller is expected to treat as already handled.
package approval

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/detect"
	"github.com/driftwatch/driftwatch/pkg/docstore"
	"github.com/driftwatch/driftwatch/pkg/errors"
	"github.com/driftwatch/driftwatch/pkg/logging"
	"github.com/driftwatch/driftwatch/pkg/suppress"
)

// Actor identifies who clicked or typed a workflow command.
type Actor struct {
	ID    string
	Name  string
	Roles []string
}

// Mutator applies an approved price to the operator catalog.
type Mutator interface {
	UpdatePrice(ctx context.Context, variantID int64, price float64) error
}

// PendingAction is one proposed change awaiting review.
type PendingAction struct {
	ID string `json:"id"`
	detect.Candidate
	Channel    string    `json:"channel,omitempty"`
	MessageRef string    `json:"message_ref,omitempty"`
	RaisedAt   time.Time `json:"raised_at"`
}

// BulkResult aggregates one bulk approve or decline pass.
type BulkResult struct {
	Resolved int
	Failed   int
}

// Outcome labels how a pending action left the workflow.
type Outcome string

// Resolution outcomes.
const (
	OutcomeApproved Outcome = "approved"
	OutcomeDeclined Outcome = "declined"
	OutcomeIgnored  Outcome = "ignored"
)

// ResolveFunc observes a successful resolution. It runs after the
// manager lock is released, so it may call back into the Manager.
type ResolveFunc func(act PendingAction, outcome Outcome, actor Actor)

// Manager owns the pending-action set. All operations are safe for
// concurrent use: reviewer callbacks arrive while a reconciliation cycle
// is raising new actions.
type Manager struct {
	mu      sync.Mutex
	pending map[string]PendingAction
	byKey   map[catalog.Key]string

	docs    docstore.Store
	reg     *suppress.Registry
	mutator Mutator

	floor     float64
	gate      Gate
	onResolve ResolveFunc
}

// New creates a Manager backed by the given document store. The registry
// receives a suppression entry for every declined key; the mutator is
// invoked on approve.
func New(docs docstore.Store, reg *suppress.Registry, mutator Mutator, opts ...Option) *Manager {
	m := &Manager{
		pending: make(map[string]PendingAction),
		byKey:   make(map[catalog.Key]string),
		docs:    docs,
		reg:     reg,
		mutator: mutator,
		floor:   constants.DefaultPriceFloor,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Load restores the pending set persisted by a previous run. Entries
// never expire on their own, so anything unresolved at the last shutdown
// comes back.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make(map[string]PendingAction)
	if _, err := docstore.GetJSON(ctx, m.docs, docstore.SlotPendingActions, &stored); err != nil {
		return err
	}

	m.pending = stored
	m.byKey = make(map[catalog.Key]string, len(stored))
	for id, act := range stored {
		m.byKey[act.Key] = id
	}
	return nil
}

// Raise creates a pending action for a detected candidate. At most one
// action may exist per item key; a second raise returns AlreadyPending
// until the first is resolved.
func (m *Manager) Raise(ctx context.Context, c detect.Candidate, channel string) (*PendingAction, error) {
	if c.Key == "" {
		return nil, &errors.ValidationError{Field: "key", Message: "candidate has no item key"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byKey[c.Key]; ok {
		return nil, &errors.AlreadyPendingError{Key: string(c.Key), ApprovalID: id}
	}

	act := PendingAction{
		ID:        uuid.NewString(),
		Candidate: c,
		Channel:   channel,
		RaisedAt:  time.Now().UTC(),
	}
	m.pending[act.ID] = act
	m.byKey[c.Key] = act.ID

	// A raise that cannot be persisted is withdrawn: notifying a reviewer
	// about an action that would vanish on restart leaves a dead button.
	if err := m.save(ctx); err != nil {
		delete(m.pending, act.ID)
		delete(m.byKey, c.Key)
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("approval_id", act.ID).
		Str("item", string(c.Key)).
		Str("kind", string(c.Kind)).
		Float64("proposed", c.Proposed).
		Msg("Pending action raised")

	return &act, nil
}

// Approve applies the proposed price and removes the entry. The entry
// survives a BelowFloor refusal or a failed mutation so a human can retry
// or resolve it another way.
func (m *Manager) Approve(ctx context.Context, id string, actor Actor) (*PendingAction, error) {
	act, err := m.approve(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	m.announce(*act, OutcomeApproved, actor)
	return act, nil
}

func (m *Manager) approve(ctx context.Context, id string, actor Actor) (*PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	act, ok := m.pending[id]
	if !ok {
		return nil, errors.NewNotFoundError("approval", id)
	}
	if err := m.gate.Permit(actor, "approve"); err != nil {
		return nil, err
	}

	if err := m.applyLocked(ctx, act); err != nil {
		return nil, err
	}

	m.removeLocked(act)
	m.persistLocked(ctx)

	logging.Ctx(ctx).Info().
		Str("approval_id", act.ID).
		Str("item", string(act.Key)).
		Str("actor", actor.ID).
		Float64("before", act.OperatorPrice).
		Float64("after", act.Proposed).
		Msg("Pending action approved")

	return &act, nil
}

// Decline removes the entry and suppresses its key so the same divergence
// is not raised again inside the suppression window.
func (m *Manager) Decline(ctx context.Context, id string, actor Actor) (*PendingAction, error) {
	act, err := m.decline(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	m.announce(*act, OutcomeDeclined, actor)
	return act, nil
}

func (m *Manager) decline(ctx context.Context, id string, actor Actor) (*PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	act, ok := m.pending[id]
	if !ok {
		return nil, errors.NewNotFoundError("approval", id)
	}
	if err := m.gate.Permit(actor, "decline"); err != nil {
		return nil, err
	}

	until := m.reg.Suppress(act.Key, suppress.ReasonDeclined)
	m.removeLocked(act)
	m.persistLocked(ctx)

	logging.Ctx(ctx).Info().
		Str("approval_id", act.ID).
		Str("item", string(act.Key)).
		Str("actor", actor.ID).
		Time("suppressed_until", until).
		Msg("Pending action declined")

	return &act, nil
}

// Ignore removes the entry without mutating anything or suppressing the
// key. The same divergence may be raised again next cycle.
func (m *Manager) Ignore(ctx context.Context, id string, actor Actor) (*PendingAction, error) {
	act, err := m.ignore(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	m.announce(*act, OutcomeIgnored, actor)
	return act, nil
}

func (m *Manager) ignore(ctx context.Context, id string, actor Actor) (*PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	act, ok := m.pending[id]
	if !ok {
		return nil, errors.NewNotFoundError("approval", id)
	}
	if err := m.gate.Permit(actor, "ignore"); err != nil {
		return nil, err
	}

	m.removeLocked(act)
	m.persistLocked(ctx)

	logging.Ctx(ctx).Info().
		Str("approval_id", act.ID).
		Str("item", string(act.Key)).
		Str("actor", actor.ID).
		Msg("Pending action ignored")

	return &act, nil
}

// Snooze suppresses an item key directly, with no pending entry behind
// it. Stock alerts land here: there is nothing to resolve beyond
// quieting the key, and repeated clicks just refresh the window.
func (m *Manager) Snooze(ctx context.Context, key catalog.Key, actor Actor) (time.Time, error) {
	if err := m.gate.Permit(actor, "snooze"); err != nil {
		return time.Time{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	until := m.reg.Suppress(key, suppress.ReasonSnoozed)
	if err := m.reg.Save(ctx, m.docs); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to persist suppressions")
	}

	logging.Ctx(ctx).Info().
		Str("item", string(key)).
		Str("actor", actor.ID).
		Time("suppressed_until", until).
		Msg("Item snoozed")

	return until, nil
}

// ApproveAll applies every pending action routed to the given channel.
// Individual failures are logged and counted without stopping the sweep.
// An empty channel matches every entry.
func (m *Manager) ApproveAll(ctx context.Context, channel string, actor Actor) (BulkResult, error) {
	result, resolved, err := m.approveAll(ctx, channel, actor)
	if err != nil {
		return BulkResult{}, err
	}
	for _, act := range resolved {
		m.announce(act, OutcomeApproved, actor)
	}
	return result, nil
}

func (m *Manager) approveAll(ctx context.Context, channel string, actor Actor) (BulkResult, []PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.gate.Permit(actor, "approve all"); err != nil {
		return BulkResult{}, nil, err
	}

	var result BulkResult
	var resolved []PendingAction
	for _, act := range m.channelLocked(channel) {
		if err := m.applyLocked(ctx, act); err != nil {
			result.Failed++
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("approval_id", act.ID).
				Str("item", string(act.Key)).
				Msg("Bulk approve skipped entry")
			continue
		}
		m.removeLocked(act)
		resolved = append(resolved, act)
		result.Resolved++
	}

	m.persistLocked(ctx)

	logging.Ctx(ctx).Info().
		Str("channel", channel).
		Str("actor", actor.ID).
		Int("resolved", result.Resolved).
		Int("failed", result.Failed).
		Msg("Bulk approve finished")

	return result, resolved, nil
}

// DeclineAll declines every pending action routed to the given channel,
// suppressing each key. An empty channel matches every entry.
func (m *Manager) DeclineAll(ctx context.Context, channel string, actor Actor) (BulkResult, error) {
	result, resolved, err := m.declineAll(ctx, channel, actor)
	if err != nil {
		return BulkResult{}, err
	}
	for _, act := range resolved {
		m.announce(act, OutcomeDeclined, actor)
	}
	return result, nil
}

func (m *Manager) declineAll(ctx context.Context, channel string, actor Actor) (BulkResult, []PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.gate.Permit(actor, "decline all"); err != nil {
		return BulkResult{}, nil, err
	}

	var result BulkResult
	var resolved []PendingAction
	for _, act := range m.channelLocked(channel) {
		m.reg.Suppress(act.Key, suppress.ReasonDeclined)
		m.removeLocked(act)
		resolved = append(resolved, act)
		result.Resolved++
	}

	m.persistLocked(ctx)

	logging.Ctx(ctx).Info().
		Str("channel", channel).
		Str("actor", actor.ID).
		Int("resolved", result.Resolved).
		Msg("Bulk decline finished")

	return result, resolved, nil
}

// Get returns a copy of the pending action with the given id.
func (m *Manager) Get(id string) (*PendingAction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	act, ok := m.pending[id]
	if !ok {
		return nil, false
	}
	return &act, true
}

// SetMessageRef records the rendered notification message for an entry so
// later resolutions can edit or reference it.
func (m *Manager) SetMessageRef(ctx context.Context, id, ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	act, ok := m.pending[id]
	if !ok {
		return
	}
	act.MessageRef = ref
	m.pending[id] = act
	m.persistLocked(ctx)
}

// Pending returns copies of all pending actions for a channel, oldest
// first. An empty channel matches every entry.
func (m *Manager) Pending(channel string) []PendingAction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.channelLocked(channel)
	sort.Slice(out, func(i, j int) bool {
		if out[i].RaisedAt.Equal(out[j].RaisedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].RaisedAt.Before(out[j].RaisedAt)
	})
	return out
}

// PendingKeys returns the set of item keys with an unresolved action, for
// the detector's single-pending pre-check.
func (m *Manager) PendingKeys() map[catalog.Key]bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make(map[catalog.Key]bool, len(m.byKey))
	for key := range m.byKey {
		keys[key] = true
	}
	return keys
}

// Len returns the number of unresolved actions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// applyLocked runs the floor check and the price mutation for one entry.
func (m *Manager) applyLocked(ctx context.Context, act PendingAction) error {
	if act.Proposed < m.floor {
		return &errors.BelowFloorError{Key: string(act.Key), Proposed: act.Proposed, Floor: m.floor}
	}
	if err := m.mutator.UpdatePrice(ctx, act.VariantID, act.Proposed); err != nil {
		return fmt.Errorf("applying price for %s: %w", act.Key, err)
	}
	return nil
}

func (m *Manager) removeLocked(act PendingAction) {
	delete(m.pending, act.ID)
	delete(m.byKey, act.Key)
}

// announce fires the resolve hook, if one is configured.
func (m *Manager) announce(act PendingAction, outcome Outcome, actor Actor) {
	if m.onResolve != nil {
		m.onResolve(act, outcome, actor)
	}
}

// channelLocked snapshots the entries routed to a channel, sorted by key
// for a deterministic sweep order.
func (m *Manager) channelLocked(channel string) []PendingAction {
	var out []PendingAction
	for _, act := range m.pending {
		if channel == "" || act.Channel == channel {
			out = append(out, act)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// persistLocked writes the pending set and the suppression registry after
// a state change. The mutation or suppression has already happened, so a
// failed write is logged rather than unwinding the resolution.
func (m *Manager) persistLocked(ctx context.Context) {
	if err := m.save(ctx); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to persist pending actions")
	}
	if err := m.reg.Save(ctx, m.docs); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to persist suppressions")
	}
}

func (m *Manager) save(ctx context.Context) error {
	return docstore.PutJSON(ctx, m.docs, docstore.SlotPendingActions, m.pending)
}
