// Package bundle reconciles composite products on the operator storefront
// against the sum of their constituent prices. Compositions are inferred
// heuristically from product descriptions, but an inferred composition is
// never trusted: it waits as a pending confirmation until a reviewer
// promotes it, and only confirmed compositions are price-checked each
// cycle. Declined detections are parked for manual entry through the
// overrides file.
package bundle

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/driftwatch/driftwatch/pkg/approval"
	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/detect"
	"github.com/driftwatch/driftwatch/pkg/docstore"
	"github.com/driftwatch/driftwatch/pkg/errors"
	"github.com/driftwatch/driftwatch/pkg/logging"
)

// Constituent pairs a matched catalog item with its sellable variant.
type Constituent struct {
	Name      string `json:"name"`
	VariantID int64  `json:"variant_id"`
}

// Composition is an authoritative bundle composition. It persists until
// explicitly reset or replaced by an overrides entry.
type Composition struct {
	ProductID  int64   `json:"product_id" yaml:"product_id"`
	VariantID  int64   `json:"variant_id" yaml:"variant_id"`
	Name       string  `json:"name" yaml:"name"`
	VariantIDs []int64 `json:"variant_ids" yaml:"variant_ids"`
}

// PendingConfirmation is a detected composition awaiting review. The
// constituent list may be incomplete; the reviewer sees exactly what was
// matched.
type PendingConfirmation struct {
	ApprovalID   string        `json:"approval_id"`
	ProductID    int64         `json:"product_id"`
	VariantID    int64         `json:"variant_id"`
	Name         string        `json:"name"`
	Constituents []Constituent `json:"constituents"`
	DetectedAt   time.Time     `json:"detected_at"`
}

// MissingConstituent flags a confirmed constituent absent from the
// current operator fetch. It alarms without blocking the price check on
// the remaining constituents.
type MissingConstituent struct {
	BundleProductID int64
	BundleName      string
	VariantID       int64
}

// VerifyResult is one consistency pass over the confirmed compositions.
type VerifyResult struct {
	Mismatches []detect.Candidate
	Missing    []MissingConstituent
	Checked    int
}

// state is the persisted bundle document.
type state struct {
	Confirmed map[int64]Composition          `json:"confirmed"`
	Pending   map[string]PendingConfirmation `json:"pending_confirmations"`
	Manual    map[int64]string               `json:"awaiting_manual"`
}

// Reconciler owns bundle state across cycles. Safe for concurrent use:
// reviewer callbacks resolve confirmations while a cycle scans and
// verifies.
type Reconciler struct {
	mu        sync.Mutex
	confirmed map[int64]Composition
	pending   map[string]PendingConfirmation
	manual    map[int64]string

	docs docstore.Store
	gate approval.Gate

	tolerance float64
	markers   []string
	maxNames  int
	overrides string
}

// New creates a Reconciler backed by the given document store.
func New(docs docstore.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		confirmed: make(map[int64]Composition),
		pending:   make(map[string]PendingConfirmation),
		manual:    make(map[int64]string),
		docs:      docs,
		tolerance: constants.DefaultBundleTolerance,
		markers:   []string{"set", "bundle"},
		maxNames:  constants.MaxBundleConstituents,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Load restores persisted bundle state and merges the overrides file on
// top. Overrides entries are authoritative and clear any manual-entry
// flag for their product.
func (r *Reconciler) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := state{}
	if _, err := docstore.GetJSON(ctx, r.docs, docstore.SlotBundles, &stored); err != nil {
		return err
	}
	if stored.Confirmed != nil {
		r.confirmed = stored.Confirmed
	}
	if stored.Pending != nil {
		r.pending = stored.Pending
	}
	if stored.Manual != nil {
		r.manual = stored.Manual
	}

	comps, err := LoadOverrides(r.overrides)
	if err != nil {
		return err
	}
	for _, comp := range comps {
		r.confirmed[comp.ProductID] = comp
		delete(r.manual, comp.ProductID)
	}
	if len(comps) > 0 {
		logging.Ctx(ctx).Info().
			Int("count", len(comps)).
			Str("path", r.overrides).
			Msg("Loaded bundle composition overrides")
	}

	return nil
}

// Scan walks the operator catalog for products whose names carry a bundle
// marker and raises a pending confirmation for each new detection with at
// least one matched constituent. Products already confirmed, already
// pending, or parked for manual entry are skipped.
func (r *Reconciler) Scan(ctx context.Context, operator map[catalog.Key]catalog.Item) []PendingConfirmation {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]catalog.Key, 0, len(operator))
	for key := range operator {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var detected []PendingConfirmation
	for _, key := range keys {
		item := operator[key]
		if item.ProductID == 0 || !r.isBundleName(item.Name) {
			continue
		}
		if _, ok := r.confirmed[item.ProductID]; ok {
			continue
		}
		if _, ok := r.manual[item.ProductID]; ok {
			continue
		}
		if r.pendingForProductLocked(item.ProductID) {
			continue
		}

		names := ExtractNames(item.Description, r.maxNames)
		constituents := MatchConstituents(names, operator, item.ProductID)
		if len(constituents) == 0 {
			logging.Ctx(ctx).Debug().
				Str("bundle", item.Name).
				Int64("product_id", item.ProductID).
				Msg("Bundle candidate had no matchable constituents")
			continue
		}

		pc := PendingConfirmation{
			ApprovalID:   uuid.NewString(),
			ProductID:    item.ProductID,
			VariantID:    item.VariantID,
			Name:         item.Name,
			Constituents: constituents,
			DetectedAt:   time.Now().UTC(),
		}
		r.pending[pc.ApprovalID] = pc
		detected = append(detected, pc)

		logging.Ctx(ctx).Info().
			Str("bundle", item.Name).
			Int64("product_id", item.ProductID).
			Int("constituents", len(constituents)).
			Msg("Bundle composition detected, awaiting confirmation")
	}

	if len(detected) > 0 {
		r.persistLocked(ctx)
	}
	return detected
}

// Confirm promotes a pending confirmation to an authoritative
// composition. An unknown id returns NotFound, which redelivered clicks
// must treat as already handled.
func (r *Reconciler) Confirm(ctx context.Context, id string, actor approval.Actor) (*Composition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pc, ok := r.pending[id]
	if !ok {
		return nil, errors.NewNotFoundError("bundle confirmation", id)
	}
	if err := r.gate.Permit(actor, "confirm bundle"); err != nil {
		return nil, err
	}

	comp := Composition{
		ProductID:  pc.ProductID,
		VariantID:  pc.VariantID,
		Name:       pc.Name,
		VariantIDs: make([]int64, 0, len(pc.Constituents)),
	}
	for _, c := range pc.Constituents {
		comp.VariantIDs = append(comp.VariantIDs, c.VariantID)
	}

	r.confirmed[comp.ProductID] = comp
	delete(r.pending, id)
	delete(r.manual, comp.ProductID)
	r.persistLocked(ctx)

	logging.Ctx(ctx).Info().
		Str("bundle", comp.Name).
		Int64("product_id", comp.ProductID).
		Str("actor", actor.ID).
		Msg("Bundle composition confirmed")

	return &comp, nil
}

// Decline rejects a detected composition and parks the product for
// manual entry: it will not be re-detected until reset or overridden.
func (r *Reconciler) Decline(ctx context.Context, id string, actor approval.Actor) (*PendingConfirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pc, ok := r.pending[id]
	if !ok {
		return nil, errors.NewNotFoundError("bundle confirmation", id)
	}
	if err := r.gate.Permit(actor, "decline bundle"); err != nil {
		return nil, err
	}

	delete(r.pending, id)
	r.manual[pc.ProductID] = pc.Name
	r.persistLocked(ctx)

	logging.Ctx(ctx).Info().
		Str("bundle", pc.Name).
		Int64("product_id", pc.ProductID).
		Str("actor", actor.ID).
		Msg("Bundle composition declined, awaiting manual entry")

	return &pc, nil
}

// Verify price-checks every confirmed composition against the current
// operator fetch. Constituents missing from the fetch are alarmed and
// skipped; the aggregate uses whatever remains. A bundle whose price
// diverges from the aggregate beyond the tolerance yields a correction
// candidate proposing the aggregate exactly.
func (r *Reconciler) Verify(ctx context.Context, operator map[catalog.Key]catalog.Item) *VerifyResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	type listing struct {
		key  catalog.Key
		item catalog.Item
	}
	byProduct := make(map[int64]listing, len(operator))
	byVariant := make(map[int64]catalog.Item, len(operator))
	for key, item := range operator {
		if item.ProductID != 0 {
			byProduct[item.ProductID] = listing{key: key, item: item}
		}
		if item.VariantID != 0 {
			byVariant[item.VariantID] = item
		}
	}

	ids := make([]int64, 0, len(r.confirmed))
	for id := range r.confirmed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := &VerifyResult{}
	for _, id := range ids {
		comp := r.confirmed[id]
		bundle, ok := byProduct[comp.ProductID]
		if !ok {
			logging.Ctx(ctx).Debug().
				Str("bundle", comp.Name).
				Int64("product_id", comp.ProductID).
				Msg("Confirmed bundle absent from operator fetch")
			continue
		}

		var sum float64
		present := 0
		for _, vid := range comp.VariantIDs {
			item, found := byVariant[vid]
			if !found {
				result.Missing = append(result.Missing, MissingConstituent{
					BundleProductID: comp.ProductID,
					BundleName:      comp.Name,
					VariantID:       vid,
				})
				continue
			}
			sum += item.Price
			present++
		}
		if present == 0 {
			continue
		}
		result.Checked++

		aggregate := catalog.Round2(sum)
		if math.Abs(bundle.item.Price-aggregate) <= r.tolerance {
			continue
		}

		result.Mismatches = append(result.Mismatches, detect.Candidate{
			Key:           bundle.key,
			Kind:          detect.KindBundleFix,
			Name:          bundle.item.Name,
			OperatorPrice: bundle.item.Price,
			SourcePrice:   aggregate,
			Proposed:      aggregate,
			VariantID:     bundle.item.VariantID,
			ProductID:     comp.ProductID,
			ImageURL:      bundle.item.ImageURL,
		})
	}

	return result
}

// SetComposition records an operator-supplied composition directly,
// bypassing detection. Used by the overrides path and the CLI.
func (r *Reconciler) SetComposition(ctx context.Context, comp Composition) error {
	if comp.ProductID == 0 {
		return &errors.ValidationError{Field: "product_id", Message: "composition has no product id"}
	}
	if len(comp.VariantIDs) == 0 {
		return &errors.ValidationError{Field: "variant_ids", Message: "composition has no constituents"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.confirmed[comp.ProductID] = comp
	delete(r.manual, comp.ProductID)
	r.persistLocked(ctx)
	return nil
}

// Reset forgets everything known about a product so the next cycle
// re-detects it from scratch.
func (r *Reconciler) Reset(ctx context.Context, productID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, hadComposition := r.confirmed[productID]
	_, hadManual := r.manual[productID]
	hadPending := false
	for id, pc := range r.pending {
		if pc.ProductID == productID {
			delete(r.pending, id)
			hadPending = true
		}
	}
	delete(r.confirmed, productID)
	delete(r.manual, productID)

	if !hadComposition && !hadManual && !hadPending {
		return errors.NewNotFoundError("bundle", strconv.FormatInt(productID, 10))
	}

	r.persistLocked(ctx)

	logging.Ctx(ctx).Info().
		Int64("product_id", productID).
		Msg("Bundle state reset")
	return nil
}

// Get returns the pending confirmation with the given approval id.
func (r *Reconciler) Get(id string) (*PendingConfirmation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pc, ok := r.pending[id]
	if !ok {
		return nil, false
	}
	return &pc, true
}

// Confirmed returns the authoritative compositions sorted by product id.
func (r *Reconciler) Confirmed() []Composition {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Composition, 0, len(r.confirmed))
	for _, comp := range r.confirmed {
		out = append(out, comp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// PendingConfirmations returns detections awaiting review, oldest first.
func (r *Reconciler) PendingConfirmations() []PendingConfirmation {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PendingConfirmation, 0, len(r.pending))
	for _, pc := range r.pending {
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out
}

// AwaitingManual returns products declined by a reviewer and waiting for
// an overrides entry, keyed by product id.
func (r *Reconciler) AwaitingManual() map[int64]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int64]string, len(r.manual))
	for id, name := range r.manual {
		out[id] = name
	}
	return out
}

func (r *Reconciler) isBundleName(name string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(name), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	for _, tok := range tokens {
		for _, marker := range r.markers {
			if tok == marker {
				return true
			}
		}
	}
	return false
}

func (r *Reconciler) pendingForProductLocked(productID int64) bool {
	for _, pc := range r.pending {
		if pc.ProductID == productID {
			return true
		}
	}
	return false
}

// persistLocked writes the bundle document after a state change. The
// in-memory transition has already happened, so a failed write is logged
// rather than unwound.
func (r *Reconciler) persistLocked(ctx context.Context) {
	doc := state{Confirmed: r.confirmed, Pending: r.pending, Manual: r.manual}
	if err := docstore.PutJSON(ctx, r.docs, docstore.SlotBundles, doc); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to persist bundle state")
	}
}
