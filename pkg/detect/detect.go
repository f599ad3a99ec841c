// Package detect compares a freshly fetched catalog pair against the
// previous snapshot and classifies divergences into candidate actions.
// Detection is pure computation: it performs no I/O and never mutates its
// inputs, which keeps every rule in this package testable in isolation.
package detect

import (
	"math"
	"sort"

	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/constants"
	"github.com/driftwatch/driftwatch/pkg/snapshot"
	"github.com/driftwatch/driftwatch/pkg/suppress"
)

// Kind classifies what a candidate proposes to do.
type Kind string

const (
	// KindPriceLower proposes dropping the operator price under the source.
	KindPriceLower Kind = "price_lower"

	// KindPriceRaise proposes raising the operator price toward the source.
	KindPriceRaise Kind = "price_raise"

	// KindBundleFix proposes aligning a bundle price with its constituent sum.
	KindBundleFix Kind = "bundle_price_fix"
)

// Candidate is a qualifying divergence carrying everything needed to
// materialize a pending action without re-fetching either catalog.
type Candidate struct {
	Key           catalog.Key `json:"key"`
	Kind          Kind        `json:"kind"`
	Name          string      `json:"name"`
	OperatorPrice float64     `json:"operator_price"`
	SourcePrice   float64     `json:"source_price"`
	Proposed      float64     `json:"proposed"`
	VariantID     int64       `json:"variant_id,omitempty"`
	ProductID     int64       `json:"product_id,omitempty"`
	ImageURL      string      `json:"image_url,omitempty"`
}

// NewListing is a source item that was absent from the previous snapshot.
type NewListing struct {
	Key         catalog.Key
	Name        string
	SourcePrice float64
	Grade       string
	Recommended float64
}

// RemovedListing is a snapshot key the source no longer lists.
type RemovedListing struct {
	Key       catalog.Key
	Name      string
	LastPrice float64
}

// Result is one detection pass over the paired catalogs. The counters feed
// the cycle summary and metrics.
type Result struct {
	Candidates      []Candidate
	NewListings     []NewListing
	RemovedListings []RemovedListing

	GuardDiscards     int
	SkippedSuppressed int
	SkippedPending    int
	SkippedStale      int
	Unpaired          int
}

// Detector classifies price divergence between the two catalogs.
type Detector interface {
	// Prices walks every source listing, pairs it with the operator
	// catalog, and emits candidates for divergences that survive the
	// suppression, pairing, guard, and novelty rules.
	Prices(source, operator map[catalog.Key]catalog.Item, snap snapshot.Snapshot, reg *suppress.Registry, pending map[catalog.Key]bool) *Result
}

// detector is the default implementation of Detector.
type detector struct {
	epsilon          float64
	raiseThreshold   float64
	undercut         float64
	lowerGuardRatio  float64
	raiseGuardRatio  float64
	guardAbsoluteMin float64
	priceFloor       float64
}

// New creates a Detector with default thresholds.
func New(opts ...Option) Detector {
	d := &detector{
		epsilon:          constants.DefaultEpsilon,
		raiseThreshold:   constants.DefaultRaiseThreshold,
		undercut:         constants.DefaultUndercutFraction,
		lowerGuardRatio:  constants.DefaultLowerGuardRatio,
		raiseGuardRatio:  constants.DefaultRaiseGuardRatio,
		guardAbsoluteMin: constants.DefaultGuardAbsoluteMin,
		priceFloor:       constants.DefaultPriceFloor,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Prices implements Detector.
func (d *detector) Prices(source, operator map[catalog.Key]catalog.Item, snap snapshot.Snapshot, reg *suppress.Registry, pending map[catalog.Key]bool) *Result {
	result := &Result{}

	// An empty snapshot means this is the first observation: the cycle
	// seeds it and nothing is raised or announced.
	if snap.Empty() {
		return result
	}

	for key, src := range source {
		prev, seen := snap.Price(key)
		announce := !seen

		switch {
		case reg != nil && reg.Suppressed(key):
			result.SkippedSuppressed++

		case pending[key]:
			result.SkippedPending++

		default:
			op, paired := operator[key]
			if !paired {
				result.Unpaired++
				break
			}

			// 1. Classify the divergence direction.
			var kind Kind
			switch {
			case src.Price < op.Price-d.epsilon:
				kind = KindPriceLower
			case src.Price > op.Price*(1+d.raiseThreshold):
				kind = KindPriceRaise
			default:
				continue
			}

			// 2. Discard probable identity mismatches between catalogs.
			if d.guarded(kind, src.Price, op.Price) {
				result.GuardDiscards++
				break
			}

			// 3. Novelty gate: a divergence already surfaced from the same
			// source price is not raised again.
			if seen && math.Abs(src.Price-prev) <= d.epsilon {
				result.SkippedStale++
				break
			}

			result.Candidates = append(result.Candidates, Candidate{
				Key:           key,
				Kind:          kind,
				Name:          op.Name,
				OperatorPrice: op.Price,
				SourcePrice:   src.Price,
				Proposed:      d.proposedPrice(src.Price),
				VariantID:     op.VariantID,
				ProductID:     op.ProductID,
				ImageURL:      op.ImageURL,
			})
			announce = false
		}

		if announce {
			result.NewListings = append(result.NewListings, NewListing{
				Key:         key,
				Name:        src.Name,
				SourcePrice: src.Price,
				Grade:       src.Grade,
				Recommended: d.proposedPrice(src.Price),
			})
		}
	}

	for key, rec := range snap {
		if _, ok := source[key]; !ok {
			result.RemovedListings = append(result.RemovedListings, RemovedListing{
				Key:       key,
				Name:      rec.Name,
				LastPrice: rec.Price,
			})
		}
	}

	// Sort for consistent notification order.
	sort.Slice(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].Key < result.Candidates[j].Key
	})
	sort.Slice(result.NewListings, func(i, j int) bool {
		return result.NewListings[i].Key < result.NewListings[j].Key
	})
	sort.Slice(result.RemovedListings, func(i, j int) bool {
		return result.RemovedListings[i].Key < result.RemovedListings[j].Key
	})

	return result
}

// guarded reports whether a divergence looks like two different physical
// items sharing a key rather than a real price move. Small absolute deltas
// and cheap operator listings are always acted on.
func (d *detector) guarded(kind Kind, sourcePrice, operatorPrice float64) bool {
	absDelta := math.Abs(sourcePrice - operatorPrice)
	if absDelta <= d.guardAbsoluteMin {
		return false
	}
	if operatorPrice <= d.priceFloor {
		return false
	}

	ratio := d.lowerGuardRatio
	if kind == KindPriceRaise {
		ratio = d.raiseGuardRatio
	}
	return absDelta/operatorPrice > ratio
}

// proposedPrice undercuts the source price by the configured fraction.
// Both lower and raise proposals land here: the operator always ends up
// just under the source.
func (d *detector) proposedPrice(sourcePrice float64) float64 {
	return catalog.Round2(sourcePrice * (1 - d.undercut))
}
