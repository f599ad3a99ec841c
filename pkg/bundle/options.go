package bundle

import "github.com/driftwatch/driftwatch/pkg/approval"

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithTolerance sets the allowed absolute gap between a bundle price and
// its constituent aggregate before a correction is raised.
func WithTolerance(tolerance float64) Option {
	return func(r *Reconciler) {
		if tolerance > 0 {
			r.tolerance = tolerance
		}
	}
}

// WithMarkers replaces the name tokens that flag a product as a bundle
// candidate. Matching is case-insensitive on whole words.
func WithMarkers(markers ...string) Option {
	return func(r *Reconciler) {
		if len(markers) > 0 {
			r.markers = markers
		}
	}
}

// WithMaxConstituents caps how many names extraction may pull from one
// description.
func WithMaxConstituents(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxNames = n
		}
	}
}

// WithOverridesPath points at the YAML file of operator-supplied
// compositions merged on Load.
func WithOverridesPath(path string) Option {
	return func(r *Reconciler) {
		r.overrides = path
	}
}

// WithGate sets the role allow-list checked on confirm and decline.
func WithGate(gate approval.Gate) Option {
	return func(r *Reconciler) {
		r.gate = gate
	}
}
