package detect

// Option configures a Detector.
type Option func(*detector)

// WithEpsilon sets the dead-band under which prices are considered equal.
func WithEpsilon(eps float64) Option {
	return func(d *detector) {
		if eps > 0 {
			d.epsilon = eps
		}
	}
}

// WithRaiseThreshold sets the relative headroom required before a raise is
// proposed.
func WithRaiseThreshold(threshold float64) Option {
	return func(d *detector) {
		if threshold > 0 {
			d.raiseThreshold = threshold
		}
	}
}

// WithUndercut sets the fraction shaved off the source price when
// computing proposals.
func WithUndercut(fraction float64) Option {
	return func(d *detector) {
		if fraction >= 0 && fraction < 1 {
			d.undercut = fraction
		}
	}
}

// WithGuard sets the mismatch guard's relative high-water marks per
// direction and the absolute delta under which the guard never engages.
func WithGuard(lowerRatio, raiseRatio, absoluteMin float64) Option {
	return func(d *detector) {
		if lowerRatio > 0 {
			d.lowerGuardRatio = lowerRatio
		}
		if raiseRatio > 0 {
			d.raiseGuardRatio = raiseRatio
		}
		if absoluteMin > 0 {
			d.guardAbsoluteMin = absoluteMin
		}
	}
}

// WithPriceFloor sets the operator price under which the guard exempts a
// divergence from relative filtering.
func WithPriceFloor(floor float64) Option {
	return func(d *detector) {
		if floor > 0 {
			d.priceFloor = floor
		}
	}
}
