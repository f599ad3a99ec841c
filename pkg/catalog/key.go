package catalog

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/driftwatch/driftwatch/pkg/errors"
)

// Key is the canonical identity of an item across both catalogs: the
// case-folded base name joined with the variant tag. Two listings that
// represent the same physical item must produce an identical Key for the
// pipeline to pair them.
type Key string

// fold performs full Unicode case folding, which is stricter than
// lowercasing for names that reach us with decorated characters.
var fold = cases.Fold()

// NewKey builds the canonical key for a listing whose variant is known.
// Empty and whitespace-only names have no identity; callers are expected
// to skip such records rather than key them.
func NewKey(name string, variant Variant) (Key, error) {
	base := strings.TrimSpace(name)
	if base == "" {
		return "", &errors.ValidationError{Field: "name", Message: "empty name cannot be keyed"}
	}
	return Key(fold.String(base) + "|" + string(variant)), nil
}

// SplitTitle separates the premium marker token from an operator product
// title. "Chroma Widget" with marker "chroma" yields ("Widget",
// VariantPremium); a title without the marker comes back trimmed as
// VariantStandard. The marker matches case-insensitively anywhere in the
// title and the whitespace it leaves behind is collapsed.
func SplitTitle(title, marker string) (string, Variant) {
	base := strings.TrimSpace(title)
	if marker == "" {
		return base, VariantStandard
	}

	idx := strings.Index(strings.ToLower(base), strings.ToLower(marker))
	if idx < 0 {
		return base, VariantStandard
	}

	stripped := base[:idx] + base[idx+len(marker):]
	return strings.Join(strings.Fields(stripped), " "), VariantPremium
}

// KeyFromTitle builds the canonical key for an operator product title in
// which the variant signal is embedded rather than flagged.
func KeyFromTitle(title, marker string) (Key, error) {
	base, variant := SplitTitle(title, marker)
	return NewKey(base, variant)
}

// String returns the key as a plain string.
func (k Key) String() string {
	return string(k)
}

// BaseName returns the folded base-name segment of the key.
func (k Key) BaseName() string {
	if idx := strings.LastIndex(string(k), "|"); idx >= 0 {
		return string(k)[:idx]
	}
	return string(k)
}

// Variant returns the variant segment of the key.
func (k Key) Variant() Variant {
	if idx := strings.LastIndex(string(k), "|"); idx >= 0 {
		return Variant(string(k)[idx+1:])
	}
	return VariantStandard
}
