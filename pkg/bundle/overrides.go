package bundle

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/driftwatch/driftwatch/pkg/errors"
)

// Overrides is the operator-supplied composition file. Entries here are
// authoritative: they replace detected compositions and clear the
// manual-entry flag for their product.
//
// Example:
//
//	bundles:
//	  - product_id: 8821
//	    variant_id: 44210
//	    name: "Starter Set"
//	    variant_ids: [44100, 44101, 44102]
type Overrides struct {
	Bundles []Composition `yaml:"bundles"`
}

// LoadOverrides reads the YAML overrides file. A missing file or empty
// path is not an error: overrides are optional.
func LoadOverrides(path string) ([]Composition, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading bundle overrides: %w", err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, &errors.ConfigError{Component: "bundle overrides", Message: "invalid yaml", Err: err}
	}

	for _, comp := range o.Bundles {
		if comp.ProductID == 0 || len(comp.VariantIDs) == 0 {
			return nil, &errors.ConfigError{
				Component: "bundle overrides",
				Message:   fmt.Sprintf("entry %q needs a product_id and at least one variant id", comp.Name),
			}
		}
	}

	return o.Bundles, nil
}
