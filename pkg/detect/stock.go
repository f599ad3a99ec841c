package detect

import (
	"sort"

	"github.com/driftwatch/driftwatch/pkg/catalog"
	"github.com/driftwatch/driftwatch/pkg/suppress"
)

// StockAlert is one in-stock to out-of-stock transition on the operator
// storefront.
type StockAlert struct {
	Key       catalog.Key
	Name      string
	VariantID int64
	ProductID int64
}

// Stock compares current operator quantities against the previously
// recorded state and returns one alert per quantity transition from
// positive to zero, plus the replacement state. The first observation
// seeds the state silently; suppressed keys stay quiet.
func Stock(operator map[catalog.Key]catalog.Item, prev map[catalog.Key]int, reg *suppress.Registry) ([]StockAlert, map[catalog.Key]int) {
	next := make(map[catalog.Key]int, len(operator))
	var alerts []StockAlert

	for key, item := range operator {
		next[key] = item.Quantity

		if len(prev) == 0 {
			continue
		}
		last, tracked := prev[key]
		if !tracked || last <= 0 || item.Quantity > 0 {
			continue
		}
		if reg != nil && reg.Suppressed(key) {
			continue
		}

		alerts = append(alerts, StockAlert{
			Key:       key,
			Name:      item.Name,
			VariantID: item.VariantID,
			ProductID: item.ProductID,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Key < alerts[j].Key
	})

	return alerts, next
}
