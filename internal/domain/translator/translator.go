package translator

import (
	"errors"

	"github.com/Knetic/govaluate"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

// ErrUnsupportedCapability is returned by ToPlatform when a command touches a
// capability the target entity does not advertise or a value outside the
// domain's mapping. The caller nacks and issues no service call.
var ErrUnsupportedCapability = errors.New("translator: unsupported capability")

// Translator converts between platform entity state and bridge capability
// maps for one domain. Both directions are pure: no I/O, no registry access.
type Translator interface {
	// ToBridge maps a platform state snapshot to the bridge capability map,
	// dropping capabilities the entity does not advertise.
	ToBridge(e model.EntityState, opt *model.EntityOption) model.CapabilityMap

	// ToPlatform maps requested capability values to a platform service call.
	ToPlatform(d *model.Device, values model.CapabilityMap) (model.ServiceCall, error)
}

// num coerces a JSON-shaped numeric value.
func num(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// evaluate handles simple formulas like "x * 2.54" or "x / 2.54 + 7". The
// second return is false when the formula cannot be parsed or evaluated, in
// which case the caller keeps its default scaling.
func evaluate(formula string, x float64) (float64, bool) {
	expression, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return 0, false
	}
	parameters := map[string]interface{}{"x": x}

	result, err := expression.Evaluate(parameters)
	if err != nil {
		return 0, false
	}
	if val, ok := result.(float64); ok {
		return val, true
	}
	return 0, false
}
