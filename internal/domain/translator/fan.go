package translator

import (
	"fmt"
	"math"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

type FanStrategy struct{}

func (s *FanStrategy) ToBridge(e model.EntityState, _ *model.EntityOption) model.CapabilityMap {
	out := model.CapabilityMap{model.CapOnOff: e.State == "on"}
	if pct, ok := num(e.Attributes["percentage"]); ok {
		out[model.CapSpeed] = math.Round(clampPct(pct))
	}
	return out
}

func (s *FanStrategy) ToPlatform(d *model.Device, values model.CapabilityMap) (model.ServiceCall, error) {
	call := model.ServiceCall{
		Domain: "fan",
		Data:   map[string]any{"entity_id": d.ID},
	}

	// A speed request wins over on_off: set_percentage implies the fan runs.
	if v, ok := values[model.CapSpeed]; ok {
		if !d.HasCapability(model.CapSpeed) {
			return model.ServiceCall{}, fmt.Errorf("%w: %s", ErrUnsupportedCapability, model.CapSpeed)
		}
		pct, ok := num(v)
		if !ok {
			return model.ServiceCall{}, fmt.Errorf("%w: %s value", ErrUnsupportedCapability, model.CapSpeed)
		}
		call.Service = "set_percentage"
		call.Data["percentage"] = math.Round(clampPct(pct))
		return call, nil
	}

	for tag := range values {
		if tag != model.CapOnOff {
			return model.ServiceCall{}, fmt.Errorf("%w: %s", ErrUnsupportedCapability, tag)
		}
	}
	on, ok := values[model.CapOnOff].(bool)
	if !ok {
		return model.ServiceCall{}, fmt.Errorf("%w: %s value", ErrUnsupportedCapability, model.CapOnOff)
	}
	call.Service = "turn_on"
	if !on {
		call.Service = "turn_off"
	}
	return call, nil
}
