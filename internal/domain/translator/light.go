package translator

import (
	"fmt"
	"math"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

type LightStrategy struct{}

func (s *LightStrategy) ToBridge(e model.EntityState, opt *model.EntityOption) model.CapabilityMap {
	out := model.CapabilityMap{model.CapOnOff: e.State == "on"}

	if bri, ok := num(e.Attributes["brightness"]); ok {
		pct := math.Round(bri * 100 / 255)
		if opt != nil && opt.BrightnessFormula != "" {
			if v, ok := evaluate(opt.BrightnessFormula, bri); ok {
				pct = math.Round(v)
			}
		}
		out[model.CapBrightness] = clampPct(pct)
	}
	if kelvin, ok := num(e.Attributes["color_temp_kelvin"]); ok {
		out[model.CapColorTemp] = kelvin
	}
	if rgb, ok := e.Attributes["rgb_color"].([]any); ok {
		out[model.CapColor] = rgb
	}
	return out
}

func (s *LightStrategy) ToPlatform(d *model.Device, values model.CapabilityMap) (model.ServiceCall, error) {
	call := model.ServiceCall{
		Domain:  "light",
		Service: "turn_on",
		Data:    map[string]any{"entity_id": d.ID},
	}

	for tag, v := range values {
		if !d.HasCapability(tag) {
			return model.ServiceCall{}, fmt.Errorf("%w: %s", ErrUnsupportedCapability, tag)
		}
		switch tag {
		case model.CapOnOff:
			if on, _ := v.(bool); !on {
				call.Service = "turn_off"
			}
		case model.CapBrightness:
			pct, ok := num(v)
			if !ok {
				return model.ServiceCall{}, fmt.Errorf("%w: %s value", ErrUnsupportedCapability, tag)
			}
			call.Data["brightness"] = math.Round(clampPct(pct) * 255 / 100)
		case model.CapColorTemp:
			kelvin, ok := num(v)
			if !ok {
				return model.ServiceCall{}, fmt.Errorf("%w: %s value", ErrUnsupportedCapability, tag)
			}
			call.Data["color_temp_kelvin"] = kelvin
		case model.CapColor:
			call.Data["rgb_color"] = v
		default:
			return model.ServiceCall{}, fmt.Errorf("%w: %s", ErrUnsupportedCapability, tag)
		}
	}

	// turn_off takes no attribute payload
	if call.Service == "turn_off" {
		call.Data = map[string]any{"entity_id": d.ID}
	}
	return call, nil
}

func clampPct(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
