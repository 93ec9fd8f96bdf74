package translator

import (
	"fmt"
	"math"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

// bridgeModes is the fixed mode enumeration carried on the wire. Platform
// modes outside this set are reported as the "unsupported" sentinel and
// rejected in commands.
var bridgeModes = map[string]bool{
	"off":      true,
	"heat":     true,
	"cool":     true,
	"auto":     true,
	"fan_only": true,
}

type ClimateStrategy struct{}

func (s *ClimateStrategy) ToBridge(e model.EntityState, _ *model.EntityOption) model.CapabilityMap {
	mode := e.State
	if !bridgeModes[mode] {
		mode = model.ModeUnsupported
	}
	out := model.CapabilityMap{model.CapMode: mode}

	unit := e.TemperatureUnit()
	if temp, ok := num(e.Attributes["temperature"]); ok {
		out[model.CapTargetTemp] = toCelsius(temp, unit)
	}
	if temp, ok := num(e.Attributes["current_temperature"]); ok {
		out[model.CapCurrentTemp] = toCelsius(temp, unit)
	}
	return out
}

func (s *ClimateStrategy) ToPlatform(d *model.Device, values model.CapabilityMap) (model.ServiceCall, error) {
	call := model.ServiceCall{
		Domain: "climate",
		Data:   map[string]any{"entity_id": d.ID},
	}

	for tag, v := range values {
		switch tag {
		case model.CapMode:
			mode, ok := v.(string)
			if !ok || !bridgeModes[mode] {
				return model.ServiceCall{}, fmt.Errorf("%w: mode %v", ErrUnsupportedCapability, v)
			}
			call.Service = "set_hvac_mode"
			call.Data["hvac_mode"] = mode
		case model.CapTargetTemp:
			temp, ok := num(v)
			if !ok {
				return model.ServiceCall{}, fmt.Errorf("%w: %s value", ErrUnsupportedCapability, tag)
			}
			if call.Service == "" {
				call.Service = "set_temperature"
			}
			call.Data["temperature"] = fromCelsius(temp, d.Unit)
		default:
			// current_temperature is read-only; anything else is unmapped.
			return model.ServiceCall{}, fmt.Errorf("%w: %s", ErrUnsupportedCapability, tag)
		}
	}
	if call.Service == "" {
		return model.ServiceCall{}, fmt.Errorf("%w: empty command", ErrUnsupportedCapability)
	}

	// Mode plus setpoint in one command goes through set_temperature, which
	// accepts an hvac_mode alongside the target.
	if call.Service == "set_hvac_mode" {
		if _, ok := call.Data["temperature"]; ok {
			call.Service = "set_temperature"
		}
	}
	return call, nil
}

// toCelsius normalizes a platform temperature to the bridge's canonical unit.
func toCelsius(v float64, unit string) float64 {
	if unit == "°F" {
		return round1((v - 32) * 5 / 9)
	}
	return round1(v)
}

// fromCelsius converts a bridge temperature back to the platform's unit.
func fromCelsius(v float64, unit string) float64 {
	if unit == "°F" {
		return round1(v*9/5 + 32)
	}
	return round1(v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
