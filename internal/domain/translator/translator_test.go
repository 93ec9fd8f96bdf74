package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

func TestLightStrategy(t *testing.T) {
	s := &LightStrategy{}

	// Platform to bridge: brightness is rescaled to 0-100.
	e := model.EntityState{
		EntityID: "light.kitchen",
		Domain:   model.DomainLight,
		State:    "on",
		Attributes: map[string]any{
			"brightness": 128.0,
		},
	}
	values := s.ToBridge(e, nil)
	assert.Equal(t, true, values[model.CapOnOff])
	assert.Equal(t, float64(50), values[model.CapBrightness])
	assert.NotContains(t, values, model.CapColorTemp, "never synthesized")
	assert.NotContains(t, values, model.CapColor)

	// Color temp and color pass through only when advertised.
	e.Attributes["color_temp_kelvin"] = 2700.0
	e.Attributes["rgb_color"] = []any{255.0, 0.0, 0.0}
	values = s.ToBridge(e, nil)
	assert.Equal(t, 2700.0, values[model.CapColorTemp])
	assert.Equal(t, []any{255.0, 0.0, 0.0}, values[model.CapColor])

	// Bridge to platform.
	dev := &model.Device{
		ID:           "light.kitchen",
		Domain:       model.DomainLight,
		Capabilities: []string{model.CapOnOff, model.CapBrightness},
	}
	call, err := s.ToPlatform(dev, model.CapabilityMap{model.CapOnOff: true, model.CapBrightness: float64(50)})
	require.NoError(t, err)
	assert.Equal(t, "light", call.Domain)
	assert.Equal(t, "turn_on", call.Service)
	assert.Equal(t, float64(128), call.Data["brightness"])

	call, err = s.ToPlatform(dev, model.CapabilityMap{model.CapOnOff: false})
	require.NoError(t, err)
	assert.Equal(t, "turn_off", call.Service)

	// Command touching an unadvertised capability is rejected.
	_, err = s.ToPlatform(dev, model.CapabilityMap{model.CapColorTemp: float64(4000)})
	assert.ErrorIs(t, err, ErrUnsupportedCapability)
}

func TestLightStrategy_BrightnessFormula(t *testing.T) {
	s := &LightStrategy{}
	e := model.EntityState{
		EntityID:   "light.desk",
		Domain:     model.DomainLight,
		State:      "on",
		Attributes: map[string]any{"brightness": 100.0},
	}
	opt := &model.EntityOption{EntityID: "light.desk", BrightnessFormula: "x / 2"}
	values := s.ToBridge(e, opt)
	assert.Equal(t, float64(50), values[model.CapBrightness])

	// Broken formulas fall back to the default scaling.
	opt.BrightnessFormula = "nonsense("
	values = s.ToBridge(e, opt)
	assert.Equal(t, float64(39), values[model.CapBrightness])
}

func TestSwitchStrategy(t *testing.T) {
	s := &SwitchStrategy{}

	e := model.EntityState{EntityID: "switch.heater", Domain: model.DomainSwitch, State: "off"}
	values := s.ToBridge(e, nil)
	assert.Equal(t, model.CapabilityMap{model.CapOnOff: false}, values)

	dev := &model.Device{ID: "switch.heater", Domain: model.DomainSwitch, Capabilities: []string{model.CapOnOff}}
	call, err := s.ToPlatform(dev, model.CapabilityMap{model.CapOnOff: true})
	require.NoError(t, err)
	assert.Equal(t, "turn_on", call.Service)
	assert.Equal(t, "switch.heater", call.Data["entity_id"])

	_, err = s.ToPlatform(dev, model.CapabilityMap{model.CapBrightness: float64(10)})
	assert.ErrorIs(t, err, ErrUnsupportedCapability)
}

func TestFanStrategy(t *testing.T) {
	s := &FanStrategy{}

	e := model.EntityState{
		EntityID:   "fan.office",
		Domain:     model.DomainFan,
		State:      "on",
		Attributes: map[string]any{"percentage": 66.6},
	}
	values := s.ToBridge(e, nil)
	assert.Equal(t, true, values[model.CapOnOff])
	assert.Equal(t, float64(67), values[model.CapSpeed], "rounded to nearest integer")

	dev := &model.Device{ID: "fan.office", Domain: model.DomainFan, Capabilities: []string{model.CapOnOff, model.CapSpeed}}
	call, err := s.ToPlatform(dev, model.CapabilityMap{model.CapSpeed: 42.4})
	require.NoError(t, err)
	assert.Equal(t, "set_percentage", call.Service)
	assert.Equal(t, float64(42), call.Data["percentage"])

	call, err = s.ToPlatform(dev, model.CapabilityMap{model.CapOnOff: false})
	require.NoError(t, err)
	assert.Equal(t, "turn_off", call.Service)

	// Speed command against a fan without speed support.
	plain := &model.Device{ID: "fan.attic", Domain: model.DomainFan, Capabilities: []string{model.CapOnOff}}
	_, err = s.ToPlatform(plain, model.CapabilityMap{model.CapSpeed: float64(50)})
	assert.ErrorIs(t, err, ErrUnsupportedCapability)
}

func TestClimateStrategy(t *testing.T) {
	s := &ClimateStrategy{}

	e := model.EntityState{
		EntityID: "climate.living_room",
		Domain:   model.DomainClimate,
		State:    "heat",
		Attributes: map[string]any{
			"temperature":         21.0,
			"current_temperature": 19.4,
		},
	}
	values := s.ToBridge(e, nil)
	assert.Equal(t, "heat", values[model.CapMode])
	assert.Equal(t, 21.0, values[model.CapTargetTemp])
	assert.Equal(t, 19.4, values[model.CapCurrentTemp])

	// Unknown platform modes map to the sentinel.
	e.State = "heat_cool"
	values = s.ToBridge(e, nil)
	assert.Equal(t, model.ModeUnsupported, values[model.CapMode])

	// Fahrenheit entities are normalized to Celsius.
	e.State = "cool"
	e.Attributes["temperature_unit"] = "°F"
	e.Attributes["temperature"] = 68.0
	values = s.ToBridge(e, nil)
	assert.Equal(t, 20.0, values[model.CapTargetTemp])

	dev := &model.Device{
		ID:           "climate.living_room",
		Domain:       model.DomainClimate,
		Capabilities: []string{model.CapMode, model.CapTargetTemp, model.CapCurrentTemp},
	}
	call, err := s.ToPlatform(dev, model.CapabilityMap{model.CapMode: "cool"})
	require.NoError(t, err)
	assert.Equal(t, "set_hvac_mode", call.Service)
	assert.Equal(t, "cool", call.Data["hvac_mode"])

	call, err = s.ToPlatform(dev, model.CapabilityMap{model.CapTargetTemp: 21.5})
	require.NoError(t, err)
	assert.Equal(t, "set_temperature", call.Service)
	assert.Equal(t, 21.5, call.Data["temperature"])

	// Setpoint converts back to the entity's unit.
	f := &model.Device{ID: "climate.garage", Domain: model.DomainClimate, Unit: "°F",
		Capabilities: []string{model.CapMode, model.CapTargetTemp}}
	call, err = s.ToPlatform(f, model.CapabilityMap{model.CapTargetTemp: 20.0})
	require.NoError(t, err)
	assert.Equal(t, 68.0, call.Data["temperature"])

	// Modes outside the fixed enumeration are rejected, no service call built.
	_, err = s.ToPlatform(dev, model.CapabilityMap{model.CapMode: "eco"})
	assert.ErrorIs(t, err, ErrUnsupportedCapability)

	// current_temperature is read-only.
	_, err = s.ToPlatform(dev, model.CapabilityMap{model.CapCurrentTemp: 22.0})
	assert.ErrorIs(t, err, ErrUnsupportedCapability)
}

func TestFactory(t *testing.T) {
	f := NewFactory()

	light, ok := f.Translator(model.DomainLight)
	assert.True(t, ok)
	assert.IsType(t, &LightStrategy{}, light)

	sw, ok := f.Translator(model.DomainSwitch)
	assert.True(t, ok)
	assert.IsType(t, &SwitchStrategy{}, sw)

	fan, ok := f.Translator(model.DomainFan)
	assert.True(t, ok)
	assert.IsType(t, &FanStrategy{}, fan)

	climate, ok := f.Translator(model.DomainClimate)
	assert.True(t, ok)
	assert.IsType(t, &ClimateStrategy{}, climate)

	_, ok = f.Translator(model.Domain("cover"))
	assert.False(t, ok)
}
